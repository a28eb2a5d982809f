package bundler

import (
	"math/big"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

// GasEstimation is the answer of eth_estimateUserOperationGas.
type GasEstimation struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int

	// Only returned for EntryPoint v0.7 operations that name a paymaster.
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
}

// ApplyTo fills the gas limits op leaves unset. Limits the caller already
// chose are kept.
func (g *GasEstimation) ApplyTo(op *userop.UserOperation) {
	fill := func(dst **big.Int, v *big.Int) {
		if *dst == nil && v != nil {
			*dst = new(big.Int).Set(v)
		}
	}

	fill(&op.PreVerificationGas, g.PreVerificationGas)
	fill(&op.VerificationGasLimit, g.VerificationGasLimit)
	fill(&op.CallGasLimit, g.CallGasLimit)
	if op.Version() == userop.EntryPointV07 {
		fill(&op.PaymasterVerificationGasLimit, g.PaymasterVerificationGasLimit)
		fill(&op.PaymasterPostOpGasLimit, g.PaymasterPostOpGasLimit)
	}
}

type gasEstimationResponse struct {
	PreVerificationGas            string `json:"preVerificationGas"`
	VerificationGasLimit          string `json:"verificationGasLimit"`
	CallGasLimit                  string `json:"callGasLimit"`
	PaymasterVerificationGasLimit string `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       string `json:"paymasterPostOpGasLimit"`
}

package paymaster

import (
	"fmt"
	"math/big"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

// ApplyTo writes the sponsorship into op, right before it is signed and sent
// to the bundler. Fee fields are only overwritten when the result has them.
func (r *SponsorUserOperationResult) ApplyTo(op *userop.UserOperation) error {
	if op == nil {
		return ErrNilUserOperation
	}
	if op.Version() != r.Version {
		return fmt.Errorf("%w: result v%s, operation v%s", ErrVersionMismatch, r.Version, op.Version())
	}

	op.CallGasLimit = copyBig(r.CallGasLimit)
	op.VerificationGasLimit = copyBig(r.VerificationGasLimit)
	op.PreVerificationGas = copyBig(r.PreVerificationGas)
	if r.MaxFeePerGas != nil {
		op.MaxFeePerGas = copyBig(r.MaxFeePerGas)
	}
	if r.MaxPriorityFeePerGas != nil {
		op.MaxPriorityFeePerGas = copyBig(r.MaxPriorityFeePerGas)
	}

	if r.Version == userop.EntryPointV06 {
		op.PaymasterAndData = append([]byte(nil), r.PaymasterAndData...)
		return nil
	}

	if r.Paymaster != nil {
		paymaster := *r.Paymaster
		op.Paymaster = &paymaster
	}
	op.PaymasterData = append([]byte(nil), r.PaymasterData...)
	op.PaymasterVerificationGasLimit = copyBig(r.PaymasterVerificationGasLimit)
	op.PaymasterPostOpGasLimit = copyBig(r.PaymasterPostOpGasLimit)
	return nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

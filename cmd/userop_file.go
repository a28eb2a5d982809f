package cmd

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

// userOpFile is a user operation in its JSON-RPC shape. EntryPoint is
// optional and overrides the configured entry point.
type userOpFile struct {
	EntryPoint string `json:"entryPoint"`

	Sender               string `json:"sender"`
	Nonce                string `json:"nonce"`
	CallData             string `json:"callData"`
	CallGasLimit         string `json:"callGasLimit"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	Signature            string `json:"signature"`

	InitCode         string `json:"initCode"`
	PaymasterAndData string `json:"paymasterAndData"`

	Factory                       string `json:"factory"`
	FactoryData                   string `json:"factoryData"`
	Paymaster                     string `json:"paymaster"`
	PaymasterData                 string `json:"paymasterData"`
	PaymasterVerificationGasLimit string `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       string `json:"paymasterPostOpGasLimit"`
}

func loadUserOperation(path string, entryPoint common.Address) (*userop.UserOperation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user operation file: %w", err)
	}

	var f userOpFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse user operation file %s: %w", path, err)
	}
	return f.toUserOperation(entryPoint)
}

func (f *userOpFile) toUserOperation(entryPoint common.Address) (*userop.UserOperation, error) {
	p := &fieldParser{}
	op := &userop.UserOperation{
		EntryPointAddress: entryPoint,

		Sender:   p.address("sender", f.Sender),
		Nonce:    p.quantity("nonce", f.Nonce),
		CallData: p.bytes("callData", f.CallData),

		CallGasLimit:         p.quantity("callGasLimit", f.CallGasLimit),
		VerificationGasLimit: p.quantity("verificationGasLimit", f.VerificationGasLimit),
		PreVerificationGas:   p.quantity("preVerificationGas", f.PreVerificationGas),
		MaxFeePerGas:         p.quantity("maxFeePerGas", f.MaxFeePerGas),
		MaxPriorityFeePerGas: p.quantity("maxPriorityFeePerGas", f.MaxPriorityFeePerGas),

		Signature: p.bytes("signature", f.Signature),

		InitCode:         p.bytes("initCode", f.InitCode),
		PaymasterAndData: p.bytes("paymasterAndData", f.PaymasterAndData),

		FactoryData:                   p.bytes("factoryData", f.FactoryData),
		PaymasterData:                 p.bytes("paymasterData", f.PaymasterData),
		PaymasterVerificationGasLimit: p.quantity("paymasterVerificationGasLimit", f.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       p.quantity("paymasterPostOpGasLimit", f.PaymasterPostOpGasLimit),
	}

	if f.EntryPoint != "" {
		op.EntryPointAddress = p.address("entryPoint", f.EntryPoint)
	}
	if f.Factory != "" {
		factory := p.address("factory", f.Factory)
		op.Factory = &factory
	}
	if f.Paymaster != "" {
		paymaster := p.address("paymaster", f.Paymaster)
		op.Paymaster = &paymaster
	}

	if p.err != nil {
		return nil, p.err
	}
	return op, nil
}

// fieldParser keeps the first parse error so fields can be read in one go.
type fieldParser struct {
	err error
}

func (p *fieldParser) quantity(field, value string) *big.Int {
	if p.err != nil || value == "" {
		return nil
	}
	v, err := userop.DecodeQuantity(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

func (p *fieldParser) bytes(field, value string) []byte {
	if p.err != nil || value == "" {
		return nil
	}
	b, err := hexutil.Decode(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return b
}

func (p *fieldParser) address(field, value string) common.Address {
	if p.err != nil {
		return common.Address{}
	}
	if !common.IsHexAddress(value) {
		p.err = fmt.Errorf("%s: %q is not an address", field, value)
		return common.Address{}
	}
	return common.HexToAddress(value)
}

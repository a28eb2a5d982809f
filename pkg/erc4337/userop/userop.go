// Package userop models ERC-4337 UserOperations for both EntryPoint v0.6 and
// v0.7 and knows how to render them into the hex encoded JSON-RPC shape that
// bundlers and paymasters expect.
//
// Integer fields use *big.Int where nil means "not set yet". Callers usually
// fill gas and fee fields progressively: gas limits come from the paymaster or
// the bundler, fees come from a fee snapshot.
package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserOperation is a version agnostic ERC-4337 user operation. Which of the
// v0.6 or v0.7 specific fields are meaningful is decided by EntryPointAddress.
type UserOperation struct {
	EntryPointAddress common.Address

	Sender   common.Address
	Nonce    *big.Int
	CallData []byte

	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Signature []byte

	// EntryPoint v0.6 only
	InitCode         []byte
	PaymasterAndData []byte

	// EntryPoint v0.7 only
	Factory                       *common.Address
	FactoryData                   []byte
	Paymaster                     *common.Address
	PaymasterData                 []byte
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
}

// Version reports the entry point protocol version of the operation.
func (op *UserOperation) Version() EntryPointVersion {
	return VersionOf(op.EntryPointAddress)
}

// DefaultGasLimits sets every absent mandatory gas limit to zero. The
// operation is modified in place.
func (op *UserOperation) DefaultGasLimits() {
	if op.CallGasLimit == nil {
		op.CallGasLimit = new(big.Int)
	}
	if op.VerificationGasLimit == nil {
		op.VerificationGasLimit = new(big.Int)
	}
	if op.PreVerificationGas == nil {
		op.PreVerificationGas = new(big.Int)
	}
}

// Clone returns a deep copy so the result can be mutated independently.
func (op *UserOperation) Clone() *UserOperation {
	if op == nil {
		return nil
	}

	return &UserOperation{
		EntryPointAddress: op.EntryPointAddress,

		Sender:   op.Sender,
		Nonce:    cloneBig(op.Nonce),
		CallData: cloneBytes(op.CallData),

		CallGasLimit:         cloneBig(op.CallGasLimit),
		VerificationGasLimit: cloneBig(op.VerificationGasLimit),
		PreVerificationGas:   cloneBig(op.PreVerificationGas),
		MaxFeePerGas:         cloneBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: cloneBig(op.MaxPriorityFeePerGas),

		Signature: cloneBytes(op.Signature),

		InitCode:         cloneBytes(op.InitCode),
		PaymasterAndData: cloneBytes(op.PaymasterAndData),

		Factory:                       cloneAddress(op.Factory),
		FactoryData:                   cloneBytes(op.FactoryData),
		Paymaster:                     cloneAddress(op.Paymaster),
		PaymasterData:                 cloneBytes(op.PaymasterData),
		PaymasterVerificationGasLimit: cloneBig(op.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       cloneBig(op.PaymasterPostOpGasLimit),
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneAddress(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

package userop

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type quantityField struct {
	key   string
	value *big.Int
}

// ToWire renders the operation as the JSON-RPC object sent to bundlers and
// paymasters. Integers become hex quantities and absent integers are left out.
// The entry point address is never part of the body, it travels as its own
// positional parameter. Only the field set of the operation's version is
// emitted.
func (op *UserOperation) ToWire() (map[string]any, error) {
	wire := map[string]any{
		"sender":    op.Sender.Hex(),
		"callData":  hexutil.Encode(op.CallData),
		"signature": hexutil.Encode(op.Signature),
	}

	quantities := []quantityField{
		{"nonce", op.Nonce},
		{"callGasLimit", op.CallGasLimit},
		{"verificationGasLimit", op.VerificationGasLimit},
		{"preVerificationGas", op.PreVerificationGas},
		{"maxFeePerGas", op.MaxFeePerGas},
		{"maxPriorityFeePerGas", op.MaxPriorityFeePerGas},
	}

	if op.Version() == EntryPointV06 {
		wire["initCode"] = hexutil.Encode(op.InitCode)
		wire["paymasterAndData"] = hexutil.Encode(op.PaymasterAndData)
	} else {
		if op.Factory != nil {
			wire["factory"] = op.Factory.Hex()
			wire["factoryData"] = hexutil.Encode(op.FactoryData)
		}
		if op.Paymaster != nil {
			wire["paymaster"] = op.Paymaster.Hex()
			wire["paymasterData"] = hexutil.Encode(op.PaymasterData)
		}
		quantities = append(quantities,
			quantityField{"paymasterVerificationGasLimit", op.PaymasterVerificationGasLimit},
			quantityField{"paymasterPostOpGasLimit", op.PaymasterPostOpGasLimit},
		)
	}

	for _, q := range quantities {
		if q.value == nil {
			continue
		}
		encoded, err := EncodeQuantity(q.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.key, err)
		}
		wire[q.key] = encoded
	}

	return wire, nil
}

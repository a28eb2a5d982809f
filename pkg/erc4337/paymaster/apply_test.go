package paymaster

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

func TestApplyToV06(t *testing.T) {
	op := testOperation(userop.EntryPoint06Address)
	op.MaxFeePerGas = big.NewInt(100)
	op.MaxPriorityFeePerGas = big.NewInt(10)

	result, err := DecodeSponsorResponse(v06Response(), op)
	require.NoError(t, err)
	result.MaxFeePerGas = nil
	result.MaxPriorityFeePerGas = big.NewInt(20)

	require.NoError(t, result.ApplyTo(op))
	assert.Equal(t, result.PaymasterAndData, op.PaymasterAndData)
	assert.Equal(t, 0, op.CallGasLimit.Sign())
	assert.Equal(t, int64(100), op.MaxFeePerGas.Int64(), "fees the result lacks are kept")
	assert.Equal(t, int64(20), op.MaxPriorityFeePerGas.Int64())
	assert.Nil(t, op.Paymaster)

	op.PaymasterAndData[0] ^= 0xff
	assert.NotEqual(t, result.PaymasterAndData[0], op.PaymasterAndData[0], "applied bytes must not alias the result")
}

func TestApplyToV07(t *testing.T) {
	op := testOperation(userop.EntryPoint07Address)

	result, err := DecodeSponsorResponse(v07Response(), op)
	require.NoError(t, err)
	require.NoError(t, result.ApplyTo(op))

	assert.Equal(t, *result.Paymaster, *op.Paymaster)
	assert.Equal(t, result.PaymasterData, op.PaymasterData)
	assert.Equal(t, int64(0xafc8), op.PaymasterVerificationGasLimit.Int64())
	assert.Equal(t, int64(0x11d0e), op.VerificationGasLimit.Int64())
	assert.Nil(t, op.PaymasterAndData)

	wire, err := op.ToWire()
	require.NoError(t, err)
	assert.Equal(t, "0x3fE285DcD76FcCe4aC92D38A6F2b8e964041e020", wire["paymaster"])
	assert.NotContains(t, wire, "paymasterAndData")
}

func TestApplyToVersionMismatch(t *testing.T) {
	result := &SponsorUserOperationResult{Version: userop.EntryPointV06}
	err := result.ApplyTo(testOperation(userop.EntryPoint07Address))
	assert.ErrorIs(t, err, ErrVersionMismatch)

	assert.ErrorIs(t, result.ApplyTo(nil), ErrNilUserOperation)
}

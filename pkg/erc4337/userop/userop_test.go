package userop

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionOf(t *testing.T) {
	assert.Equal(t, EntryPointV06, VersionOf(EntryPoint06Address))
	assert.Equal(t, EntryPointV06, VersionOf(common.HexToAddress(strings.ToLower(EntryPoint06Address.Hex()))))
	assert.Equal(t, EntryPointV07, VersionOf(EntryPoint07Address))
	assert.Equal(t, EntryPointV07, VersionOf(common.HexToAddress("0x1234")))
}

func TestEntryPointFor(t *testing.T) {
	addr, err := EntryPointFor("0.6")
	require.NoError(t, err)
	assert.Equal(t, EntryPoint06Address, addr)

	addr, err = EntryPointFor("")
	require.NoError(t, err)
	assert.Equal(t, EntryPoint07Address, addr)

	_, err = EntryPointFor("0.8")
	assert.Error(t, err)
}

func TestDefaultGasLimits(t *testing.T) {
	op := &UserOperation{VerificationGasLimit: big.NewInt(42)}
	op.DefaultGasLimits()

	require.NotNil(t, op.CallGasLimit)
	require.NotNil(t, op.PreVerificationGas)
	assert.Equal(t, 0, op.CallGasLimit.Sign())
	assert.Equal(t, 0, op.PreVerificationGas.Sign())
	assert.Equal(t, int64(42), op.VerificationGasLimit.Int64(), "present values must be kept")
	assert.Nil(t, op.MaxFeePerGas, "fee fields are not defaulted")
}

func TestClone(t *testing.T) {
	pm := common.HexToAddress("0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe")
	op := &UserOperation{
		EntryPointAddress: EntryPoint07Address,
		Nonce:             big.NewInt(7),
		CallData:          []byte{1, 2, 3},
		Paymaster:         &pm,
		CallGasLimit:      big.NewInt(100),
	}

	c := op.Clone()
	c.Nonce.SetInt64(8)
	c.CallData[0] = 9
	c.Paymaster[0] = 0xff
	c.CallGasLimit.SetInt64(1)

	assert.Equal(t, int64(7), op.Nonce.Int64())
	assert.Equal(t, byte(1), op.CallData[0])
	assert.Equal(t, pm, *op.Paymaster)
	assert.Equal(t, int64(100), op.CallGasLimit.Int64())
	assert.Nil(t, (*UserOperation)(nil).Clone())
}

func TestToWireV06(t *testing.T) {
	op := &UserOperation{
		EntryPointAddress: EntryPoint06Address,
		Sender:            common.HexToAddress("0xe272b72E51a5bF8cB720fc6D6DF164a4D5E321C5"),
		Nonce:             big.NewInt(1),
		CallData:          common.FromHex("0xb61d27f6"),
		CallGasLimit:      big.NewInt(0),
		MaxFeePerGas:      big.NewInt(1_000_000_000),
	}

	wire, err := op.ToWire()
	require.NoError(t, err)

	assert.Equal(t, "0x1", wire["nonce"])
	assert.Equal(t, "0xb61d27f6", wire["callData"])
	assert.Equal(t, "0x0", wire["callGasLimit"])
	assert.Equal(t, "0x3b9aca00", wire["maxFeePerGas"])
	assert.Equal(t, "0x", wire["initCode"])
	assert.Equal(t, "0x", wire["paymasterAndData"])

	for _, key := range []string{"verificationGasLimit", "preVerificationGas", "maxPriorityFeePerGas"} {
		assert.NotContains(t, wire, key, "absent integers must not be sent")
	}
	for _, key := range []string{"paymaster", "paymasterData", "factory", "paymasterVerificationGasLimit", "entryPointAddress", "entryPoint"} {
		assert.NotContains(t, wire, key)
	}
}

func TestToWireV07(t *testing.T) {
	factory := common.HexToAddress("0x29adA1b5217242DEaBB142BC3b1bCfFdd56008e7")
	op := &UserOperation{
		EntryPointAddress:             EntryPoint07Address,
		Factory:                       &factory,
		FactoryData:                   []byte{0xab},
		PaymasterVerificationGasLimit: big.NewInt(255),
	}

	wire, err := op.ToWire()
	require.NoError(t, err)

	assert.Equal(t, factory.Hex(), wire["factory"])
	assert.Equal(t, "0xab", wire["factoryData"])
	assert.Equal(t, "0xff", wire["paymasterVerificationGasLimit"])
	assert.NotContains(t, wire, "paymaster")
	assert.NotContains(t, wire, "paymasterPostOpGasLimit")
	assert.NotContains(t, wire, "initCode")
	assert.NotContains(t, wire, "paymasterAndData")
}

func TestToWireRejectsNegative(t *testing.T) {
	op := &UserOperation{EntryPointAddress: EntryPoint07Address, CallGasLimit: big.NewInt(-1)}
	_, err := op.ToWire()
	require.ErrorIs(t, err, ErrNegativeQuantity)
	assert.Contains(t, err.Error(), "callGasLimit")
}

func TestQuantityRoundTrip(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	beyond := new(big.Int).Lsh(big.NewInt(1), 300)

	testCases := []struct {
		name  string
		value *big.Int
	}{
		{"zero", big.NewInt(0)},
		{"one", big.NewInt(1)},
		{"1 gwei", big.NewInt(1_000_000_000)},
		{"max int64", big.NewInt(9223372036854775807)},
		{"max uint256", maxUint256},
		{"above 256 bits", beyond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := EncodeQuantity(tc.value)
			require.NoError(t, err)
			decoded, err := DecodeQuantity(encoded)
			require.NoError(t, err)
			assert.Equal(t, 0, tc.value.Cmp(decoded), "expected %s, got %s", tc.value, decoded)
		})
	}
}

func TestDecodeQuantity(t *testing.T) {
	testCases := []struct {
		input       string
		expected    int64
		expectError bool
	}{
		{"0x0", 0, false},
		{"0x00000a", 10, false},
		{"0XFF", 255, false},
		{"ff", 0, true},
		{"0x", 0, true},
		{"0x-1", 0, true},
		{"0x+1", 0, true},
		{"0xzz", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			v, err := DecodeQuantity(tc.input)
			if tc.expectError {
				require.ErrorIs(t, err, ErrInvalidQuantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v.Int64())
		})
	}
}

func TestEncodeQuantityErrors(t *testing.T) {
	_, err := EncodeQuantity(nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = EncodeQuantity(big.NewInt(-5))
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

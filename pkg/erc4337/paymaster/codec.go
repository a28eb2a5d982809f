package paymaster

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

// Keys that only one of the two response shapes may carry.
var (
	v06OnlyKeys = []string{"paymasterAndData"}
	v07OnlyKeys = []string{"paymaster", "paymasterData", "paymasterVerificationGasLimit", "paymasterPostOpGasLimit"}
)

type gasFields struct {
	PreVerificationGas   string `mapstructure:"preVerificationGas"`
	VerificationGasLimit string `mapstructure:"verificationGasLimit"`
	CallGasLimit         string `mapstructure:"callGasLimit"`
	MaxFeePerGas         string `mapstructure:"maxFeePerGas"`
	MaxPriorityFeePerGas string `mapstructure:"maxPriorityFeePerGas"`
}

type sponsorResponseV06 struct {
	Gas              gasFields `mapstructure:",squash"`
	PaymasterAndData string    `mapstructure:"paymasterAndData"`
}

type sponsorResponseV07 struct {
	Gas                           gasFields `mapstructure:",squash"`
	Paymaster                     string    `mapstructure:"paymaster"`
	PaymasterData                 string    `mapstructure:"paymasterData"`
	PaymasterVerificationGasLimit string    `mapstructure:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       string    `mapstructure:"paymasterPostOpGasLimit"`
}

// SponsorUserOperationResult is the decoded answer of pm_sponsorUserOperation.
// Version is the discriminant: PaymasterAndData is only set for 0.6 results,
// the split Paymaster* fields only for 0.7 results.
type SponsorUserOperationResult struct {
	Version userop.EntryPointVersion

	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	// Fees fall back to the request's values when the paymaster does not
	// recommend its own, and stay nil if the request had none either.
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	PaymasterAndData []byte

	Paymaster                     *common.Address
	PaymasterData                 []byte
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
}

// DecodeSponsorResponse reads a raw pm_sponsorUserOperation result as the
// shape of op's entry point version. Keys belonging to the other version are
// reported as ErrDecodeMismatch; an empty result, a missing mandatory field
// or an unreadable value as ErrMalformedResponse. Both come as a *DecodeError.
func DecodeSponsorResponse(raw map[string]any, op *userop.UserOperation) (*SponsorUserOperationResult, error) {
	if op == nil {
		return nil, ErrNilUserOperation
	}

	version := op.Version()
	if raw == nil {
		return nil, malformedError(version, "", "empty result")
	}

	if version == userop.EntryPointV06 {
		return decodeV06(raw, op)
	}
	return decodeV07(raw, op)
}

func decodeV06(raw map[string]any, op *userop.UserOperation) (*SponsorUserOperationResult, error) {
	version := userop.EntryPointV06
	if err := rejectForeignKeys(raw, version, v07OnlyKeys); err != nil {
		return nil, err
	}

	var resp sponsorResponseV06
	if err := mapstructure.Decode(raw, &resp); err != nil {
		return nil, malformedError(version, "", err.Error())
	}

	result := &SponsorUserOperationResult{Version: version}
	if err := decodeGasFields(&resp.Gas, version, op, result); err != nil {
		return nil, err
	}

	pad, err := decodeBytes(version, "paymasterAndData", resp.PaymasterAndData)
	if err != nil {
		return nil, err
	}
	result.PaymasterAndData = pad

	return result, nil
}

func decodeV07(raw map[string]any, op *userop.UserOperation) (*SponsorUserOperationResult, error) {
	version := userop.EntryPointV07
	if err := rejectForeignKeys(raw, version, v06OnlyKeys); err != nil {
		return nil, err
	}

	var resp sponsorResponseV07
	if err := mapstructure.Decode(raw, &resp); err != nil {
		return nil, malformedError(version, "", err.Error())
	}

	result := &SponsorUserOperationResult{Version: version}
	if err := decodeGasFields(&resp.Gas, version, op, result); err != nil {
		return nil, err
	}

	paymaster, err := decodeAddress(version, "paymaster", resp.Paymaster)
	if err != nil {
		return nil, err
	}
	result.Paymaster = &paymaster

	if result.PaymasterData, err = decodeBytes(version, "paymasterData", resp.PaymasterData); err != nil {
		return nil, err
	}
	if result.PaymasterVerificationGasLimit, err = decodeRequired(version, "paymasterVerificationGasLimit", resp.PaymasterVerificationGasLimit); err != nil {
		return nil, err
	}
	if result.PaymasterPostOpGasLimit, err = decodeRequired(version, "paymasterPostOpGasLimit", resp.PaymasterPostOpGasLimit); err != nil {
		return nil, err
	}

	return result, nil
}

func decodeGasFields(g *gasFields, version userop.EntryPointVersion, op *userop.UserOperation, result *SponsorUserOperationResult) error {
	var err error
	if result.PreVerificationGas, err = decodeRequired(version, "preVerificationGas", g.PreVerificationGas); err != nil {
		return err
	}
	if result.VerificationGasLimit, err = decodeRequired(version, "verificationGasLimit", g.VerificationGasLimit); err != nil {
		return err
	}
	if result.CallGasLimit, err = decodeRequired(version, "callGasLimit", g.CallGasLimit); err != nil {
		return err
	}

	maxFee, err := decodeOptional(version, "maxFeePerGas", g.MaxFeePerGas)
	if err != nil {
		return err
	}
	maxPriorityFee, err := decodeOptional(version, "maxPriorityFeePerGas", g.MaxPriorityFeePerGas)
	if err != nil {
		return err
	}

	result.MaxFeePerGas = feeOrFallback(maxFee, op.MaxFeePerGas)
	result.MaxPriorityFeePerGas = feeOrFallback(maxPriorityFee, op.MaxPriorityFeePerGas)
	return nil
}

// feeOrFallback prefers the paymaster's recommendation and otherwise copies
// the request's value. It never makes one up.
func feeOrFallback(recommended, requested *big.Int) *big.Int {
	fee, ok := lo.Coalesce(recommended, requested)
	if !ok {
		return nil
	}
	return new(big.Int).Set(fee)
}

func rejectForeignKeys(raw map[string]any, version userop.EntryPointVersion, keys []string) error {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return mismatchError(version, key)
		}
	}
	return nil
}

func decodeRequired(version userop.EntryPointVersion, field, value string) (*big.Int, error) {
	if value == "" {
		return nil, malformedError(version, field, "is missing")
	}
	v, err := userop.DecodeQuantity(value)
	if err != nil {
		return nil, malformedError(version, field, err.Error())
	}
	return v, nil
}

func decodeOptional(version userop.EntryPointVersion, field, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	return decodeRequired(version, field, value)
}

func decodeBytes(version userop.EntryPointVersion, field, value string) ([]byte, error) {
	if value == "" {
		return nil, malformedError(version, field, "is missing")
	}
	b, err := hexutil.Decode(value)
	if err != nil {
		return nil, malformedError(version, field, err.Error())
	}
	return b, nil
}

func decodeAddress(version userop.EntryPointVersion, field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, malformedError(version, field, "is missing")
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, malformedError(version, field, fmt.Sprintf("%q is not an address", value))
	}
	return common.HexToAddress(value), nil
}

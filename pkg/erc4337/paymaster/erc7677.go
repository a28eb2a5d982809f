package paymaster

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mitchellh/mapstructure"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

// PaymasterDataParams are the inputs of the ERC-7677 methods
// pm_getPaymasterStubData and pm_getPaymasterData.
type PaymasterDataParams struct {
	UserOperation       *userop.UserOperation
	SponsorshipPolicyID string
}

// SponsorInfo is the optional sponsor metadata a stub response may carry.
type SponsorInfo struct {
	Name string `mapstructure:"name"`
	Icon string `mapstructure:"icon"`
}

// PaymasterData is an ERC-7677 result. As with SponsorUserOperationResult the
// Version decides which fields are populated.
type PaymasterData struct {
	Version userop.EntryPointVersion

	PaymasterAndData []byte

	Paymaster                     *common.Address
	PaymasterData                 []byte
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int

	Sponsor *SponsorInfo
	IsFinal bool
}

type paymasterDataResponse struct {
	PaymasterAndData              string       `mapstructure:"paymasterAndData"`
	Paymaster                     string       `mapstructure:"paymaster"`
	PaymasterData                 string       `mapstructure:"paymasterData"`
	PaymasterVerificationGasLimit string       `mapstructure:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       string       `mapstructure:"paymasterPostOpGasLimit"`
	Sponsor                       *SponsorInfo `mapstructure:"sponsor"`
	IsFinal                       bool         `mapstructure:"isFinal"`
}

// GetPaymasterStubData returns placeholder paymaster fields used while
// estimating gas.
func (c *Client) GetPaymasterStubData(ctx context.Context, params PaymasterDataParams) (*PaymasterData, error) {
	return c.callPaymasterData(ctx, MethodGetPaymasterStubData, params)
}

// GetPaymasterData returns the final paymaster fields for a fully estimated operation.
func (c *Client) GetPaymasterData(ctx context.Context, params PaymasterDataParams) (*PaymasterData, error) {
	return c.callPaymasterData(ctx, MethodGetPaymasterData, params)
}

func (c *Client) callPaymasterData(ctx context.Context, method string, params PaymasterDataParams) (*PaymasterData, error) {
	op := params.UserOperation
	if op == nil {
		return nil, ErrNilUserOperation
	}
	if op.EntryPointAddress == (common.Address{}) {
		return nil, ErrMissingEntryPoint
	}
	if c.chain == nil || c.chain.ID == nil {
		return nil, ErrMissingChainID
	}

	body, err := op.ToWire()
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	err = c.transport.CallContext(ctx, &raw, method,
		body,
		op.EntryPointAddress.Hex(),
		hexutil.EncodeBig(c.chain.ID),
		PolicyContext(params.SponsorshipPolicyID),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return DecodePaymasterData(raw, op.Version())
}

// DecodePaymasterData reads an ERC-7677 result for the given version.
func DecodePaymasterData(raw map[string]any, version userop.EntryPointVersion) (*PaymasterData, error) {
	if raw == nil {
		return nil, malformedError(version, "", "empty result")
	}

	foreign := v07OnlyKeys
	if version == userop.EntryPointV07 {
		foreign = v06OnlyKeys
	}
	if err := rejectForeignKeys(raw, version, foreign); err != nil {
		return nil, err
	}

	var resp paymasterDataResponse
	if err := mapstructure.Decode(raw, &resp); err != nil {
		return nil, malformedError(version, "", err.Error())
	}

	result := &PaymasterData{Version: version, Sponsor: resp.Sponsor, IsFinal: resp.IsFinal}

	var err error
	if version == userop.EntryPointV06 {
		if result.PaymasterAndData, err = decodeBytes(version, "paymasterAndData", resp.PaymasterAndData); err != nil {
			return nil, err
		}
		return result, nil
	}

	paymaster, err := decodeAddress(version, "paymaster", resp.Paymaster)
	if err != nil {
		return nil, err
	}
	result.Paymaster = &paymaster
	if result.PaymasterData, err = decodeBytes(version, "paymasterData", resp.PaymasterData); err != nil {
		return nil, err
	}
	// Both gas limits are optional in ERC-7677 results.
	if result.PaymasterVerificationGasLimit, err = decodeOptional(version, "paymasterVerificationGasLimit", resp.PaymasterVerificationGasLimit); err != nil {
		return nil, err
	}
	if result.PaymasterPostOpGasLimit, err = decodeOptional(version, "paymasterPostOpGasLimit", resp.PaymasterPostOpGasLimit); err != nil {
		return nil, err
	}

	return result, nil
}

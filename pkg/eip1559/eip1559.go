package eip1559

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

var (
	// Ensure minimum tip of 2 gwei for bundler profitability
	minTip = big.NewInt(2_000_000_000)
	// Ensure minimum maxFeePerGas of 20 gwei for high-basefee chains like Base
	minMaxFee = big.NewInt(20_000_000_000)
)

// FeeSuggester is the part of *ethclient.Client needed to suggest fees.
type FeeSuggester interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

func SuggestFee(ctx context.Context, client FeeSuggester) (*big.Int, *big.Int, error) {
	// Get suggested gas tip cap (maxPriorityFeePerGas)
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}

	// Estimate base fee for the next block
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	// Add 13% buffer to tip for safety
	buffer := new(big.Int).Div(tipCap, big.NewInt(100))
	buffer = new(big.Int).Mul(buffer, big.NewInt(13))
	maxPriorityFeePerGas := new(big.Int).Add(tipCap, buffer)

	if maxPriorityFeePerGas.Cmp(minTip) < 0 {
		maxPriorityFeePerGas = new(big.Int).Set(minTip)
	}

	var maxFeePerGas *big.Int

	if baseFee := header.BaseFee; baseFee != nil {
		// maxFeePerGas = (2 * baseFee) + maxPriorityFeePerGas, so the operation
		// stays includable even if baseFee doubles before it lands.
		maxFeePerGas = new(big.Int).Add(
			new(big.Int).Mul(baseFee, big.NewInt(2)),
			maxPriorityFeePerGas,
		)

		if maxFeePerGas.Cmp(minMaxFee) < 0 {
			maxFeePerGas = new(big.Int).Set(minMaxFee)
		}
	} else {
		// Legacy (pre-EIP-1559) chain - use maxPriorityFeePerGas as maxFeePerGas
		maxFeePerGas = new(big.Int).Set(maxPriorityFeePerGas)
	}

	return maxFeePerGas, maxPriorityFeePerGas, nil
}

// Snapshot is a fee suggestion taken once and reused for every operation
// built afterwards.
type Snapshot struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// TakeSnapshot queries client once.
func TakeSnapshot(ctx context.Context, client FeeSuggester) (*Snapshot, error) {
	maxFee, maxPriorityFee, err := SuggestFee(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest fees: %w", err)
	}
	return &Snapshot{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: maxPriorityFee}, nil
}

// Apply fills the fee fields op does not have yet. op gets its own copies.
func (s *Snapshot) Apply(op *userop.UserOperation) {
	if op.MaxFeePerGas == nil && s.MaxFeePerGas != nil {
		op.MaxFeePerGas = new(big.Int).Set(s.MaxFeePerGas)
	}
	if op.MaxPriorityFeePerGas == nil && s.MaxPriorityFeePerGas != nil {
		op.MaxPriorityFeePerGas = new(big.Int).Set(s.MaxPriorityFeePerGas)
	}
}

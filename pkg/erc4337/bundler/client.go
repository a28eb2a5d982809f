// Provide primitive to work with a bundler RPC
// Bundler RPC is stateless
package bundler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-paymaster/pkg/logger"
)

const (
	DefaultReceiptTimeout      = 15 * time.Second
	DefaultReceiptPollInterval = time.Second
)

var ErrReceiptTimeout = errors.New("timed out waiting for user operation receipt")

// UserOperationReceipt is the subset of eth_getUserOperationReceipt we use.
type UserOperationReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	EntryPoint    common.Address `json:"entryPoint"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Paymaster     common.Address `json:"paymaster"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// BundlerClient defines a client for interacting with an EIP-4337 bundler RPC endpoint.
type BundlerClient struct {
	client *rpc.Client
	logger logger.Logger
}

// NewBundlerClient creates a new BundlerClient that connects to the given URL.
func NewBundlerClient(url string, l logger.Logger) (*BundlerClient, error) {
	// Use DialHTTP instead of Dial as it is more compatible with HTTP-based bundler
	// endpoints.
	c, err := rpc.DialHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("error creating bundler client: %w", err)
	}
	return &BundlerClient{client: c, logger: logger.EnsureLogger(l)}, nil
}

// Close closes the underlying RPC client connection.
func (bc *BundlerClient) Close() {
	bc.client.Close()
}

// SendUserOperation sends a UserOperation to the bundler and returns its hash.
func (bc *BundlerClient) SendUserOperation(ctx context.Context, op *userop.UserOperation) (common.Hash, error) {
	body, err := op.ToWire()
	if err != nil {
		return common.Hash{}, err
	}

	bc.logger.Debug("sending user operation", "sender", op.Sender.Hex(), "entrypoint", op.EntryPointAddress.Hex(), "version", op.Version())

	var hash common.Hash
	if err := bc.client.CallContext(ctx, &hash, "eth_sendUserOperation", body, op.EntryPointAddress.Hex()); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendUserOperation: %w", err)
	}
	return hash, nil
}

// EstimateUserOperationGas estimates the gas required for a UserOperation.
// https://eips.ethereum.org/EIPS/eip-4337#rpc-methods-eth-namespace
// The signature is ignored by the bundler but might still have to be a
// "semi-valid" one of the right length.
func (bc *BundlerClient) EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation) (*GasEstimation, error) {
	body, err := op.ToWire()
	if err != nil {
		return nil, err
	}

	var resp gasEstimationResponse
	if err := bc.client.CallContext(ctx, &resp, "eth_estimateUserOperationGas", body, op.EntryPointAddress.Hex()); err != nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas: %w", err)
	}

	estimation := &GasEstimation{}
	fields := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"preVerificationGas", resp.PreVerificationGas, &estimation.PreVerificationGas},
		{"verificationGasLimit", resp.VerificationGasLimit, &estimation.VerificationGasLimit},
		{"callGasLimit", resp.CallGasLimit, &estimation.CallGasLimit},
		{"paymasterVerificationGasLimit", resp.PaymasterVerificationGasLimit, &estimation.PaymasterVerificationGasLimit},
		{"paymasterPostOpGasLimit", resp.PaymasterPostOpGasLimit, &estimation.PaymasterPostOpGasLimit},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		v, err := userop.DecodeQuantity(f.value)
		if err != nil {
			return nil, fmt.Errorf("eth_estimateUserOperationGas %s: %w", f.name, err)
		}
		*f.dst = v
	}

	if estimation.PreVerificationGas == nil || estimation.VerificationGasLimit == nil || estimation.CallGasLimit == nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas: incomplete gas estimation")
	}
	return estimation, nil
}

// GetUserOperationReceipt fetches the receipt of a UserOperation. A nil
// receipt without error means the operation is not included yet.
func (bc *BundlerClient) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	var receipt *UserOperationReceipt
	if err := bc.client.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", hash.Hex()); err != nil {
		return nil, fmt.Errorf("eth_getUserOperationReceipt: %w", err)
	}
	return receipt, nil
}

// WaitForUserOperationReceipt polls for the receipt of hash until it shows up
// or timeout elapses. Zero values select DefaultReceiptTimeout and
// DefaultReceiptPollInterval.
func (bc *BundlerClient) WaitForUserOperationReceipt(ctx context.Context, hash common.Hash, timeout, pollInterval time.Duration) (*UserOperationReceipt, error) {
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultReceiptPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := bc.GetUserOperationReceipt(ctx, hash)
		if err != nil && ctx.Err() == nil {
			bc.logger.Warn("failed to fetch user operation receipt", "userOpHash", hash.Hex(), "err", err)
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash.Hex(), timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

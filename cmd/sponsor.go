package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/k0kubun/pp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-paymaster/core/config"
	"github.com/AvaProtocol/ap-paymaster/metrics"
	"github.com/AvaProtocol/ap-paymaster/pkg/eip1559"
	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/paymaster"
	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

type sponsorOptions struct {
	userOpPath string
	sender     string
	callData   string
	nonce      int64
	estimate   bool
	send       bool
}

var (
	sponsorOpts = sponsorOptions{}

	sponsorCmd = &cobra.Command{
		Use:   "sponsor",
		Short: "Get a user operation sponsored",
		Long: `Take a fee snapshot from the node, ask the paymaster to sponsor the user
operation and print the result.

The operation is read from --userop (JSON in the eth_sendUserOperation shape)
or built from --sender, --call-data and --nonce. With --estimate the bundler
fills the gas limits the operation leaves unset before the paymaster is asked.
With --send a signed operation is submitted to the bundler and its receipt
awaited.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSponsor(cmd.Context(), configPath, sponsorOpts)
		},
	}
)

func init() {
	sponsorCmd.Flags().StringVar(&sponsorOpts.userOpPath, "userop", "", "path to a user operation JSON file")
	sponsorCmd.Flags().StringVar(&sponsorOpts.sender, "sender", "", "smart account address")
	sponsorCmd.Flags().StringVar(&sponsorOpts.callData, "call-data", "0x", "hex encoded call data")
	sponsorCmd.Flags().Int64Var(&sponsorOpts.nonce, "nonce", 0, "account nonce")
	sponsorCmd.Flags().BoolVar(&sponsorOpts.estimate, "estimate", false, "estimate unset gas limits with the bundler before sponsoring")
	sponsorCmd.Flags().BoolVar(&sponsorOpts.send, "send", false, "submit the sponsored operation to the bundler")
	rootCmd.AddCommand(sponsorCmd)
}

func runSponsor(ctx context.Context, configPath string, opts sponsorOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}
	logger := cfg.Logger

	node, err := ethclient.DialContext(ctx, cfg.NodeURL)
	if err != nil {
		return fmt.Errorf("cannot connect to node: %w", err)
	}
	defer node.Close()

	chainID, err := node.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("cannot get chain id: %w", err)
	}

	snapshot, err := eip1559.TakeSnapshot(ctx, node)
	if err != nil {
		return err
	}
	logger.Info("fee snapshot taken", "chainId", chainID, "maxFeePerGas", gwei(snapshot.MaxFeePerGas), "maxPriorityFeePerGas", gwei(snapshot.MaxPriorityFeePerGas))

	op, err := buildUserOperation(opts, cfg.EntryPointAddress)
	if err != nil {
		return err
	}
	snapshot.Apply(op)

	var bundlerClient *bundler.BundlerClient
	if opts.estimate || opts.send {
		if cfg.BundlerURL == "" {
			return fmt.Errorf("--estimate and --send require bundler_url or %s", config.EnvBundlerURL)
		}
		if bundlerClient, err = bundler.NewBundlerClient(cfg.BundlerURL, logger); err != nil {
			return err
		}
		defer bundlerClient.Close()
	}

	if opts.estimate {
		if err := estimateGas(ctx, bundlerClient, op); err != nil {
			return err
		}
	}

	var httpOpts []paymaster.HTTPOption
	if cfg.PaymasterAPIKey != "" {
		httpOpts = append(httpOpts, paymaster.WithHeader("Authorization", "Bearer "+cfg.PaymasterAPIKey))
	}
	client, err := paymaster.NewHTTPClient(cfg.PaymasterURL, paymaster.Config{
		Chain:  &paymaster.Chain{ID: chainID},
		Logger: logger,
	}, httpOpts...)
	if err != nil {
		return err
	}
	defer client.Close()

	reg := prometheus.NewRegistry()
	if cfg.EigenMetricsIpPortAddress != "" {
		srv, err := startMetricsServer(cfg.EigenMetricsIpPortAddress, reg, logger)
		if err != nil {
			return fmt.Errorf("cannot start metrics server: %w", err)
		}
		defer srv.Close()
		logger.Info("serving metrics", "addr", srv.Addr())
	}

	sponsor := paymaster.NewFallbackSponsor(client, cfg.SponsorshipPolicyID,
		paymaster.WithLogger(logger),
		paymaster.WithMetrics(metrics.NewPaymasterMetrics(reg)),
	)

	result, err := sponsor.SponsorAndApply(ctx, op)
	if err != nil {
		return err
	}

	fmt.Printf("Sponsored user operation (EntryPoint v%s)\n", result.Version)
	fmt.Printf("  maxFeePerGas:         %s\n", gwei(op.MaxFeePerGas))
	fmt.Printf("  maxPriorityFeePerGas: %s\n", gwei(op.MaxPriorityFeePerGas))
	pp.Println(result)

	if !opts.send {
		return nil
	}
	return sendUserOperation(ctx, bundlerClient, cfg.ReceiptTimeout, op)
}

// gasEstimator is the part of the bundler client used before sponsoring.
type gasEstimator interface {
	EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation) (*bundler.GasEstimation, error)
}

// estimateGas asks the bundler for the gas limits op leaves unset, so the
// paymaster signs over real limits instead of zeros.
func estimateGas(ctx context.Context, estimator gasEstimator, op *userop.UserOperation) error {
	if op.CallGasLimit != nil && op.VerificationGasLimit != nil && op.PreVerificationGas != nil {
		return nil
	}

	estimation, err := estimator.EstimateUserOperationGas(ctx, op)
	if err != nil {
		return err
	}
	estimation.ApplyTo(op)
	return nil
}

func sendUserOperation(ctx context.Context, bundlerClient *bundler.BundlerClient, receiptTimeout time.Duration, op *userop.UserOperation) error {
	if len(op.Signature) == 0 {
		return fmt.Errorf("--send requires a signed user operation")
	}

	hash, err := bundlerClient.SendUserOperation(ctx, op)
	if err != nil {
		return err
	}
	fmt.Printf("UserOperation hash: %s\n", hash.Hex())

	receipt, err := bundlerClient.WaitForUserOperationReceipt(ctx, hash, receiptTimeout, 0)
	if err != nil {
		return err
	}
	fmt.Printf("Included in transaction %s (success: %t)\n", receipt.Receipt.TransactionHash.Hex(), receipt.Success)
	return nil
}

func buildUserOperation(opts sponsorOptions, entryPoint common.Address) (*userop.UserOperation, error) {
	if opts.userOpPath != "" {
		return loadUserOperation(opts.userOpPath, entryPoint)
	}

	f := userOpFile{
		Sender:   opts.sender,
		Nonce:    fmt.Sprintf("0x%x", opts.nonce),
		CallData: opts.callData,
	}
	return f.toUserOperation(entryPoint)
}

// gwei renders a wei amount as gwei, "-" when unset.
func gwei(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	return decimal.NewFromBigInt(wei, -9).String() + " gwei"
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-paymaster/pkg/logger"
)

const defaultReceiptTimeout = 15 * time.Second

// Config contains everything the sponsor command needs: where the node,
// bundler and paymaster live, and which private sponsorship policy to fall
// back to.
type Config struct {
	Logger sdklogging.Logger

	NodeURL             string
	BundlerURL          string
	PaymasterURL        string
	PaymasterAPIKey     string `json:"-"`
	SponsorshipPolicyID string

	EntryPointVersion userop.EntryPointVersion
	EntryPointAddress common.Address

	ReceiptTimeout            time.Duration
	EigenMetricsIpPortAddress string
}

// These are read from configPath
type ConfigRaw struct {
	Environment         sdklogging.LogLevel `yaml:"environment" validate:"omitempty,oneof=development production"`
	NodeURL             string              `yaml:"node_url" validate:"required,url"`
	BundlerURL          string              `yaml:"bundler_url" validate:"omitempty,url"`
	PaymasterURL        string              `yaml:"paymaster_url" validate:"required,url"`
	PaymasterAPIKey     string              `yaml:"paymaster_api_key"`
	SponsorshipPolicyID string              `yaml:"sponsorship_policy_id"`
	EntryPointVersion   string              `yaml:"entrypoint_version" validate:"omitempty,oneof=0.6 0.7"`
	// Go duration string, e.g. "15s".
	ReceiptTimeout            string `yaml:"receipt_timeout"`
	EigenMetricsIpPortAddress string `yaml:"eigen_metrics_ip_port_address" validate:"omitempty,hostname_port"`
}

// NewConfig reads the YAML file at configFilePath, lets the environment
// override it and validates the result. An empty path configures from the
// environment only.
func NewConfig(configFilePath string) (*Config, error) {
	var configRaw ConfigRaw
	if configFilePath != "" {
		if err := readYamlConfig(configFilePath, &configRaw); err != nil {
			return nil, err
		}
	}
	applyEnv(&configRaw)

	return configRaw.build()
}

func readYamlConfig(path string, out *ConfigRaw) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (raw ConfigRaw) build() (*Config, error) {
	if err := validator.New().Struct(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	environment := raw.Environment
	if environment == "" {
		environment = sdklogging.Production
	}
	l, err := logger.New(environment)
	if err != nil {
		return nil, err
	}

	entryPoint, err := userop.EntryPointFor(raw.EntryPointVersion)
	if err != nil {
		return nil, err
	}

	receiptTimeout := defaultReceiptTimeout
	if raw.ReceiptTimeout != "" {
		if receiptTimeout, err = time.ParseDuration(raw.ReceiptTimeout); err != nil {
			return nil, fmt.Errorf("invalid receipt_timeout %q: %w", raw.ReceiptTimeout, err)
		}
	}

	return &Config{
		Logger:                    l,
		NodeURL:                   raw.NodeURL,
		BundlerURL:                raw.BundlerURL,
		PaymasterURL:              raw.PaymasterURL,
		PaymasterAPIKey:           raw.PaymasterAPIKey,
		SponsorshipPolicyID:       raw.SponsorshipPolicyID,
		EntryPointVersion:         userop.VersionOf(entryPoint),
		EntryPointAddress:         entryPoint,
		ReceiptTimeout:            receiptTimeout,
		EigenMetricsIpPortAddress: raw.EigenMetricsIpPortAddress,
	}, nil
}

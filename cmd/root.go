package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	configPath = "./config/paymaster.yaml"
	rootCmd    = &cobra.Command{
		Use:   "ap-paymaster",
		Short: "ERC-4337 paymaster sponsorship CLI",
		Long: `Get user operations sponsored by a paymaster service.

Public sponsorship policies are tried first, then the private policy from
the config file or SPONSORSHIP_POLICY_ID.
`,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/paymaster.yaml", "Path to config file")
}

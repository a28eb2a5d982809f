package config

import "os"

// Environment variables overriding the config file.
const (
	EnvNodeURL             = "NODE_URL"
	EnvBundlerURL          = "BUNDLER_URL"
	EnvPaymasterURL        = "PAYMASTER_URL"
	EnvSponsorshipPolicyID = "SPONSORSHIP_POLICY_ID"
	EnvEntryPointVersion   = "ENTRYPOINT_VERSION"
)

func applyEnv(raw *ConfigRaw) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{EnvNodeURL, &raw.NodeURL},
		{EnvBundlerURL, &raw.BundlerURL},
		{EnvPaymasterURL, &raw.PaymasterURL},
		{EnvSponsorshipPolicyID, &raw.SponsorshipPolicyID},
		{EnvEntryPointVersion, &raw.EntryPointVersion},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
}

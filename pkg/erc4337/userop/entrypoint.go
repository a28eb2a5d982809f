package userop

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EntryPointVersion identifies the ERC-4337 entry point protocol a UserOperation targets.
type EntryPointVersion string

const (
	EntryPointV06 EntryPointVersion = "0.6"
	EntryPointV07 EntryPointVersion = "0.7"
)

var (
	// EntryPoint06Address is the canonical EntryPoint v0.6 deployment, same on every chain.
	EntryPoint06Address = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	// EntryPoint07Address is the canonical EntryPoint v0.7 deployment.
	EntryPoint07Address = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
)

// VersionOf returns the protocol version for an entry point address. Only the
// canonical v0.6 address maps to 0.6, anything else is treated as 0.7.
func VersionOf(entryPoint common.Address) EntryPointVersion {
	if entryPoint == EntryPoint06Address {
		return EntryPointV06
	}
	return EntryPointV07
}

// EntryPointFor returns the canonical entry point address for a version string.
func EntryPointFor(version string) (common.Address, error) {
	switch EntryPointVersion(version) {
	case EntryPointV06:
		return EntryPoint06Address, nil
	case EntryPointV07, "":
		return EntryPoint07Address, nil
	}
	return common.Address{}, fmt.Errorf("unsupported entry point version %q", version)
}

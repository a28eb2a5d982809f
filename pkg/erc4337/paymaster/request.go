package paymaster

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

const (
	MethodSponsorUserOperation = "pm_sponsorUserOperation"
	MethodGetPaymasterStubData = "pm_getPaymasterStubData"
	MethodGetPaymasterData     = "pm_getPaymasterData"

	// SponsorshipPolicyIDKey is the policy context key understood by the paymaster service.
	SponsorshipPolicyIDKey = "sponsorshipPolicyId"
)

// SponsorUserOperationParams asks the paymaster to sponsor UserOperation. An
// empty SponsorshipPolicyID lets the service pick any public policy.
type SponsorUserOperationParams struct {
	UserOperation       *userop.UserOperation
	SponsorshipPolicyID string
}

// RPCRequest is a method call with positional parameters.
type RPCRequest struct {
	Method string
	Params []any
}

// PolicyContext returns the policy context parameter. It is never nil: without
// a policy id an empty object is sent.
func PolicyContext(sponsorshipPolicyID string) map[string]string {
	context := map[string]string{}
	if sponsorshipPolicyID != "" {
		context[SponsorshipPolicyIDKey] = sponsorshipPolicyID
	}
	return context
}

// BuildSponsorRequest prepares the pm_sponsorUserOperation call for params.
//
// Absent callGasLimit, verificationGasLimit and preVerificationGas are set to
// zero on params.UserOperation itself, so the caller observes the defaults
// after the call. The entry point goes out as the second parameter and is not
// repeated in the operation body.
func BuildSponsorRequest(params SponsorUserOperationParams) (*RPCRequest, error) {
	op := params.UserOperation
	if op == nil {
		return nil, ErrNilUserOperation
	}
	if op.EntryPointAddress == (common.Address{}) {
		return nil, ErrMissingEntryPoint
	}

	op.DefaultGasLimits()

	body, err := op.ToWire()
	if err != nil {
		return nil, err
	}

	return &RPCRequest{
		Method: MethodSponsorUserOperation,
		Params: []any{
			body,
			op.EntryPointAddress.Hex(),
			PolicyContext(params.SponsorshipPolicyID),
		},
	}, nil
}

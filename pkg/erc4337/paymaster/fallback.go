package paymaster

import (
	"context"
	"errors"
	"fmt"

	"github.com/AvaProtocol/ap-paymaster/metrics"
	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
	"github.com/AvaProtocol/ap-paymaster/pkg/logger"
)

// Sponsor is anything able to run pm_sponsorUserOperation. *Client is the
// production implementation.
type Sponsor interface {
	SponsorUserOperation(ctx context.Context, params SponsorUserOperationParams) (*SponsorUserOperationResult, error)
}

// FallbackSponsor resolves the sponsorship of one operation in two steps.
// It first asks without a policy id so publicly funded policies (ecosystem
// grants and the like) get a chance to pay. Only when that attempt fails does
// it ask again with the integrator's own policy id. There is never a third
// attempt.
type FallbackSponsor struct {
	sponsor  Sponsor
	policyID string
	logger   logger.Logger
	metrics  metrics.SponsorshipMetrics
}

type FallbackOption func(*FallbackSponsor)

func WithLogger(l logger.Logger) FallbackOption {
	return func(f *FallbackSponsor) { f.logger = logger.EnsureLogger(l) }
}

func WithMetrics(m metrics.SponsorshipMetrics) FallbackOption {
	return func(f *FallbackSponsor) {
		if m != nil {
			f.metrics = m
		}
	}
}

// NewFallbackSponsor creates a FallbackSponsor. An empty policyID disables the
// private attempt.
func NewFallbackSponsor(sponsor Sponsor, policyID string, opts ...FallbackOption) *FallbackSponsor {
	f := &FallbackSponsor{
		sponsor:  sponsor,
		policyID: policyID,
		logger:   logger.Nop(),
		metrics:  metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Sponsor returns the sponsorship for op.
//
// Any failure of the public attempt leads to the private attempt: a transport
// error, a rejection by the service or a result that cannot be read. A
// response shaped for the other entry point version, or an operation that
// cannot be encoded, is returned immediately since asking again would not
// change anything. When
// the private attempt fails its error is the one returned; the public
// attempt's error is dropped.
func (f *FallbackSponsor) Sponsor(ctx context.Context, op *userop.UserOperation) (*SponsorUserOperationResult, error) {
	if op == nil {
		return nil, ErrNilUserOperation
	}

	result, publicErr := f.attempt(ctx, op, "")
	if publicErr == nil {
		return result, nil
	}
	if !retryable(publicErr) {
		return nil, publicErr
	}
	if f.policyID == "" {
		return nil, fmt.Errorf("%w: %w", ErrSponsorshipFailed, publicErr)
	}

	f.logger.Debug("no public sponsorship policy applied, retrying with private policy",
		"sender", op.Sender.Hex(), "policyId", f.policyID, "err", publicErr)
	f.metrics.IncSponsorFallback()

	result, privateErr := f.attempt(ctx, op, f.policyID)
	if privateErr != nil {
		f.logger.Warn("private sponsorship policy failed", "sender", op.Sender.Hex(), "policyId", f.policyID, "err", privateErr)
		return nil, fmt.Errorf("%w: %w", ErrSponsorshipFailed, privateErr)
	}
	return result, nil
}

// SponsorAndApply runs Sponsor and writes the result into op.
func (f *FallbackSponsor) SponsorAndApply(ctx context.Context, op *userop.UserOperation) (*SponsorUserOperationResult, error) {
	result, err := f.Sponsor(ctx, op)
	if err != nil {
		return nil, err
	}
	if err := result.ApplyTo(op); err != nil {
		return nil, err
	}
	return result, nil
}

func (f *FallbackSponsor) attempt(ctx context.Context, op *userop.UserOperation, policyID string) (*SponsorUserOperationResult, error) {
	policy := metrics.PolicyPublic
	if policyID != "" {
		policy = metrics.PolicyPrivate
	}

	result, err := f.sponsor.SponsorUserOperation(ctx, SponsorUserOperationParams{
		UserOperation:       op,
		SponsorshipPolicyID: policyID,
	})
	if err != nil {
		f.metrics.IncSponsorAttempt(policy, metrics.StatusFailure)
		return nil, err
	}

	f.metrics.IncSponsorAttempt(policy, metrics.StatusSuccess)
	return result, nil
}

// retryable tells whether a failed public attempt may succeed with the
// private policy.
func retryable(err error) bool {
	switch {
	case IsDecodeMismatch(err),
		errors.Is(err, ErrNilUserOperation),
		errors.Is(err, ErrMissingEntryPoint),
		errors.Is(err, userop.ErrNegativeQuantity):
		return false
	}
	return true
}

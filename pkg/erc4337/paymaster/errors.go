package paymaster

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

var (
	ErrNilUserOperation  = errors.New("user operation is nil")
	ErrMissingEntryPoint = errors.New("user operation has no entry point address")
	ErrMissingTransport  = errors.New("paymaster client requires a transport")
	ErrMissingChainID    = errors.New("paymaster client has no chain id configured")
	// ErrDecodeMismatch means the response shape does not belong to the entry
	// point version of the request. Retrying will not fix it.
	ErrDecodeMismatch = errors.New("paymaster response does not match entry point version")
	// ErrMalformedResponse means the result is empty, lacks a mandatory field
	// or carries a value that cannot be read.
	ErrMalformedResponse = errors.New("malformed paymaster response")
	// ErrSponsorshipFailed wraps the error of the last sponsorship attempt.
	ErrSponsorshipFailed = errors.New("paymaster sponsorship failed")
	ErrVersionMismatch   = errors.New("sponsorship result version differs from user operation version")
)

// RPCError is a JSON-RPC error object returned by the paymaster service, for
// example when no sponsorship policy applies to the operation.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// ErrorCode and ErrorData make RPCError satisfy rpc.Error and rpc.DataError,
// so both transports report remote rejections the same way.
func (e *RPCError) ErrorCode() int { return e.Code }

func (e *RPCError) ErrorData() interface{} { return e.Data }

// HTTPError is returned when the paymaster endpoint answers with a non 200 status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("paymaster http status %d: %s", e.StatusCode, e.Body)
}

// DecodeError describes why a paymaster response could not be read as the
// shape of the request's entry point version. Err is ErrDecodeMismatch or
// ErrMalformedResponse; nil counts as malformed.
type DecodeError struct {
	Version userop.EntryPointVersion
	Field   string
	Reason  string
	Err     error
}

func mismatchError(version userop.EntryPointVersion, field string) *DecodeError {
	return &DecodeError{Version: version, Field: field, Reason: "is not part of this version's response", Err: ErrDecodeMismatch}
}

func malformedError(version userop.EntryPointVersion, field, reason string) *DecodeError {
	return &DecodeError{Version: version, Field: field, Reason: reason, Err: ErrMalformedResponse}
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s (v%s): %s", e.Unwrap(), e.Version, e.Reason)
	}
	return fmt.Sprintf("%s (v%s): %s %s", e.Unwrap(), e.Version, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	if e.Err == nil {
		return ErrMalformedResponse
	}
	return e.Err
}

// IsDecodeMismatch reports whether err is a response shape mismatch.
func IsDecodeMismatch(err error) bool {
	return errors.Is(err, ErrDecodeMismatch)
}

// IsMalformedResponse reports whether err is an unreadable paymaster result.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsRemoteRejection reports whether err carries a JSON-RPC error from the
// paymaster service, whichever transport produced it.
func IsRemoteRejection(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

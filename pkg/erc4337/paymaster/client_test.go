package paymaster

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/ap-paymaster/pkg/erc4337/userop"
)

func TestNewClientDefaults(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingTransport)

	account := common.HexToAddress("0x981E18d5AadE83620A6Bd21990b5Da0c797e1e5b")
	c, err := NewClient(Config{
		Transport:       NewHTTPTransport("http://localhost:8545"),
		Chain:           &Chain{ID: big.NewInt(11155111), Name: "sepolia"},
		Account:         &account,
		CacheTime:       time.Second,
		PollingInterval: 4 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultKey, c.Key())
	assert.Equal(t, DefaultName, c.Name())
	assert.Equal(t, ClientType, c.Type())
	assert.Equal(t, "sepolia", c.Chain().Name)
	assert.Equal(t, account, *c.Account())
	assert.Equal(t, time.Second, c.CacheTime())
	assert.Equal(t, 4*time.Second, c.PollingInterval())

	c, err = NewClient(Config{Transport: NewHTTPTransport("http://localhost:8545"), Key: "candide", Name: "Candide"})
	require.NoError(t, err)
	assert.Equal(t, "candide", c.Key())
	assert.Equal(t, "Candide", c.Name())
}

func TestNewClientDisablesRetries(t *testing.T) {
	transport := NewHTTPTransport("http://localhost:8545", WithRetries(3))
	c, err := NewClient(Config{Transport: transport})
	require.NoError(t, err)

	httpTransport, ok := c.Transport().(*HTTPTransport)
	require.True(t, ok)
	assert.Equal(t, 0, httpTransport.RetryCount())
	assert.Equal(t, 3, transport.RetryCount(), "the caller's transport is left untouched")
}

func TestClientFailedCallIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	c, err := NewHTTPClient(server.URL, Config{}, WithRetries(5))
	require.NoError(t, err)

	_, err = c.SponsorUserOperation(context.Background(), SponsorUserOperationParams{
		UserOperation: testOperation(userop.EntryPoint07Address),
	})
	require.Error(t, err)
	assert.False(t, IsRemoteRejection(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestClientSponsorUserOperationV06(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		return v06Response(), nil
	})

	c, err := NewHTTPClient(fp.URL(), Config{})
	require.NoError(t, err)

	op := testOperation(userop.EntryPoint06Address)
	result, err := c.SponsorUserOperation(context.Background(), SponsorUserOperationParams{UserOperation: op})
	require.NoError(t, err)

	assert.Equal(t, userop.EntryPointV06, result.Version)
	assert.NotEmpty(t, result.PaymasterAndData)
	assert.Nil(t, result.Paymaster)
	assert.Equal(t, 0, result.CallGasLimit.Sign())

	calls := fp.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, MethodSponsorUserOperation, calls[0].Method)
	require.Len(t, calls[0].Params, 3)

	var body map[string]any
	calls[0].Param(t, 0, &body)
	assert.Equal(t, "0x0", body["callGasLimit"])
	assert.Equal(t, "0x0", body["verificationGasLimit"])
	assert.Equal(t, "0x0", body["preVerificationGas"])
	assert.Equal(t, "0x", body["paymasterAndData"])

	var entryPoint string
	calls[0].Param(t, 1, &entryPoint)
	assert.Equal(t, userop.EntryPoint06Address.Hex(), entryPoint)

	var policy map[string]string
	calls[0].Param(t, 2, &policy)
	assert.Empty(t, policy)
}

func TestClientFallbackToPrivatePolicy(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		var policy map[string]string
		_ = json.Unmarshal(call.Params[2], &policy)
		if policy[SponsorshipPolicyIDKey] == "" {
			return nil, &RPCError{Code: -32001, Message: "no public sponsorship policy applies"}
		}
		return v07Response(), nil
	})

	c, err := NewHTTPClient(fp.URL(), Config{})
	require.NoError(t, err)

	result, err := NewFallbackSponsor(c, "pol-123").Sponsor(context.Background(), testOperation(userop.EntryPoint07Address))
	require.NoError(t, err)
	assert.Equal(t, userop.EntryPointV07, result.Version)
	assert.Nil(t, result.PaymasterAndData)
	require.NotNil(t, result.Paymaster)

	calls := fp.Calls()
	require.Len(t, calls, 2)

	var public, private map[string]string
	calls[0].Param(t, 2, &public)
	calls[1].Param(t, 2, &private)
	assert.Empty(t, public)
	assert.Equal(t, map[string]string{"sponsorshipPolicyId": "pol-123"}, private)
}

func TestClientFallbackBothRejected(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		if n == 0 {
			return nil, &RPCError{Code: -32001, Message: "no public sponsorship policy applies"}
		}
		return nil, &RPCError{Code: -32002, Message: "policy budget exhausted"}
	})

	c, err := NewHTTPClient(fp.URL(), Config{})
	require.NoError(t, err)

	_, err = NewFallbackSponsor(c, "pol-123").Sponsor(context.Background(), testOperation(userop.EntryPoint07Address))
	require.Error(t, err)
	assert.Len(t, fp.Calls(), 2)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32002, rpcErr.Code)
	assert.Contains(t, err.Error(), "policy budget exhausted")
	assert.NotContains(t, err.Error(), "no public sponsorship policy applies")
}

func TestClientDecodeMismatchStopsFallback(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		return v07Response(), nil
	})

	c, err := NewHTTPClient(fp.URL(), Config{})
	require.NoError(t, err)

	_, err = NewFallbackSponsor(c, "pol-123").Sponsor(context.Background(), testOperation(userop.EntryPoint06Address))
	require.Error(t, err)
	assert.True(t, IsDecodeMismatch(err))
	assert.Len(t, fp.Calls(), 1)
}

func TestClientUnreadablePublicResultFallsBack(t *testing.T) {
	missingPaymasterData := v07Response()
	delete(missingPaymasterData, "paymasterData")
	badGas := v07Response()
	badGas["callGasLimit"] = "0xzz"

	testCases := []struct {
		name   string
		public any
	}{
		{"null result", nil},
		{"missing paymasterData", missingPaymasterData},
		{"invalid gas quantity", badGas},
		{"string result", "0xdeadbeef"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
				if n == 0 {
					return tc.public, nil
				}
				return v07Response(), nil
			})

			c, err := NewHTTPClient(fp.URL(), Config{})
			require.NoError(t, err)

			result, err := NewFallbackSponsor(c, "pol-123").Sponsor(context.Background(), testOperation(userop.EntryPoint07Address))
			require.NoError(t, err)
			assert.Equal(t, userop.EntryPointV07, result.Version)

			calls := fp.Calls()
			require.Len(t, calls, 2)
			var private map[string]string
			calls[1].Param(t, 2, &private)
			assert.Equal(t, map[string]string{"sponsorshipPolicyId": "pol-123"}, private)
		})
	}
}

func TestDialRPCClient(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		if n == 0 {
			return nil, &RPCError{Code: -32001, Message: "no public sponsorship policy applies"}
		}
		return v07Response(), nil
	})

	c, err := DialRPC(context.Background(), fp.URL(), Config{})
	require.NoError(t, err)
	defer c.Close()

	op := testOperation(userop.EntryPoint07Address)
	_, err = c.SponsorUserOperation(context.Background(), SponsorUserOperationParams{UserOperation: op})
	require.Error(t, err)
	assert.True(t, IsRemoteRejection(err))

	result, err := c.SponsorUserOperation(context.Background(), SponsorUserOperationParams{UserOperation: op, SponsorshipPolicyID: "pol-123"})
	require.NoError(t, err)
	assert.Equal(t, int64(0xafc8), result.PaymasterVerificationGasLimit.Int64())
}

func TestClientGetPaymasterStubData(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		return map[string]any{
			"paymaster":                     "0x3fE285DcD76FcCe4aC92D38A6F2b8e964041e020",
			"paymasterData":                 "0x00",
			"paymasterVerificationGasLimit": "0xafc8",
			"sponsor":                       map[string]any{"name": "Candide", "icon": "data:image/png;base64,AA=="},
			"isFinal":                       false,
		}, nil
	})

	c, err := NewHTTPClient(fp.URL(), Config{Chain: &Chain{ID: big.NewInt(421614)}})
	require.NoError(t, err)

	data, err := c.GetPaymasterStubData(context.Background(), PaymasterDataParams{
		UserOperation:       testOperation(userop.EntryPoint07Address),
		SponsorshipPolicyID: "pol-123",
	})
	require.NoError(t, err)

	assert.Equal(t, userop.EntryPointV07, data.Version)
	assert.Equal(t, int64(0xafc8), data.PaymasterVerificationGasLimit.Int64())
	assert.Nil(t, data.PaymasterPostOpGasLimit)
	require.NotNil(t, data.Sponsor)
	assert.Equal(t, "Candide", data.Sponsor.Name)
	assert.False(t, data.IsFinal)

	calls := fp.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, MethodGetPaymasterStubData, calls[0].Method)
	require.Len(t, calls[0].Params, 4)

	var chainID string
	calls[0].Param(t, 2, &chainID)
	assert.Equal(t, "0x66eee", chainID)

	var policy map[string]string
	calls[0].Param(t, 3, &policy)
	assert.Equal(t, "pol-123", policy[SponsorshipPolicyIDKey])
}

func TestClientGetPaymasterData(t *testing.T) {
	fp := newFakePaymaster(t, func(n int, call recordedCall) (any, *RPCError) {
		return map[string]any{"paymasterAndData": "0xdeadbeef"}, nil
	})

	c, err := NewHTTPClient(fp.URL(), Config{})
	require.NoError(t, err)

	_, err = c.GetPaymasterData(context.Background(), PaymasterDataParams{UserOperation: testOperation(userop.EntryPoint06Address)})
	assert.ErrorIs(t, err, ErrMissingChainID)
	assert.Empty(t, fp.Calls())

	c, err = NewHTTPClient(fp.URL(), Config{Chain: &Chain{ID: big.NewInt(1)}})
	require.NoError(t, err)

	data, err := c.GetPaymasterData(context.Background(), PaymasterDataParams{UserOperation: testOperation(userop.EntryPoint06Address)})
	require.NoError(t, err)
	assert.Equal(t, common.FromHex("0xdeadbeef"), data.PaymasterAndData)
	assert.Equal(t, MethodGetPaymasterData, fp.Calls()[0].Method)
}

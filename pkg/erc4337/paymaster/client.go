// Package paymaster talks to an ERC-4337 paymaster service to get user
// operations sponsored.
//
// The Client wraps a JSON-RPC transport and exposes pm_sponsorUserOperation
// along with the ERC-7677 stub/data methods. FallbackSponsor sits on top of it
// and first tries the publicly configured sponsorship policies, then the
// integrator's private policy.
package paymaster

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/ap-paymaster/pkg/logger"
)

const (
	DefaultKey  = "public"
	DefaultName = "Candide Paymaster Client"
	ClientType  = "candidePaymasterClient"
)

// Chain identifies the network operations are sponsored on.
type Chain struct {
	ID   *big.Int
	Name string
}

// Config is everything needed to build a Client. Account, CacheTime,
// PollingInterval, Key and Name are kept as given and only exposed back.
type Config struct {
	Transport       Transport
	Chain           *Chain
	Account         *common.Address
	CacheTime       time.Duration
	PollingInterval time.Duration
	Key             string
	Name            string
	Logger          logger.Logger
}

// Client is a paymaster RPC handle. It holds no mutable state, so a single
// Client can serve concurrent sponsorship calls.
type Client struct {
	transport       Transport
	chain           *Chain
	account         *common.Address
	cacheTime       time.Duration
	pollingInterval time.Duration
	key             string
	name            string
	logger          logger.Logger
}

// NewClient creates a Client from cfg. A transport that retries on its own is
// replaced by a copy with zero retries: failed calls are reported straight
// back, retrying is FallbackSponsor's business.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, ErrMissingTransport
	}

	transport := cfg.Transport
	if rc, ok := transport.(RetryConfigurable); ok {
		transport = rc.WithRetryCount(0)
	}

	c := &Client{
		transport:       transport,
		chain:           cfg.Chain,
		account:         cfg.Account,
		cacheTime:       cfg.CacheTime,
		pollingInterval: cfg.PollingInterval,
		key:             cfg.Key,
		name:            cfg.Name,
		logger:          logger.EnsureLogger(cfg.Logger),
	}
	if c.key == "" {
		c.key = DefaultKey
	}
	if c.name == "" {
		c.name = DefaultName
	}

	return c, nil
}

// NewHTTPClient creates a Client that reaches the paymaster at url over HTTP.
func NewHTTPClient(url string, cfg Config, opts ...HTTPOption) (*Client, error) {
	cfg.Transport = NewHTTPTransport(url, opts...)
	return NewClient(cfg)
}

// DialRPC creates a Client on top of go-ethereum's rpc client, which also
// supports websocket and IPC endpoints.
func DialRPC(ctx context.Context, url string, cfg Config) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error creating paymaster rpc client: %w", err)
	}
	cfg.Transport = rpcClient
	return NewClient(cfg)
}

func (c *Client) Key() string                    { return c.key }
func (c *Client) Name() string                   { return c.name }
func (c *Client) Type() string                   { return ClientType }
func (c *Client) Chain() *Chain                  { return c.chain }
func (c *Client) Account() *common.Address       { return c.account }
func (c *Client) CacheTime() time.Duration       { return c.cacheTime }
func (c *Client) PollingInterval() time.Duration { return c.pollingInterval }
func (c *Client) Transport() Transport           { return c.transport }

// Close closes the underlying transport.
func (c *Client) Close() {
	c.transport.Close()
}

// SponsorUserOperation asks the paymaster to sponsor params.UserOperation and
// returns the paymaster fields and gas values decoded for its entry point
// version. See BuildSponsorRequest for how the operation is prepared.
func (c *Client) SponsorUserOperation(ctx context.Context, params SponsorUserOperationParams) (*SponsorUserOperationResult, error) {
	req, err := BuildSponsorRequest(params)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := c.transport.CallContext(ctx, &raw, req.Method, req.Params...); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Method, err)
	}

	return DecodeSponsorResponse(raw, params.UserOperation)
}

package paymaster

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

// Transport performs one JSON-RPC call. *rpc.Client from go-ethereum
// satisfies it, as does HTTPTransport.
type Transport interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// RetryConfigurable is implemented by transports that retry failed calls on
// their own. The paymaster client uses it to turn those retries off.
type RetryConfigurable interface {
	WithRetryCount(count int) Transport
}

// HTTPOption customises an HTTPTransport.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	retryCount int
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client
}

// WithRetries sets how many times a failed HTTP request is retried.
func WithRetries(count int) HTTPOption {
	return func(o *httpOptions) { o.retryCount = count }
}

// WithTimeout bounds every HTTP request. Zero means no timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(o *httpOptions) { o.timeout = timeout }
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) HTTPOption {
	return func(o *httpOptions) { o.headers[key] = value }
}

// WithHTTPClient makes the transport use client for the underlying requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(o *httpOptions) { o.httpClient = client }
}

// HTTPTransport sends JSON-RPC 2.0 requests over HTTP POST.
type HTTPTransport struct {
	url    string
	opts   httpOptions
	client *resty.Client
}

type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// NewHTTPTransport creates a transport for the JSON-RPC endpoint at url.
func NewHTTPTransport(url string, opts ...HTTPOption) *HTTPTransport {
	o := httpOptions{headers: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}
	return newHTTPTransport(url, o)
}

func newHTTPTransport(url string, o httpOptions) *HTTPTransport {
	var client *resty.Client
	if o.httpClient != nil {
		client = resty.NewWithClient(o.httpClient)
	} else {
		client = resty.New()
	}

	client.SetRetryCount(o.retryCount)
	if o.timeout > 0 {
		client.SetTimeout(o.timeout)
	}
	client.SetHeader("Content-Type", "application/json")
	client.SetHeaders(o.headers)

	return &HTTPTransport{url: url, opts: o, client: client}
}

// RetryCount returns the number of retries the transport performs.
func (t *HTTPTransport) RetryCount() int {
	return t.opts.retryCount
}

// WithRetryCount returns a copy of the transport using count retries. The
// receiver is left untouched.
func (t *HTTPTransport) WithRetryCount(count int) Transport {
	o := t.opts
	o.headers = make(map[string]string, len(t.opts.headers))
	for k, v := range t.opts.headers {
		o.headers[k] = v
	}
	o.retryCount = count
	return newHTTPTransport(t.url, o)
}

// CallContext performs method with args and unmarshals the result into
// result. A JSON-RPC error object is returned as *RPCError; a null result
// leaves result untouched.
func (t *HTTPTransport) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}

	body, err := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      ulid.Make().String(),
		Method:  method,
		Params:  args,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(t.url)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var rpcResp jsonrpcResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return fmt.Errorf("failed to parse JSON-RPC response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result == nil || len(rpcResp.Result) == 0 || bytes.Equal(rpcResp.Result, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() {
	t.client.GetClient().CloseIdleConnections()
}

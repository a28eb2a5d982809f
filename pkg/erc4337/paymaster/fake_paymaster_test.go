package paymaster

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

type recordedCall struct {
	Method string
	Params []json.RawMessage
}

// Decode the positional parameter at index i into out.
func (c recordedCall) Param(t *testing.T, i int, out any) {
	t.Helper()
	if i >= len(c.Params) {
		t.Fatalf("call %s has %d params, wanted index %d", c.Method, len(c.Params), i)
	}
	if err := json.Unmarshal(c.Params[i], out); err != nil {
		t.Fatalf("cannot decode param %d of %s: %v", i, c.Method, err)
	}
}

// fakePaymaster is a JSON-RPC endpoint answering with a scripted reply per
// call index, and recording every call it receives.
type fakePaymaster struct {
	server *httptest.Server
	reply  func(n int, call recordedCall) (any, *RPCError)

	mu    sync.Mutex
	calls []recordedCall
}

func newFakePaymaster(t *testing.T, reply func(n int, call recordedCall) (any, *RPCError)) *fakePaymaster {
	fp := &fakePaymaster{reply: reply}
	fp.server = httptest.NewServer(http.HandlerFunc(fp.handle))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakePaymaster) URL() string {
	return fp.server.URL
}

func (fp *fakePaymaster) Calls() []recordedCall {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]recordedCall(nil), fp.calls...)
}

func (fp *fakePaymaster) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	call := recordedCall{Method: req.Method, Params: req.Params}
	fp.mu.Lock()
	n := len(fp.calls)
	fp.calls = append(fp.calls, call)
	fp.mu.Unlock()

	result, rpcErr := fp.reply(n, call)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func v06Response() map[string]any {
	return map[string]any{
		"paymasterAndData":     "0x98c3ecc25c31d2e04b55ee3e5a0e2b4b3f62d6cd000000000000000000000000000000000000000000000000000000006734a21b0000000000000000000000000000000000000000000000000000000000000000deadbeef",
		"preVerificationGas":   "0x0",
		"verificationGasLimit": "0x0",
		"callGasLimit":         "0x0",
	}
}

func v07Response() map[string]any {
	return map[string]any{
		"paymaster":                     "0x3fE285DcD76FcCe4aC92D38A6F2b8e964041e020",
		"paymasterData":                 "0x000000000000000000000000000000000000000000000000000000006734a21b1c",
		"paymasterVerificationGasLimit": "0xafc8",
		"paymasterPostOpGasLimit":       "0x1",
		"preVerificationGas":            "0xcd14",
		"verificationGasLimit":          "0x11d0e",
		"callGasLimit":                  "0x3511",
	}
}

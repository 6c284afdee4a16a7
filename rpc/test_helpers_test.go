package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"raisemoney/core"
	"raisemoney/core/clock"
	"raisemoney/core/types"
	"raisemoney/native/token"
	"raisemoney/storage"
)

const (
	testSecret = "rpc-test-secret-0123456789"
	testStart  = int64(1_700_000_000)
)

func principal(fill byte) types.Principal {
	var p types.Principal
	copy(p[:], bytes.Repeat([]byte{fill}, len(p)))
	return p
}

var (
	treasury    = principal(0xEE)
	beneficiary = principal(0x01)
	alice       = principal(0x0A)
	bob         = principal(0x0B)
)

type testEnv struct {
	node   *core.Node
	clock  *clock.Manual
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	manual := clock.NewManual(testStart)
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		Token:         token.Metadata{Symbol: "MOBI", Name: "MobiCoin", Decimals: 18},
		InitialSupply: big.NewInt(1_000_000),
		Treasury:      treasury,
		Clock:         manual,
		AllowMint:     true,
	})
	require.NoError(t, err)
	if cfg.HMACSecret == "" {
		cfg.HMACSecret = testSecret
	}
	server := NewServer(node, cfg)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		node.Close()
	})
	return &testEnv{node: node, clock: manual, server: server, http: ts}
}

func tokenFor(t *testing.T, p types.Principal) string {
	t.Helper()
	signed, err := IssueToken(testSecret, p, "", "", time.Hour, time.Now())
	require.NoError(t, err)
	return signed
}

// fund moves amount from the treasury to p and approves custody for it.
func (e *testEnv) fund(t *testing.T, p types.Principal, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.node.Transfer(ctx, treasury, p, big.NewInt(amount)))
	require.NoError(t, e.node.Approve(ctx, p, e.node.Custody(), big.NewInt(amount)))
}

type rpcResult struct {
	status   int
	header   http.Header
	response RPCResponse
	raw      json.RawMessage
}

// call posts a JSON-RPC request. A zero caller sends no Authorization header.
func (e *testEnv) call(t *testing.T, caller types.Principal, method string, params interface{}) rpcResult {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if !caller.IsZero() {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, caller))
	}
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) rpcResult {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *RPCError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return rpcResult{
		status:   resp.StatusCode,
		header:   resp.Header,
		response: RPCResponse{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Error: envelope.Error},
		raw:      envelope.Result,
	}
}

func (r rpcResult) decode(t *testing.T, dst interface{}) {
	t.Helper()
	require.Nil(t, r.response.Error, "unexpected rpc error: %+v", r.response.Error)
	require.NoError(t, json.Unmarshal(r.raw, dst))
}

func (r rpcResult) errorKind(t *testing.T) string {
	t.Helper()
	require.NotNil(t, r.response.Error)
	data, ok := r.response.Error.Data.(map[string]interface{})
	require.True(t, ok, "error data missing: %+v", r.response.Error)
	kind, _ := data["kind"].(string)
	return kind
}

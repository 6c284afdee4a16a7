package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"raisemoney/core/events"
	"raisemoney/core/types"
	"raisemoney/indexer"
	"raisemoney/native/campaign"
)

func kickOff(t *testing.T, env *testEnv, target string, days uint32) string {
	t.Helper()
	res := env.call(t, beneficiary, "campaign_kickOff", map[string]interface{}{
		"target":       target,
		"durationDays": days,
	})
	var out campaignKickOffResult
	res.decode(t, &out)
	return out.ID
}

func TestCampaignLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	env.fund(t, alice, 600)
	env.fund(t, bob, 600)

	id := kickOff(t, env, "1000", 7)
	assert.Equal(t, "1", id)

	var raised campaignRaisedResult
	env.call(t, alice, "campaign_give", map[string]interface{}{"id": id, "amount": "600"}).decode(t, &raised)
	assert.Equal(t, "600", raised.Amount)
	env.call(t, bob, "campaign_give", map[string]interface{}{"id": 1, "amount": "400"}).decode(t, &raised)
	assert.Equal(t, "400", raised.Amount)

	res := env.call(t, bob, "campaign_give", map[string]interface{}{"id": id, "amount": "1"})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, codeTemporal, res.response.Error.Code)
	assert.Equal(t, "TargetReached", res.errorKind(t))

	var success campaignSuccessResult
	env.call(t, types.ZeroPrincipal, "campaign_checkSuccess", map[string]interface{}{"id": id}).decode(t, &success)
	assert.True(t, success.Successful)

	var view campaignJSON
	env.call(t, types.ZeroPrincipal, "campaign_get", map[string]interface{}{"id": id}).decode(t, &view)
	assert.Equal(t, "1000", view.Raised)
	assert.Equal(t, beneficiary.String(), view.Beneficiary)
	assert.Equal(t, testStart+7*campaign.SecondsPerDay, view.Deadline)
	assert.Equal(t, "unsettled", view.Status)
	assert.False(t, view.Ended)

	var benefactors campaignBenefactorsResult
	env.call(t, types.ZeroPrincipal, "campaign_getBenefactors", map[string]interface{}{"id": id}).decode(t, &benefactors)
	assert.Equal(t, []string{alice.String(), bob.String()}, benefactors.Benefactors)

	res = env.call(t, beneficiary, "campaign_withdrawal", map[string]interface{}{"id": id})
	assert.Equal(t, codeTemporal, res.response.Error.Code)
	assert.Equal(t, "TooEarly", res.errorKind(t))
	assert.Equal(t, "cannot withdraw before ending", res.response.Error.Message)

	var now devNowResult
	env.call(t, beneficiary, "dev_increaseTime", map[string]interface{}{"seconds": 7 * campaign.SecondsPerDay}).decode(t, &now)
	assert.Equal(t, testStart+7*campaign.SecondsPerDay, now.Now)

	res = env.call(t, alice, "campaign_withdrawal", map[string]interface{}{"id": id})
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, codeAuthorization, res.response.Error.Code)
	assert.Equal(t, "Unauthorized", res.errorKind(t))

	var status campaignStatusResult
	env.call(t, beneficiary, "campaign_withdrawal", map[string]interface{}{"id": id}).decode(t, &status)
	assert.Equal(t, "withdrawn", status.Status)

	var balance tokenBalanceResult
	env.call(t, types.ZeroPrincipal, "token_balanceOf", map[string]interface{}{"owner": beneficiary.String()}).decode(t, &balance)
	assert.Equal(t, "1000", balance.Balance)

	res = env.call(t, beneficiary, "campaign_withdrawal", map[string]interface{}{"id": id})
	assert.Equal(t, codeState, res.response.Error.Code)
	assert.Equal(t, "AlreadySettled", res.errorKind(t))

	var count campaignCountResult
	env.call(t, types.ZeroPrincipal, "campaign_count", nil).decode(t, &count)
	assert.Equal(t, uint64(1), count.Count)
}

func TestRefundOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	env.fund(t, alice, 300)
	id := kickOff(t, env, "1000", 1)

	env.call(t, alice, "campaign_give", map[string]interface{}{"id": id, "amount": "300"}).decode(t, &campaignRaisedResult{})
	var raised campaignRaisedResult
	env.call(t, alice, "campaign_undoGiving", map[string]interface{}{"id": id, "amount": "100"}).decode(t, &raised)
	assert.Equal(t, "200", raised.Amount)

	res := env.call(t, alice, "campaign_undoGiving", map[string]interface{}{"id": id, "amount": "500"})
	assert.Equal(t, codeValidation, res.response.Error.Code)
	assert.Equal(t, "InsufficientContribution", res.errorKind(t))

	_, err := env.node.AdvanceTime(campaign.SecondsPerDay * time.Second)
	require.NoError(t, err)

	var status campaignStatusResult
	env.call(t, bob, "campaign_refund", map[string]interface{}{"id": id}).decode(t, &status)
	assert.Equal(t, "refunded", status.Status)

	env.call(t, types.ZeroPrincipal, "campaign_trackRaisedMoney", map[string]interface{}{"id": id, "contributor": alice.String()}).decode(t, &raised)
	assert.Equal(t, "0", raised.Amount)

	var balance tokenBalanceResult
	env.call(t, types.ZeroPrincipal, "token_balanceOf", map[string]interface{}{"owner": alice.String()}).decode(t, &balance)
	assert.Equal(t, "300", balance.Balance)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})

	res := env.call(t, types.ZeroPrincipal, "campaign_get", map[string]interface{}{"id": 42})
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, codeNotFound, res.response.Error.Code)
	assert.Equal(t, "NotFound", res.errorKind(t))

	res = env.call(t, beneficiary, "campaign_kickOff", map[string]interface{}{"target": "10", "durationDays": 31})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, codeValidation, res.response.Error.Code)
	assert.Equal(t, "InvalidDuration", res.errorKind(t))

	res = env.call(t, beneficiary, "campaign_kickOff", map[string]interface{}{"target": "ten", "durationDays": 3})
	assert.Equal(t, codeInvalidParams, res.response.Error.Code)

	res = env.call(t, beneficiary, "campaign_kickOff", map[string]interface{}{"target": "10", "durationDays": 3, "extra": true})
	assert.Equal(t, codeInvalidParams, res.response.Error.Code)

	id := kickOff(t, env, "10", 3)
	res = env.call(t, alice, "campaign_give", map[string]interface{}{"id": id, "amount": "5"})
	assert.Equal(t, http.StatusBadGateway, res.status)
	assert.Equal(t, codeCollaborator, res.response.Error.Code)
	assert.Equal(t, "TransferFailed", res.errorKind(t))

	res = env.call(t, alice, "campaign_give", map[string]interface{}{"id": id, "amount": "-5"})
	assert.Equal(t, codeValidation, res.response.Error.Code)
	assert.Equal(t, "InvalidAmount", res.errorKind(t))

	res = env.call(t, alice, "no_such_method", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, codeMethodNotFound, res.response.Error.Code)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	res := env.call(t, types.ZeroPrincipal, "campaign_kickOff", map[string]interface{}{"target": "10", "durationDays": 3})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, codeUnauthorized, res.response.Error.Code)

	res = env.call(t, types.ZeroPrincipal, "campaign_count", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status, "reads need a token unless anonymous reads are enabled")

	var count campaignCountResult
	env.call(t, alice, "campaign_count", nil).decode(t, &count)

	forged, err := IssueToken("another-secret-value", alice, "", "", time.Hour, time.Now())
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, env.http.URL+"/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"campaign_count"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	res = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	expired, err := IssueToken(testSecret, alice, "", "", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	req, err = http.NewRequest(http.MethodPost, env.http.URL+"/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"campaign_count"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+expired)
	res = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestAuthenticationChecksIssuerAndAudience(t *testing.T) {
	env := newTestEnv(t, ServerConfig{Issuer: "raisemoney", Audience: "rpc"})

	good, err := IssueToken(testSecret, alice, "raisemoney", "rpc", time.Hour, time.Now())
	require.NoError(t, err)
	wrong, err := IssueToken(testSecret, alice, "raisemoney", "explorer", time.Hour, time.Now())
	require.NoError(t, err)

	for token, want := range map[string]int{good: http.StatusOK, wrong: http.StatusUnauthorized} {
		req, err := http.NewRequest(http.MethodPost, env.http.URL+"/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"dev_now"}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, want, env.do(t, req).status)
	}
}

func TestTokenMethods(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	env.fund(t, alice, 100)

	var meta tokenMetadataResult
	env.call(t, types.ZeroPrincipal, "token_metadata", nil).decode(t, &meta)
	assert.Equal(t, "MOBI", meta.Symbol)
	assert.Equal(t, "1000000", meta.TotalSupply)
	assert.Equal(t, env.node.Custody().String(), meta.Custody)

	var allowance tokenAllowanceResult
	env.call(t, alice, "token_approve", map[string]interface{}{"amount": "40"}).decode(t, &allowance)
	assert.Equal(t, "40", allowance.Allowance)
	assert.Equal(t, env.node.Custody().String(), allowance.Spender)

	env.call(t, types.ZeroPrincipal, "token_allowance", map[string]interface{}{"owner": alice.String()}).decode(t, &allowance)
	assert.Equal(t, "40", allowance.Allowance)

	var balance tokenBalanceResult
	env.call(t, alice, "token_transfer", map[string]interface{}{"to": bob.String(), "amount": "30"}).decode(t, &balance)
	assert.Equal(t, "70", balance.Balance)

	res := env.call(t, alice, "token_transfer", map[string]interface{}{"to": bob.String(), "amount": "1000"})
	assert.Equal(t, codeState, res.response.Error.Code)
	assert.Equal(t, "InsufficientBalance", res.errorKind(t))

	env.call(t, alice, "token_mint", map[string]interface{}{"to": bob.String(), "amount": "5"}).decode(t, &balance)
	assert.Equal(t, "35", balance.Balance)

	res = env.call(t, alice, "token_transfer", map[string]interface{}{"to": "not-an-address", "amount": "1"})
	assert.Equal(t, codeInvalidParams, res.response.Error.Code)
}

func TestRateLimiting(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true, RequestsPerMinute: 1, Burst: 2})

	assert.Equal(t, http.StatusOK, env.call(t, types.ZeroPrincipal, "dev_now", nil).status)
	assert.Equal(t, http.StatusOK, env.call(t, types.ZeroPrincipal, "dev_now", nil).status)
	res := env.call(t, types.ZeroPrincipal, "dev_now", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, codeRateLimited, res.response.Error.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})

	res := env.call(t, types.ZeroPrincipal, "dev_now", nil)
	assert.Len(t, res.header.Get(RequestIDHeader), 36)

	req, err := http.NewRequest(http.MethodPost, env.http.URL+"/", strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"dev_now"}`))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "trace-me")
	res = env.do(t, req)
	assert.Equal(t, "trace-me", res.header.Get(RequestIDHeader))
	assert.EqualValues(t, 7, res.response.ID)
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})

	cases := map[string]int{
		`{not json`: codeParseError,
		`{"jsonrpc":"1.0","id":1,"method":"dev_now"}`: codeInvalidRequest,
		`{"jsonrpc":"2.0","id":1}`:                    codeInvalidRequest,
	}
	for body, code := range cases {
		req, err := http.NewRequest(http.MethodPost, env.http.URL+"/", strings.NewReader(body))
		require.NoError(t, err)
		res := env.do(t, req)
		assert.Equal(t, http.StatusBadRequest, res.status, body)
		assert.Equal(t, code, res.response.Error.Code, body)
	}
}

func TestDevIncreaseTimeRequiresManualClockAndNonNegative(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	res := env.call(t, alice, "dev_increaseTime", map[string]interface{}{"seconds": -1})
	assert.Equal(t, codeInvalidParams, res.response.Error.Code)

	var now devNowResult
	env.call(t, types.ZeroPrincipal, "dev_now", nil).decode(t, &now)
	assert.Equal(t, testStart, now.Now)
	assert.True(t, now.ManualClock)
}

type stubIndex struct {
	campaignID uint64
	limit      int
}

func (s *stubIndex) List(_ context.Context, campaignID uint64, limit int) ([]indexer.Record, error) {
	s.campaignID = campaignID
	s.limit = limit
	return []indexer.Record{{Sequence: 1, CampaignID: campaignID, Type: campaign.EventTypeCampaignCreated}}, nil
}

func TestListEvents(t *testing.T) {
	disabled := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	res := disabled.call(t, types.ZeroPrincipal, "campaign_listEvents", map[string]interface{}{"id": 1})
	assert.Equal(t, http.StatusServiceUnavailable, res.status)

	index := &stubIndex{}
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true, Index: index})
	id := kickOff(t, env, "10", 3)

	var records []indexer.Record
	env.call(t, types.ZeroPrincipal, "campaign_listEvents", map[string]interface{}{"id": id, "limit": 5}).decode(t, &records)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), index.campaignID)
	assert.Equal(t, 5, index.limit)

	res = env.call(t, types.ZeroPrincipal, "campaign_listEvents", map[string]interface{}{"id": 9})
	assert.Equal(t, codeNotFound, res.response.Error.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	resp, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestShutdownBeforeServe(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	require.NoError(t, env.server.Shutdown(context.Background()))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(listener) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
	_, err = net.Dial("tcp", listener.Addr().String())
	assert.Error(t, err, "listener should be closed")
}

func TestServeReturnsAfterShutdown(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, env.server.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	env.call(t, types.ZeroPrincipal, "dev_now", nil)

	resp, err := http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "raise_rpc_requests_total")
}

func TestEventsWebSocket(t *testing.T) {
	env := newTestEnv(t, ServerConfig{AllowAnonymousReads: true})
	id := kickOff(t, env, "10", 3)
	kickOff(t, env, "20", 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/events?campaign=" + id
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readEnvelope := func() events.Envelope {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var env events.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	}

	first := readEnvelope()
	assert.Equal(t, campaign.EventTypeCampaignCreated, first.Event.Type)
	assert.Equal(t, id, first.Event.Attr(campaign.AttributeCampaignID))

	env.fund(t, alice, 5)
	env.call(t, alice, "campaign_give", map[string]interface{}{"id": id, "amount": "5"}).decode(t, &campaignRaisedResult{})
	next := readEnvelope()
	assert.Equal(t, campaign.EventTypeContributed, next.Event.Type)
	assert.Equal(t, "5", next.Event.Attr(campaign.AttributeAmount))
}

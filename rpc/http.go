package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"raisemoney/core"
	"raisemoney/indexer"
	"raisemoney/observability"
	"raisemoney/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const (
	ctxKeyRequestID contextKey = "rpc.requestId"
	ctxKeyCaller    contextKey = "rpc.caller"
)

// EventIndex serves campaign_listEvents. A nil index disables the method.
type EventIndex interface {
	List(ctx context.Context, campaignID uint64, limit int) ([]indexer.Record, error)
}

// ServerConfig controls authentication, throttling and logging.
type ServerConfig struct {
	// HMACSecret verifies HS256 bearer tokens. Empty disables every method
	// that needs a caller identity.
	HMACSecret          string
	Issuer              string
	Audience            string
	AllowAnonymousReads bool
	// RequestsPerMinute bounds requests per client address. Zero disables
	// throttling.
	RequestsPerMinute int
	Burst             int
	// TrustForwardedFor uses X-Forwarded-For as the client address.
	TrustForwardedFor bool
	Index             EventIndex
	Logger            *slog.Logger
}

// Server exposes the ledger node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	auth    *authenticator
	limiter *rateLimiter
	index   EventIndex
	logger  *slog.Logger
	metrics *observability.RPCMetrics
	methods map[string]methodSpec

	serverMu   sync.Mutex
	httpServer *http.Server
	closed     bool
}

type handlerFunc func(ctx context.Context, req *RPCRequest) (interface{}, error)

type methodSpec struct {
	handler handlerFunc
	// write marks methods that mutate state and always need a caller.
	write bool
}

// NewServer wires the RPC methods to node.
func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		auth:    newAuthenticator(cfg.HMACSecret, cfg.Issuer, cfg.Audience),
		limiter: newRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
		index:   cfg.Index,
		logger:  logger.With(slog.String("component", "rpc")),
		metrics: observability.RPC(),
	}
	s.methods = map[string]methodSpec{
		"campaign_kickOff":          {handler: s.handleCampaignKickOff, write: true},
		"campaign_give":             {handler: s.handleCampaignGive, write: true},
		"campaign_undoGiving":       {handler: s.handleCampaignUndoGiving, write: true},
		"campaign_withdrawal":       {handler: s.handleCampaignWithdrawal, write: true},
		"campaign_refund":           {handler: s.handleCampaignRefund, write: true},
		"campaign_checkSuccess":     {handler: s.handleCampaignCheckSuccess},
		"campaign_get":              {handler: s.handleCampaignGet},
		"campaign_count":            {handler: s.handleCampaignCount},
		"campaign_trackRaisedMoney": {handler: s.handleCampaignTrackRaisedMoney},
		"campaign_getBenefactors":   {handler: s.handleCampaignGetBenefactors},
		"campaign_listEvents":       {handler: s.handleCampaignListEvents},
		"token_metadata":            {handler: s.handleTokenMetadata},
		"token_balanceOf":           {handler: s.handleTokenBalanceOf},
		"token_allowance":           {handler: s.handleTokenAllowance},
		"token_approve":             {handler: s.handleTokenApprove, write: true},
		"token_transfer":            {handler: s.handleTokenTransfer, write: true},
		"token_mint":                {handler: s.handleTokenMint, write: true},
		"dev_increaseTime":          {handler: s.handleDevIncreaseTime, write: true},
		"dev_now":                   {handler: s.handleDevNow},
	}
	return s
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	return otelhttp.NewHandler(r, "raisemoney.rpc")
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves RPC requests on listener. It returns nil after Shutdown,
// including when Shutdown ran before Serve; the listener is closed either way.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	s.serverMu.Lock()
	if s.closed {
		s.serverMu.Unlock()
		listener.Close()
		return nil
	}
	s.httpServer = srv
	s.serverMu.Unlock()

	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. A later Serve returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	s.closed = true
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// rpcFailure carries an RPC error and its HTTP status out of a handler.
type rpcFailure struct {
	status int
	err    *RPCError
}

func (f *rpcFailure) Error() string { return f.err.Message }

func invalidParams(format string, args ...interface{}) error {
	return &rpcFailure{
		status: http.StatusBadRequest,
		err:    &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf(format, args...)},
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limiter.allow(s.clientSource(r)) {
		s.metrics.RecordThrottle("rate")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	spec, ok := s.methods[req.Method]
	if !ok {
		s.observe(req.Method, codeMethodNotFound, start)
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	ctx := r.Context()
	caller, authErr := s.auth.authenticate(r)
	switch {
	case authErr != nil && (spec.write || !s.cfg.AllowAnonymousReads || hasBearer(r)):
		s.observe(req.Method, authErr.Code, start)
		s.logger.DebugContext(ctx, "rpc caller rejected",
			slog.String("method", req.Method),
			slog.String("requestId", requestIDFrom(ctx)),
			logging.MaskField("authorization", r.Header.Get("Authorization")))
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	case authErr == nil:
		ctx = context.WithValue(ctx, ctxKeyCaller, caller)
	}

	result, err := spec.handler(ctx, req)
	if err != nil {
		status, rpcErr := s.translateError(err)
		s.observe(req.Method, rpcErr.Code, start)
		s.logFailure(ctx, req.Method, rpcErr, err)
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.observe(req.Method, 0, start)
	writeResult(w, req.ID, result)
}

func (s *Server) observe(method string, code int, start time.Time) {
	module := method
	if idx := strings.Index(method, "_"); idx > 0 {
		module = method[:idx]
	}
	s.metrics.Observe(module, method, code, time.Since(start))
}

func (s *Server) logFailure(ctx context.Context, method string, rpcErr *RPCError, err error) {
	level := slog.LevelDebug
	if rpcErr.Code == codeServerError {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "rpc call failed",
		slog.String("method", method),
		slog.String("requestId", requestIDFrom(ctx)),
		slog.Int("code", rpcErr.Code),
		slog.String("error", err.Error()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]interface{}{"status": "ok"}
	if s.node != nil {
		status["now"] = s.node.Now()
		status["manualClock"] = s.node.ManualClock()
	}
	_ = json.NewEncoder(w).Encode(status)
}

// requestID propagates or assigns the X-Request-ID header.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func (s *Server) clientSource(r *http.Request) string {
	if s.cfg.TrustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if candidate := strings.TrimSpace(parts[0]); candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

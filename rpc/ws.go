package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"raisemoney/core/events"
	"raisemoney/native/campaign"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 128
)

// handleEventsWS streams committed events. The optional cursor query
// parameter skips events already seen; campaign restricts the stream to one
// campaign.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	if !s.cfg.AllowAnonymousReads {
		if _, authErr := s.auth.authenticate(r); authErr != nil {
			http.Error(w, authErr.Message, http.StatusUnauthorized)
			return
		}
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	filter := strings.TrimSpace(r.URL.Query().Get("campaign"))
	if filter != "" {
		id, err := strconv.ParseUint(filter, 10, 64)
		if err != nil {
			http.Error(w, "invalid campaign", http.StatusBadRequest)
			return
		}
		filter = strconv.FormatUint(id, 10)
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Reads are ignored, but CloseRead surfaces client disconnects.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64, filter string) error {
	backlog, live, cancel := s.node.Events().Subscribe(cursor, wsBuffer)
	defer cancel()

	for _, env := range backlog {
		if err := writeEnvelope(ctx, conn, env, filter); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-live:
			if !ok {
				return nil
			}
			if err := writeEnvelope(ctx, conn, env, filter); err != nil {
				return err
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env events.Envelope, filter string) error {
	if filter != "" && env.Event.Attr(campaign.AttributeCampaignID) != filter {
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

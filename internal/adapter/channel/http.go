// Package channel holds the inbound message adapters. Only the HTTP API
// channel lives in this core; platform protocol clients plug in through
// domain.Channel from outside.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"swarmhub/internal/domain"
)

// HTTPChannel implements domain.Channel for a small JSON API. Each request
// blocks until the routed agent replies or the request times out.
type HTTPChannel struct {
	server  *http.Server
	logger  *slog.Logger
	addr    string
	handler domain.MessageHandler

	// Actual bound address, set after Start. Useful with addr ":0".
	boundAddr string

	mu      sync.Mutex
	pending map[string]chan string
}

type chatRequest struct {
	Channel string `json:"channel,omitempty"` // routing label, default "http"
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id,omitempty"`
	Text    string `json:"text"`
}

type chatResponse struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewHTTPChannel creates an HTTP API channel listening on addr.
func NewHTTPChannel(addr string, logger *slog.Logger) *HTTPChannel {
	return &HTTPChannel{
		addr:    addr,
		logger:  logger,
		pending: make(map[string]chan string),
	}
}

// Start begins serving. Non-blocking: the listener runs in a goroutine.
func (h *HTTPChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	h.handler = handler

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", h.handleChat)
	mux.HandleFunc("/api/v1/health", h.handleHealth)

	h.server = &http.Server{
		Addr:              h.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	h.boundAddr = ln.Addr().String()

	go func() {
		h.logger.Info("http channel started", "addr", h.boundAddr)
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (h *HTTPChannel) Stop(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// Addr returns the bound listen address after Start.
func (h *HTTPChannel) Addr() string { return h.boundAddr }

// Send delivers a reply to the request waiting on msg.ChatID.
func (h *HTTPChannel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	h.mu.Lock()
	ch, ok := h.pending[msg.ChatID]
	h.mu.Unlock()

	if !ok {
		return domain.NewDomainError("HTTPChannel.Send", domain.ErrSessionNotFound, msg.ChatID)
	}

	select {
	case ch <- msg.Text:
		return nil
	case <-ctx.Done():
		return domain.NewDomainError("HTTPChannel.Send", ctx.Err(), msg.ChatID)
	case <-time.After(5 * time.Second):
		return domain.NewDomainError("HTTPChannel.Send", domain.ErrTimeout, msg.ChatID)
	}
}

// Name implements domain.Channel.
func (h *HTTPChannel) Name() string { return "http" }

func (h *HTTPChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: "text is required"})
		return
	}
	if req.ChatID == "" {
		req.ChatID = fmt.Sprintf("http-%d", time.Now().UnixNano())
	}
	if req.Channel == "" {
		req.Channel = "http"
	}

	respCh := make(chan string, 1)
	h.mu.Lock()
	h.pending[req.ChatID] = respCh
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, req.ChatID)
		h.mu.Unlock()
	}()

	msg := domain.InboundMessage{
		Channel:   req.Channel,
		ChatID:    req.ChatID,
		UserID:    req.UserID,
		Text:      req.Text,
		Timestamp: time.Now(),
	}

	if err := h.handler(r.Context(), msg); err != nil {
		writeJSON(w, http.StatusInternalServerError, chatResponse{ChatID: req.ChatID, Error: err.Error()})
		return
	}

	select {
	case text := <-respCh:
		writeJSON(w, http.StatusOK, chatResponse{ChatID: req.ChatID, Text: text})
	case <-r.Context().Done():
		// Client went away, nothing to write.
	case <-time.After(2 * time.Minute):
		writeJSON(w, http.StatusGatewayTimeout, chatResponse{ChatID: req.ChatID, Error: "timed out waiting for reply"})
	}
}

func (h *HTTPChannel) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

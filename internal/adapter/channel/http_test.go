package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swarmhub/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startChannel(t *testing.T, handler domain.MessageHandler) *HTTPChannel {
	t.Helper()
	ch := NewHTTPChannel("127.0.0.1:0", discard())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ch.Start(ctx, handler))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		ch.Stop(stopCtx)
		cancel()
	})
	return ch
}

func postChat(t *testing.T, addr string, req chatRequest) (int, chatResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post("http://"+addr+"/api/v1/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHTTPChannelRoundTrip(t *testing.T) {
	var ch *HTTPChannel
	ch = startChannel(t, func(ctx context.Context, msg domain.InboundMessage) error {
		// Echo back through Send, the way the queue processor replies.
		go ch.Send(context.Background(), domain.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Text:    "echo: " + msg.Text,
		})
		return nil
	})

	status, out := postChat(t, ch.Addr(), chatRequest{ChatID: "c1", Text: "hi"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "echo: hi", out.Text)
	require.Equal(t, "c1", out.ChatID)
}

func TestHTTPChannelDefaultsChannelLabel(t *testing.T) {
	got := make(chan domain.InboundMessage, 1)
	var ch *HTTPChannel
	ch = startChannel(t, func(ctx context.Context, msg domain.InboundMessage) error {
		got <- msg
		go ch.Send(context.Background(), domain.OutboundMessage{ChatID: msg.ChatID, Text: "ok"})
		return nil
	})

	postChat(t, ch.Addr(), chatRequest{ChatID: "c2", Text: "hello"})
	msg := <-got
	require.Equal(t, "http", msg.Channel)
	require.False(t, msg.Timestamp.IsZero())
}

func TestHTTPChannelRejectsEmptyText(t *testing.T) {
	ch := startChannel(t, func(ctx context.Context, msg domain.InboundMessage) error { return nil })
	status, out := postChat(t, ch.Addr(), chatRequest{ChatID: "c3"})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, out.Error)
}

func TestHTTPChannelHandlerError(t *testing.T) {
	ch := startChannel(t, func(ctx context.Context, msg domain.InboundMessage) error {
		return domain.ErrAgentNotFound
	})
	status, out := postChat(t, ch.Addr(), chatRequest{ChatID: "c4", Text: "hi"})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Contains(t, out.Error, "agent not found")
}

func TestSendWithoutPendingRequest(t *testing.T) {
	ch := NewHTTPChannel("127.0.0.1:0", discard())
	err := ch.Send(context.Background(), domain.OutboundMessage{ChatID: "ghost", Text: "x"})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swarmhub/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
		case "/api/sessions/load":
			w.WriteHeader(http.StatusOK)
		case "/api/thoughts":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			require.Equal(t, "sess-1", body["session_id"])
			_ = json.NewEncoder(w).Encode(domain.ThoughtRef{ThoughtNumber: 3, BranchID: "main"})
		case "/api/thoughts/read":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"entries": []domain.ThoughtEntry{{ThoughtNumber: 1, BranchID: "main", Text: "prior context"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestStartNewBindsSession(t *testing.T) {
	srv := newGatewayServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, 0, testLogger())
	sessionID, err := c.StartNew(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sess-1", sessionID)

	ref, err := c.Thought(context.Background(), "routing pass complete")
	require.NoError(t, err)
	require.Equal(t, 3, ref.ThoughtNumber)
}

func TestThoughtWithoutSessionFails(t *testing.T) {
	c := NewClient("http://unused", 0, testLogger())
	_, err := c.Thought(context.Background(), "x")
	require.ErrorIs(t, err, domain.ErrGatewayClosed)
}

func TestReadThoughts(t *testing.T) {
	srv := newGatewayServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, 0, testLogger())
	require.NoError(t, c.LoadContext(context.Background(), "sess-1"))

	entries, err := c.ReadThoughts(context.Background(), domain.ThoughtFilter{Limit: 5})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "prior context", entries[0].Text)
}

func TestBindSessionResumesExisting(t *testing.T) {
	srv := newGatewayServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, 0, testLogger())
	bound, err := c.BindSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", bound)

	// The resumed session is live for thought traffic.
	_, err = c.Thought(context.Background(), "resumed")
	require.NoError(t, err)
}

func TestBindSessionFallsBackToFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions/load":
			http.Error(w, "expired", http.StatusGone)
		case "/api/sessions":
			_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-new"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, testLogger())
	bound, err := c.BindSession(context.Background(), "sess-old")
	require.NoError(t, err)
	require.Equal(t, "sess-new", bound)
}

func TestBindSessionWithoutPriorStartsNew(t *testing.T) {
	srv := newGatewayServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, 0, testLogger())
	bound, err := c.BindSession(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "sess-1", bound)
}

func TestNewClientHonorsTimeout(t *testing.T) {
	c := NewClient("http://unused", 3*time.Second, testLogger())
	require.Equal(t, 3*time.Second, c.http.Timeout)

	c = NewClient("http://unused", 0, testLogger())
	require.Equal(t, 15*time.Second, c.http.Timeout)
}

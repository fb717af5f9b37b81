package transcript

import (
	"context"
	"sync"

	"swarmhub/internal/domain"
)

// MemoryStore is an in-memory transcript corpus, used when no database path
// is configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]domain.RecordedConversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]domain.RecordedConversation)}
}

// Save appends one recorded conversation. Unlike the SQLite store it does not
// dedupe by ID.
func (m *MemoryStore) Save(_ context.Context, conv domain.RecordedConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.Domain] = append(m.convs[conv.Domain], conv)
	return nil
}

// Transcripts returns up to limit conversations recorded for domainName.
func (m *MemoryStore) Transcripts(_ context.Context, domainName string, limit int) ([]domain.RecordedConversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	convs := m.convs[domainName]
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	out := make([]domain.RecordedConversation, len(convs))
	copy(out, convs)
	return out, nil
}

package journal

import (
	"context"
	"sync"
	"time"
)

// State tracks how far an issuance request got. Broadcast hashes are
// recorded as soon as they exist, so a request that dies mid-submission
// leaves an operator-recoverable trail instead of silently committed funds.
type State string

const (
	StatePreparing  State = "preparing"
	StateSubmitting State = "submitting"
	StateResolving  State = "resolving"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Record is one issuance request's journal row.
type Record struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Submitted int       `json:"submitted"`
	Total     int       `json:"total"`
	TxHashes  []string  `json:"txHashes"`
	Link      string    `json:"link,omitempty"`
	Failure   string    `json:"failure,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store abstracts journal persistence.
type Store interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (*Record, error)
}

// MemoryStore keeps the journal in process memory. Used in tests and as
// the fallback when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
	}
}

func (m *MemoryStore) Save(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	m.data[record.ID] = record
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

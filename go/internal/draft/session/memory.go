package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// MemoryStore keeps sessions in process. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.DraftSession
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*models.DraftSession)}
}

func (m *MemoryStore) Create(_ context.Context, s *models.DraftSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("draft session %s already exists", s.ID)
	}
	s.Version = 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id uuid.UUID) (*models.DraftSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.DraftSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if stored.Version != s.Version {
		return fmt.Errorf("%w: have version %d, stored %d", ErrVersionConflict, s.Version, stored.Version)
	}
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) ListSyncable(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uuid.UUID
	for id, s := range m.sessions {
		if isSyncable(s) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func isSyncable(s *models.DraftSession) bool {
	if !s.SyncMode.PollsFeed() {
		return false
	}
	return s.Status == models.DraftStatusNotStarted || s.Status == models.DraftStatusInProgress
}

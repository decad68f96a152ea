package session

import (
	"context"
	"sync"
	"time"

	"TradeMynd/internal/domain/models"
)

// MemoryStore keeps confirmation sessions in process memory. Used for tests
// and single-node deployments without Redis.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*models.ConfirmationSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*models.ConfirmationSession)}
}

func (s *MemoryStore) Create(_ context.Context, sess *models.ConfirmationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.m[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.ConfirmationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// CompareAndSwap transitions the session only if its stored status equals
// from. A concurrent writer that got there first leaves the loser with a
// SessionStateError carrying the actual status.
func (s *MemoryStore) CompareAndSwap(_ context.Context, id string, from, to models.SessionStatus, candidate *models.TradeCandidate) (*models.ConfirmationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if sess.Status != from {
		return nil, &models.SessionStateError{SessionID: id, From: sess.Status, To: to}
	}

	sess.Status = to
	if candidate != nil {
		sess.Candidate = candidate
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) PendingBefore(_ context.Context, t time.Time) ([]*models.ConfirmationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ConfirmationSession
	for _, sess := range s.m {
		if sess.Status == models.SessionPending && !sess.ExpiresAt.After(t) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

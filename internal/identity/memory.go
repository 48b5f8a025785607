package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps identities in process memory. Used for tests and for
// running the server without a database. The mutex makes the uniqueness
// check atomic with the insert.
type MemoryStore struct {
	mu            sync.Mutex
	byID          map[string]Identity
	byEmail       map[string]string
	byRFID        map[string]string
	byFingerprint map[string]string
	order         []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:          make(map[string]Identity),
		byEmail:       make(map[string]string),
		byRFID:        make(map[string]string),
		byFingerprint: make(map[string]string),
	}
}

// Register validates and inserts a candidate under the store lock.
func (s *MemoryStore) Register(_ context.Context, candidate Identity) (Identity, error) {
	if err := candidate.Validate(); err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[candidate.Email]; ok {
		return Identity{}, ErrDuplicate
	}
	if _, ok := s.byRFID[candidate.RFIDTag]; ok {
		return Identity{}, ErrDuplicate
	}
	if _, ok := s.byFingerprint[candidate.FingerprintToken]; ok {
		return Identity{}, ErrDuplicate
	}

	candidate.ID = uuid.NewString()
	candidate.CreatedAt = time.Now()

	s.byID[candidate.ID] = candidate
	s.byEmail[candidate.Email] = candidate.ID
	s.byRFID[candidate.RFIDTag] = candidate.ID
	s.byFingerprint[candidate.FingerprintToken] = candidate.ID
	s.order = append(s.order, candidate.ID)
	return candidate, nil
}

// FindByRFID returns the identity holding the tag, or nil.
func (s *MemoryStore) FindByRFID(_ context.Context, tag string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(s.byRFID[tag]), nil
}

// FindByFingerprint returns the identity holding the token, or nil.
func (s *MemoryStore) FindByFingerprint(_ context.Context, token string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(s.byFingerprint[token]), nil
}

// FindByEmail returns the identity registered under the email, or nil.
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(s.byEmail[email]), nil
}

// FindByID returns the identity by id, or nil.
func (s *MemoryStore) FindByID(_ context.Context, id string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id), nil
}

func (s *MemoryStore) lookup(id string) *Identity {
	if id == "" {
		return nil
	}
	found, ok := s.byID[id]
	if !ok {
		return nil
	}
	return &found
}

// List returns all identities, newest first.
func (s *MemoryStore) List(_ context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Identity, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.byID[s.order[i]])
	}
	return out, nil
}

// CountByRole returns identity counts grouped by role.
func (s *MemoryStore) CountByRole(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, id := range s.byID {
		counts[id.Role]++
	}
	return counts, nil
}

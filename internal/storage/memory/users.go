package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/password"
)

// UserStore keeps bcrypt hashes keyed by identity.
type UserStore struct {
	mu     sync.RWMutex
	hashes map[domain.Identity]string
	hasher *password.Hasher
}

var _ core.Authenticator = (*UserStore)(nil)

func NewUserStore(hasher *password.Hasher) *UserStore {
	if hasher == nil {
		hasher = password.NewHasher()
	}
	return &UserStore{hashes: make(map[domain.Identity]string), hasher: hasher}
}

func (s *UserStore) Register(_ context.Context, cred domain.Credentials) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	_, exists := s.hashes[cred.ID]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("user %q: %w", cred.ID, domain.ErrConflict)
	}
	hash, err := s.hasher.Hash(cred.Password)
	if err != nil {
		return fmt.Errorf("hash password: %v: %w", err, domain.ErrBackend)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[cred.ID]; ok {
		return fmt.Errorf("user %q: %w", cred.ID, domain.ErrConflict)
	}
	s.hashes[cred.ID] = hash
	return nil
}

func (s *UserStore) Authenticate(_ context.Context, cred domain.Credentials) error {
	s.mu.RLock()
	hash, ok := s.hashes[cred.ID]
	s.mu.RUnlock()
	if !ok || !s.hasher.Verify(cred.Password, hash) {
		return fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	return nil
}

func (s *UserStore) Users(_ context.Context) ([]domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Identity, 0, len(s.hashes))
	for id := range s.hashes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

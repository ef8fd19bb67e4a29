package profile

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/corpus"
)

// MemoryStore keeps profiles in memory. FileStore loads into it; tests and
// inline API requests use it directly.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*UserProfile
}

func NewMemoryStore(profiles ...*UserProfile) *MemoryStore {
	s := &MemoryStore{profiles: make(map[string]*UserProfile, len(profiles))}
	for _, p := range profiles {
		s.Put(p)
	}
	return s
}

func (s *MemoryStore) Put(p *UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *MemoryStore) Get(_ context.Context, id string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List returns profiles ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *UserProfile) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// LoadFile reads profiles from a JSON array or JSON-lines file. Records that
// cannot be decoded are skipped with a warning.
func LoadFile(path string, logger *zap.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := corpus.ReadRecordsFile(path)
	if err != nil {
		return nil, err
	}

	store := NewMemoryStore()
	for idx, record := range records {
		p, issues, err := Decode(record)
		if err != nil {
			logger.Warn("skipping profile record", zap.Int("index", idx), zap.Error(err))
			continue
		}
		for _, issue := range issues {
			logger.Info("profile field defaulted",
				zap.String("profile_id", issue.ProfileID),
				zap.String("field", issue.Field),
				zap.String("value", issue.Value),
			)
		}
		store.Put(p)
	}

	return store, nil
}

// Package memory is an in-process Store used by tests and single-node runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
)

type Store struct {
	mu sync.Mutex

	seeds     map[string]*models.ServerSeedRecord
	rounds    map[string]*models.RoundResult
	roundKeys map[models.RoundKey]string
	audit     []models.AuditEntry
	seq       int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		seeds:     make(map[string]*models.ServerSeedRecord),
		rounds:    make(map[string]*models.RoundResult),
		roundKeys: make(map[models.RoundKey]string),
	}
}

func (s *Store) InsertSeed(_ context.Context, seed *models.ServerSeedRecord) error {
	const op = "storage.memory.InsertSeed"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seeds[seed.ID]; ok {
		return fmt.Errorf("%s: seed %s already exists", op, seed.ID)
	}
	s.seeds[seed.ID] = copySeed(seed)
	return nil
}

func (s *Store) GetSeed(_ context.Context, id string) (*models.ServerSeedRecord, error) {
	const op = "storage.memory.GetSeed"

	s.mu.Lock()
	defer s.mu.Unlock()

	seed, ok := s.seeds[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return copySeed(seed), nil
}

func (s *Store) MarkRevealed(_ context.Context, id string, at time.Time) (*models.ServerSeedRecord, error) {
	const op = "storage.memory.MarkRevealed"

	s.mu.Lock()
	defer s.mu.Unlock()

	seed, ok := s.seeds[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	switch seed.Status {
	case models.SeedDiscarded:
		return nil, fmt.Errorf("%s: %w", op, storage.ErrSeedDiscarded)
	case models.SeedCreated:
		revealedAt := at
		seed.Status = models.SeedRevealed
		seed.Revealed = true
		seed.RevealedAt = &revealedAt
	}
	return copySeed(seed), nil
}

func (s *Store) MarkDiscarded(_ context.Context, id string, now time.Time) (bool, error) {
	const op = "storage.memory.MarkDiscarded"

	s.mu.Lock()
	defer s.mu.Unlock()

	seed, ok := s.seeds[id]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if seed.Expired(now) {
		seed.Status = models.SeedDiscarded
	}
	return seed.Status == models.SeedDiscarded, nil
}

func (s *Store) DiscardExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, seed := range s.seeds {
		if seed.Expired(now) {
			seed.Status = models.SeedDiscarded
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) InsertRoundIfAbsent(_ context.Context, round *models.RoundResult) (*models.RoundResult, bool, error) {
	const op = "storage.memory.InsertRoundIfAbsent"

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.roundKeys[round.Key()]; ok {
		return copyRound(s.rounds[id]), false, nil
	}

	seed, ok := s.seeds[round.SeedID]
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	switch seed.Status {
	case models.SeedRevealed:
		return nil, false, fmt.Errorf("%s: %w", op, storage.ErrSeedRevealed)
	case models.SeedDiscarded:
		return nil, false, fmt.Errorf("%s: %w", op, storage.ErrSeedDiscarded)
	}

	stored := copyRound(round)
	s.rounds[stored.RoundID] = stored
	s.roundKeys[stored.Key()] = stored.RoundID
	seed.RoundsPlayed++
	return copyRound(stored), true, nil
}

func (s *Store) GetRoundByKey(_ context.Context, key models.RoundKey) (*models.RoundResult, error) {
	const op = "storage.memory.GetRoundByKey"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.roundKeys[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return copyRound(s.rounds[id]), nil
}

func (s *Store) GetRound(_ context.Context, id string) (*models.RoundResult, error) {
	const op = "storage.memory.GetRound"

	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return copyRound(round), nil
}

func (s *Store) AppendAudit(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry.Sequence = s.seq
	e := *entry
	e.Payload = append([]byte(nil), entry.Payload...)
	s.audit = append(s.audit, e)
	return nil
}

func (s *Store) ListAudit(_ context.Context, from, to time.Time) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AuditEntry
	for _, e := range s.audit {
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) PruneAudit(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.audit[:0]
	var pruned int64
	for _, e := range s.audit {
		if e.Timestamp.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return pruned, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func copySeed(seed *models.ServerSeedRecord) *models.ServerSeedRecord {
	c := *seed
	c.Secret = append([]byte(nil), seed.Secret...)
	if seed.RevealedAt != nil {
		at := *seed.RevealedAt
		c.RevealedAt = &at
	}
	return &c
}

// copyRound shares the decoded outcome pointers; outcomes are never mutated
// after decoding.
func copyRound(round *models.RoundResult) *models.RoundResult {
	c := *round
	return &c
}

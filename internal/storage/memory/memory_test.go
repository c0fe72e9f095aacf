package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
	"provably-fair-backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSeed(t *testing.T, s *memory.Store, id string) *models.ServerSeedRecord {
	t.Helper()
	seed := &models.ServerSeedRecord{
		ID:             id,
		Secret:         []byte("secret-" + id),
		CommitmentHash: "hash-" + id,
		Status:         models.SeedCreated,
		CreatedAt:      base,
		ExpiresAt:      base.Add(time.Hour),
	}
	require.NoError(t, s.InsertSeed(context.Background(), seed))
	return seed
}

func round(seedID, clientSeed string, nonce uint64) *models.RoundResult {
	return &models.RoundResult{
		RoundID:    models.NewID(),
		SeedID:     seedID,
		ClientSeed: clientSeed,
		Nonce:      nonce,
		CreatedAt:  base,
	}
}

func TestSeedLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	newSeed(t, s, "a")

	_, err := s.GetSeed(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	first, err := s.MarkRevealed(ctx, "a", base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, first.Revealed)

	second, err := s.MarkRevealed(ctx, "a", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.RevealedAt, second.RevealedAt, "first reveal wins")

	_, _, err = s.InsertRoundIfAbsent(ctx, round("a", "c", 1))
	assert.True(t, errors.Is(err, storage.ErrSeedRevealed))
}

func TestDiscardExpired(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	newSeed(t, s, "unused")
	newSeed(t, s, "used")
	_, inserted, err := s.InsertRoundIfAbsent(ctx, round("used", "c", 0))
	require.NoError(t, err)
	require.True(t, inserted)

	ids, err := s.DiscardExpired(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.DiscardExpired(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"unused"}, ids)

	_, err = s.MarkRevealed(ctx, "unused", base)
	assert.True(t, errors.Is(err, storage.ErrSeedDiscarded))

	_, _, err = s.InsertRoundIfAbsent(ctx, round("unused", "c", 0))
	assert.True(t, errors.Is(err, storage.ErrSeedDiscarded))

	discarded, err := s.MarkDiscarded(ctx, "used", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, discarded)
}

func TestInsertRoundIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	newSeed(t, s, "a")

	const workers = 32
	var wg sync.WaitGroup
	ids := make([]string, workers)
	inserted := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, ok, err := s.InsertRoundIfAbsent(ctx, round("a", "client", 9))
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = stored.RoundID
			inserted[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if inserted[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	seed, err := s.GetSeed(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, seed.RoundsPlayed)

	byKey, err := s.GetRoundByKey(ctx, models.RoundKey{SeedID: "a", ClientSeed: "client", Nonce: 9})
	require.NoError(t, err)
	assert.Equal(t, ids[0], byKey.RoundID)
}

func TestAuditOrderingAndPrune(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for i := 0; i < 5; i++ {
		e := &models.AuditEntry{
			ID:        models.NewID(),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Action:    models.ActionRoundPlayed,
			SubjectID: "r",
		}
		require.NoError(t, s.AppendAudit(ctx, e))
		assert.EqualValues(t, i+1, e.Sequence)
	}

	got, err := s.ListAudit(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.EqualValues(t, 2, got[0].Sequence)
	assert.EqualValues(t, 4, got[2].Sequence)

	n, err := s.PruneAudit(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err = s.ListAudit(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

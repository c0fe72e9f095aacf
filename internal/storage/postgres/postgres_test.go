package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"provably-fair-backend/internal/fairness"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
	"provably-fair-backend/internal/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	store, err := postgres.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newSeed(t *testing.T, s *postgres.Store, expiresAt time.Time) *models.ServerSeedRecord {
	t.Helper()
	seed := &models.ServerSeedRecord{
		ID:             models.NewID(),
		OperatorID:     "op",
		Secret:         []byte("0123456789abcdef0123456789abcdef"),
		CommitmentHash: fairness.Commitment([]byte("0123456789abcdef0123456789abcdef")),
		Status:         models.SeedCreated,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	}
	require.NoError(t, s.InsertSeed(context.Background(), seed))
	return seed
}

func TestPostgresRoundLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seed := newSeed(t, s, time.Now().Add(time.Hour))

	out, err := fairness.Compute(seed.Secret, "client", 7, fairness.GameLimbo, fairness.GameConfig{HouseEdge: 0.01})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, _, err := s.InsertRoundIfAbsent(ctx, &models.RoundResult{
				RoundID:    models.NewID(),
				SeedID:     seed.ID,
				ClientSeed: "client",
				Nonce:      7,
				GameTag:    fairness.GameLimbo,
				Config:     fairness.GameConfig{HouseEdge: 0.01},
				Result:     out,
				ResultHash: "h",
				CreatedAt:  time.Now().UTC(),
			})
			if assert.NoError(t, err) {
				ids[i] = stored.RoundID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	round, err := s.GetRound(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, out, round.Result)
	assert.EqualValues(t, 7, round.Nonce)

	got, err := s.GetSeed(ctx, seed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.RoundsPlayed)

	revealed, err := s.MarkRevealed(ctx, seed.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, revealed.Revealed)

	_, _, err = s.InsertRoundIfAbsent(ctx, &models.RoundResult{RoundID: models.NewID(), SeedID: seed.ID, ClientSeed: "client", Nonce: 8})
	assert.True(t, errors.Is(err, storage.ErrSeedRevealed))
}

func TestPostgresDiscardExpired(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	expired := newSeed(t, s, time.Now().Add(-time.Minute))

	ids, err := s.DiscardExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Contains(t, ids, expired.ID)

	_, err = s.MarkRevealed(ctx, expired.ID, time.Now())
	assert.True(t, errors.Is(err, storage.ErrSeedDiscarded))
}

func TestPostgresAudit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	subject := models.NewID()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendAudit(ctx, &models.AuditEntry{
			ID:        models.NewID(),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Action:    models.ActionSeedCreated,
			SubjectID: subject,
		}))
	}

	entries, err := s.ListAudit(ctx, base, base.Add(2*time.Second))
	require.NoError(t, err)

	var mine []models.AuditEntry
	for _, e := range entries {
		if e.SubjectID == subject {
			mine = append(mine, e)
		}
	}
	require.Len(t, mine, 3)
	assert.Less(t, mine[0].Sequence, mine[2].Sequence)
}

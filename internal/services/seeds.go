package services

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"time"

	"provably-fair-backend/internal/apperr"
	"provably-fair-backend/internal/fairness"
	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
)

const DefaultSeedTTL = 24 * time.Hour

// SeedService owns the server seed lifecycle: commit, reveal, discard.
type SeedService struct {
	store   storage.SeedRepository
	audit   *AuditTrail
	log     *slog.Logger
	ttl     time.Duration
	now     func() time.Time
	entropy io.Reader
}

type SeedOption func(*SeedService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SeedOption {
	return func(s *SeedService) { s.now = now }
}

// WithEntropy replaces crypto/rand.Reader as the seed source.
func WithEntropy(r io.Reader) SeedOption {
	return func(s *SeedService) { s.entropy = r }
}

func NewSeedService(store storage.SeedRepository, audit *AuditTrail, log *slog.Logger, ttl time.Duration, opts ...SeedOption) *SeedService {
	if ttl <= 0 {
		ttl = DefaultSeedTTL
	}
	s := &SeedService{
		store:   store,
		audit:   audit,
		log:     log,
		ttl:     ttl,
		now:     time.Now,
		entropy: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSeed draws a fresh secret and returns its id and commitment.
func (s *SeedService) CreateSeed(ctx context.Context, operatorID string) (string, string, error) {
	secret, err := models.GenerateSecret(s.entropy)
	if err != nil {
		s.log.Error("entropy source failed", sl.Err(err))
		return "", "", apperr.Wrap(apperr.CodeEntropy, "secure randomness unavailable", err)
	}

	now := s.now().UTC()
	seed := &models.ServerSeedRecord{
		ID:             models.NewID(),
		OperatorID:     operatorID,
		Secret:         secret,
		CommitmentHash: fairness.Commitment(secret),
		Status:         models.SeedCreated,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.store.InsertSeed(ctx, seed); err != nil {
		return "", "", apperr.Wrap(apperr.CodeInternal, "failed to store seed", err)
	}

	s.audit.record(ctx, models.ActionSeedCreated, seed.ID, map[string]any{
		"operator_id":     operatorID,
		"commitment_hash": seed.CommitmentHash,
		"expires_at":      seed.ExpiresAt,
	})
	s.log.Debug("seed created", sl.String("seed_id", seed.ID))

	return seed.ID, seed.CommitmentHash, nil
}

func (s *SeedService) GetCommitment(ctx context.Context, seedID string) (string, error) {
	seed, err := s.usable(ctx, seedID)
	if err != nil {
		return "", err
	}

	s.audit.record(ctx, models.ActionCommitmentRequested, seedID, nil)
	return seed.CommitmentHash, nil
}

// Reveal publishes the secret. Revealing again returns the same bytes.
func (s *SeedService) Reveal(ctx context.Context, seedID string) ([]byte, error) {
	if _, err := s.usable(ctx, seedID); err != nil {
		return nil, err
	}

	// microseconds are the finest precision every backend keeps
	at := s.now().UTC().Truncate(time.Microsecond)
	seed, err := s.store.MarkRevealed(ctx, seedID, at)
	if err != nil {
		return nil, seedError(err, seedID)
	}

	first := seed.RevealedAt != nil && seed.RevealedAt.Equal(at)
	s.audit.record(ctx, models.ActionSeedRevealed, seedID, map[string]any{
		"first_reveal":  first,
		"revealed_at":   seed.RevealedAt,
		"rounds_played": seed.RoundsPlayed,
	})
	return seed.Secret, nil
}

// DiscardExpired moves created seeds that expired unused to discarded.
func (s *SeedService) DiscardExpired(ctx context.Context) (int, error) {
	ids, err := s.store.DiscardExpired(ctx, s.now().UTC())
	for _, id := range ids {
		s.audit.record(ctx, models.ActionSeedDiscarded, id, nil)
	}
	if err != nil {
		return len(ids), apperr.Wrap(apperr.CodeInternal, "failed to discard expired seeds", err)
	}
	return len(ids), nil
}

// usable loads a seed and applies expiry at time of use. Seeds that expired
// before their first round are discarded on the spot.
func (s *SeedService) usable(ctx context.Context, seedID string) (*models.ServerSeedRecord, error) {
	seed, err := s.store.GetSeed(ctx, seedID)
	if err != nil {
		return nil, seedError(err, seedID)
	}

	if seed.Status == models.SeedDiscarded {
		return nil, expired(seedID)
	}
	if seed.Expired(s.now()) {
		discarded, err := s.store.MarkDiscarded(ctx, seedID, s.now())
		if err != nil {
			return nil, seedError(err, seedID)
		}
		if discarded {
			s.audit.record(ctx, models.ActionSeedDiscarded, seedID, nil)
			return nil, expired(seedID)
		}
		// a round landed first; reload
		return s.usable(ctx, seedID)
	}
	return seed, nil
}

// lookup returns the seed without expiry side effects.
func (s *SeedService) lookup(ctx context.Context, seedID string) (*models.ServerSeedRecord, error) {
	seed, err := s.store.GetSeed(ctx, seedID)
	if err != nil {
		return nil, seedError(err, seedID)
	}
	return seed, nil
}

func expired(seedID string) error {
	return apperr.WithMetadata(apperr.CodeExpired, "seed expired before first use", map[string]string{"seed_id": seedID})
}

// seedError maps storage sentinels to domain errors.
func seedError(err error, seedID string) error {
	meta := map[string]string{"seed_id": seedID}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.WithMetadata(apperr.CodeNotFound, "seed not found", meta)
	case errors.Is(err, storage.ErrSeedRevealed):
		return apperr.WithMetadata(apperr.CodeAlreadyRevealed, "seed already revealed", meta)
	case errors.Is(err, storage.ErrSeedDiscarded):
		return expired(seedID)
	default:
		return apperr.Wrap(apperr.CodeInternal, "seed storage failure", err)
	}
}

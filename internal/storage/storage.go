// Package storage defines the persistence contracts shared by the memory,
// Redis and Postgres backends.
package storage

import (
	"context"
	"errors"
	"time"

	"provably-fair-backend/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrSeedRevealed  = errors.New("seed already revealed")
	ErrSeedDiscarded = errors.New("seed discarded")
)

type SeedRepository interface {
	InsertSeed(ctx context.Context, seed *models.ServerSeedRecord) error
	GetSeed(ctx context.Context, id string) (*models.ServerSeedRecord, error)
	// MarkRevealed flips a created seed to revealed. Revealing twice returns
	// the record from the first reveal. A discarded seed yields
	// ErrSeedDiscarded.
	MarkRevealed(ctx context.Context, id string, at time.Time) (*models.ServerSeedRecord, error)
	// MarkDiscarded discards the seed if it is still created, unused and
	// expired at now. It reports whether the seed is discarded afterwards.
	MarkDiscarded(ctx context.Context, id string, now time.Time) (bool, error)
	DiscardExpired(ctx context.Context, now time.Time) ([]string, error)
}

type RoundRepository interface {
	// InsertRoundIfAbsent stores round unless its key is already taken, in
	// which case the stored round is returned with inserted=false. New rounds
	// are only accepted while the seed is in the created state.
	InsertRoundIfAbsent(ctx context.Context, round *models.RoundResult) (stored *models.RoundResult, inserted bool, err error)
	GetRoundByKey(ctx context.Context, key models.RoundKey) (*models.RoundResult, error)
	GetRound(ctx context.Context, id string) (*models.RoundResult, error)
}

type AuditRepository interface {
	// AppendAudit assigns entry.Sequence.
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	// ListAudit returns entries with from <= timestamp <= to by sequence.
	ListAudit(ctx context.Context, from, to time.Time) ([]models.AuditEntry, error)
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
}

type Store interface {
	SeedRepository
	RoundRepository
	AuditRepository
	Ping(ctx context.Context) error
	Close() error
}

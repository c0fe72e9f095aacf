// Package postgres is the Store backed by a pgx connection pool. Round
// inserts and reveals lock the seed row so each key has one first writer.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"provably-fair-backend/internal/fairness"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// InitSchema creates the tables if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS seeds (
		id TEXT PRIMARY KEY,
		operator_id TEXT NOT NULL DEFAULT '',
		secret BYTEA NOT NULL,
		commitment_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'created',
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		revealed_at TIMESTAMPTZ,
		rounds_played BIGINT NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_seeds_expiry ON seeds(expires_at) WHERE status = 'created';

	CREATE TABLE IF NOT EXISTS rounds (
		round_id TEXT PRIMARY KEY,
		seed_id TEXT NOT NULL REFERENCES seeds(id),
		client_seed TEXT NOT NULL,
		nonce BIGINT NOT NULL,
		game_tag TEXT NOT NULL,
		config JSONB NOT NULL,
		result JSONB NOT NULL,
		result_hash TEXT NOT NULL,
		signature TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE(seed_id, client_seed, nonce)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		ts TIMESTAMPTZ NOT NULL,
		action TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		payload JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("storage.postgres.InitSchema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) InsertSeed(ctx context.Context, seed *models.ServerSeedRecord) error {
	const op = "storage.postgres.InsertSeed"

	_, err := s.pool.Exec(ctx, `
		INSERT INTO seeds (id, operator_id, secret, commitment_hash, status, created_at, expires_at, rounds_played)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		seed.ID, seed.OperatorID, seed.Secret, seed.CommitmentHash, string(seed.Status),
		seed.CreatedAt, seed.ExpiresAt, seed.RoundsPlayed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const seedColumns = `id, operator_id, secret, commitment_hash, status, created_at, expires_at, revealed_at, rounds_played`

func scanSeed(row pgx.Row) (*models.ServerSeedRecord, error) {
	var (
		seed   models.ServerSeedRecord
		status string
	)
	err := row.Scan(&seed.ID, &seed.OperatorID, &seed.Secret, &seed.CommitmentHash, &status,
		&seed.CreatedAt, &seed.ExpiresAt, &seed.RevealedAt, &seed.RoundsPlayed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	seed.Status = models.SeedStatus(status)
	seed.Revealed = seed.Status == models.SeedRevealed
	return &seed, nil
}

func (s *Store) GetSeed(ctx context.Context, id string) (*models.ServerSeedRecord, error) {
	const op = "storage.postgres.GetSeed"

	seed, err := scanSeed(s.pool.QueryRow(ctx, `SELECT `+seedColumns+` FROM seeds WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return seed, nil
}

func (s *Store) MarkRevealed(ctx context.Context, id string, at time.Time) (*models.ServerSeedRecord, error) {
	const op = "storage.postgres.MarkRevealed"

	var seed *models.ServerSeedRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		seed, err = scanSeed(tx.QueryRow(ctx, `SELECT `+seedColumns+` FROM seeds WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		switch seed.Status {
		case models.SeedDiscarded:
			return storage.ErrSeedDiscarded
		case models.SeedRevealed:
			return nil
		}

		seed, err = scanSeed(tx.QueryRow(ctx, `
			UPDATE seeds SET status = 'revealed', revealed_at = $2
			WHERE id = $1
			RETURNING `+seedColumns, id, at))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return seed, nil
}

func (s *Store) MarkDiscarded(ctx context.Context, id string, now time.Time) (bool, error) {
	const op = "storage.postgres.MarkDiscarded"

	var status string
	err := s.pool.QueryRow(ctx, `
		UPDATE seeds SET status = CASE
			WHEN status = 'created' AND rounds_played = 0 AND expires_at <= $2 THEN 'discarded'
			ELSE status END
		WHERE id = $1
		RETURNING status`, id, now).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return status == string(models.SeedDiscarded), nil
}

func (s *Store) DiscardExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.postgres.DiscardExpired"

	rows, err := s.pool.Query(ctx, `
		UPDATE seeds SET status = 'discarded'
		WHERE status = 'created' AND rounds_played = 0 AND expires_at <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

const roundColumns = `round_id, seed_id, client_seed, nonce, game_tag, config, result, result_hash, signature, created_at`

func scanRound(row pgx.Row) (*models.RoundResult, error) {
	var (
		round          models.RoundResult
		nonce          int64
		tag            string
		config, result []byte
	)
	err := row.Scan(&round.RoundID, &round.SeedID, &round.ClientSeed, &nonce, &tag,
		&config, &result, &round.ResultHash, &round.Signature, &round.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	round.Nonce = uint64(nonce)
	round.GameTag = fairness.GameTag(tag)
	if err := json.Unmarshal(config, &round.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal(result, &round.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &round, nil
}

func getRoundByKey(ctx context.Context, q querier, key models.RoundKey) (*models.RoundResult, error) {
	return scanRound(q.QueryRow(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE seed_id = $1 AND client_seed = $2 AND nonce = $3`,
		key.SeedID, key.ClientSeed, int64(key.Nonce)))
}

func (s *Store) InsertRoundIfAbsent(ctx context.Context, round *models.RoundResult) (*models.RoundResult, bool, error) {
	const op = "storage.postgres.InsertRoundIfAbsent"

	config, err := json.Marshal(round.Config)
	if err != nil {
		return nil, false, fmt.Errorf("%s: failed to marshal config: %w", op, err)
	}
	result, err := json.Marshal(round.Result)
	if err != nil {
		return nil, false, fmt.Errorf("%s: failed to marshal result: %w", op, err)
	}

	var (
		stored   *models.RoundResult
		inserted bool
	)
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM seeds WHERE id = $1 FOR UPDATE`, round.SeedID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return err
		}

		existing, err := getRoundByKey(ctx, tx, round.Key())
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		switch models.SeedStatus(status) {
		case models.SeedRevealed:
			return storage.ErrSeedRevealed
		case models.SeedDiscarded:
			return storage.ErrSeedDiscarded
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO rounds (`+roundColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (seed_id, client_seed, nonce) DO NOTHING`,
			round.RoundID, round.SeedID, round.ClientSeed, int64(round.Nonce), string(round.GameTag),
			config, result, round.ResultHash, round.Signature, round.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			stored, err = getRoundByKey(ctx, tx, round.Key())
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE seeds SET rounds_played = rounds_played + 1 WHERE id = $1`, round.SeedID); err != nil {
			return err
		}
		c := *round
		stored, inserted = &c, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return stored, inserted, nil
}

func (s *Store) GetRoundByKey(ctx context.Context, key models.RoundKey) (*models.RoundResult, error) {
	const op = "storage.postgres.GetRoundByKey"

	round, err := getRoundByKey(ctx, s.pool, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return round, nil
}

func (s *Store) GetRound(ctx context.Context, id string) (*models.RoundResult, error) {
	const op = "storage.postgres.GetRound"

	round, err := scanRound(s.pool.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE round_id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return round, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	const op = "storage.postgres.AppendAudit"

	var payload []byte
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO audit_log (id, ts, action, subject_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq`,
		entry.ID, entry.Timestamp, string(entry.Action), entry.SubjectID, payload).Scan(&entry.Sequence)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, from, to time.Time) ([]models.AuditEntry, error) {
	const op = "storage.postgres.ListAudit"

	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, ts, action, subject_id, payload
		FROM audit_log
		WHERE ts >= $1 AND ts <= $2
		ORDER BY seq`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e       models.AuditEntry
			action  string
			payload []byte
		)
		if err := rows.Scan(&e.Sequence, &e.ID, &e.Timestamp, &action, &e.SubjectID, &payload); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Action = models.AuditAction(action)
		e.Payload = payload
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.postgres.PruneAudit"

	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

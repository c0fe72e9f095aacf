// Package redisstore keeps seeds, rounds and the audit log in Redis. State
// transitions run as Lua scripts so each one is atomic on the server.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Store struct {
	client *redis.Client
}

var _ storage.Store = (*Store)(nil)

func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) InsertSeed(ctx context.Context, seed *models.ServerSeedRecord) error {
	const op = "storage.redis.InsertSeed"

	data, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal seed: %w", op, err)
	}

	ok, err := s.client.SetNX(ctx, fmt.Sprintf(KeySeed, seed.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: seed %s already exists", op, seed.ID)
	}

	if err := s.client.ZAdd(ctx, KeySeedExpiry, redis.Z{
		Score:  float64(seed.ExpiresAt.UnixMilli()),
		Member: seed.ID,
	}).Err(); err != nil {
		return fmt.Errorf("%s: failed to index expiry: %w", op, err)
	}
	return nil
}

func (s *Store) GetSeed(ctx context.Context, id string) (*models.ServerSeedRecord, error) {
	const op = "storage.redis.GetSeed"

	data, err := s.client.Get(ctx, fmt.Sprintf(KeySeed, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return decodeSeed(op, data)
}

var revealScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("not found")
	end

	local seed = cjson.decode(data)
	if seed.status == "discarded" then
		return redis.error_reply("discarded")
	end

	if seed.status == "created" then
		seed.status = "revealed"
		seed.revealed = true
		seed.revealed_at = ARGV[1]
		data = cjson.encode(seed)
		redis.call("SET", KEYS[1], data)
		redis.call("ZREM", KEYS[2], ARGV[2])
	end

	return data
`)

func (s *Store) MarkRevealed(ctx context.Context, id string, at time.Time) (*models.ServerSeedRecord, error) {
	const op = "storage.redis.MarkRevealed"

	keys := []string{fmt.Sprintf(KeySeed, id), KeySeedExpiry}
	data, err := revealScript.Run(ctx, s.client, keys, at.UTC().Format(time.RFC3339Nano), id).Text()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, scriptError(err))
	}

	return decodeSeed(op, data)
}

var discardScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("not found")
	end

	local seed = cjson.decode(data)
	if seed.status ~= "created" or seed.rounds_played ~= 0 then
		return {seed.status, 0}
	end

	local expiry = redis.call("ZSCORE", KEYS[2], ARGV[1])
	if not expiry or tonumber(expiry) > tonumber(ARGV[2]) then
		return {seed.status, 0}
	end

	seed.status = "discarded"
	redis.call("SET", KEYS[1], cjson.encode(seed))
	redis.call("ZREM", KEYS[2], ARGV[1])

	return {seed.status, 1}
`)

func (s *Store) discard(ctx context.Context, id string, now time.Time) (status string, changed bool, err error) {
	keys := []string{fmt.Sprintf(KeySeed, id), KeySeedExpiry}
	res, err := discardScript.Run(ctx, s.client, keys, id, now.UnixMilli()).Slice()
	if err != nil {
		return "", false, scriptError(err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("unexpected discard reply: %v", res)
	}

	status, _ = res[0].(string)
	flag, _ := res[1].(int64)
	return status, flag == 1, nil
}

func (s *Store) MarkDiscarded(ctx context.Context, id string, now time.Time) (bool, error) {
	const op = "storage.redis.MarkDiscarded"

	status, _, err := s.discard(ctx, id, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return status == string(models.SeedDiscarded), nil
}

func (s *Store) DiscardExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.redis.DiscardExpired"

	ids, err := s.client.ZRangeByScore(ctx, KeySeedExpiry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var discarded []string
	for _, id := range ids {
		_, changed, err := s.discard(ctx, id, now)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.client.ZRem(ctx, KeySeedExpiry, id)
				continue
			}
			return discarded, fmt.Errorf("%s: %w", op, err)
		}
		if changed {
			discarded = append(discarded, id)
		}
	}
	return discarded, nil
}

var insertRoundScript = redis.NewScript(`
	local existing = redis.call("GET", KEYS[1])
	if existing then
		return {0, existing}
	end

	local data = redis.call("GET", KEYS[2])
	if not data then
		return redis.error_reply("not found")
	end

	local seed = cjson.decode(data)
	if seed.status == "revealed" then
		return redis.error_reply("revealed")
	end
	if seed.status == "discarded" then
		return redis.error_reply("discarded")
	end

	seed.rounds_played = seed.rounds_played + 1
	redis.call("SET", KEYS[2], cjson.encode(seed))
	redis.call("ZREM", KEYS[4], ARGV[2])

	redis.call("SET", KEYS[3], ARGV[1])
	redis.call("SET", KEYS[1], ARGV[3])

	return {1, ARGV[3]}
`)

func (s *Store) InsertRoundIfAbsent(ctx context.Context, round *models.RoundResult) (*models.RoundResult, bool, error) {
	const op = "storage.redis.InsertRoundIfAbsent"

	data, err := json.Marshal(round)
	if err != nil {
		return nil, false, fmt.Errorf("%s: failed to marshal round: %w", op, err)
	}

	keys := []string{
		roundKey(round.Key()),
		fmt.Sprintf(KeySeed, round.SeedID),
		fmt.Sprintf(KeyRound, round.RoundID),
		KeySeedExpiry,
	}
	res, err := insertRoundScript.Run(ctx, s.client, keys, data, round.SeedID, round.RoundID).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, scriptError(err))
	}
	if len(res) != 2 {
		return nil, false, fmt.Errorf("%s: unexpected reply: %v", op, res)
	}

	inserted, _ := res[0].(int64)
	if inserted == 1 {
		stored := *round
		return &stored, true, nil
	}

	id, _ := res[1].(string)
	stored, err := s.GetRound(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return stored, false, nil
}

func (s *Store) GetRoundByKey(ctx context.Context, key models.RoundKey) (*models.RoundResult, error) {
	const op = "storage.redis.GetRoundByKey"

	id, err := s.client.Get(ctx, roundKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetRound(ctx, id)
}

func (s *Store) GetRound(ctx context.Context, id string) (*models.RoundResult, error) {
	const op = "storage.redis.GetRound"

	data, err := s.client.Get(ctx, fmt.Sprintf(KeyRound, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var round models.RoundResult
	if err := json.Unmarshal([]byte(data), &round); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal round: %w", op, err)
	}
	return &round, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	const op = "storage.redis.AppendAudit"

	seq, err := s.client.Incr(ctx, KeyAuditSeq).Result()
	if err != nil {
		return fmt.Errorf("%s: failed to allocate sequence: %w", op, err)
	}
	entry.Sequence = seq

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal entry: %w", op, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeyAuditEntry, seq), data, 0)
	pipe.ZAdd(ctx, KeyAuditTimeline, redis.Z{
		Score:  float64(entry.Timestamp.UnixMilli()),
		Member: seq,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, from, to time.Time) ([]models.AuditEntry, error) {
	const op = "storage.redis.ListAudit"

	members, err := s.client.ZRangeByScore(ctx, KeyAuditTimeline, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.Get(ctx, auditEntryKey(m))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: pipeline execution failed: %w", op, err)
	}

	entries := make([]models.AuditEntry, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}

		var e models.AuditEntry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("%s: failed to unmarshal entry: %w", op, err)
		}
		// scores are millisecond precision
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries, nil
}

func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.redis.PruneAudit"

	members, err := s.client.ZRangeByScore(ctx, KeyAuditTimeline, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, len(members))
	zmembers := make([]interface{}, len(members))
	for i, m := range members {
		keys[i] = auditEntryKey(m)
		zmembers[i] = m
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	removed := pipe.ZRem(ctx, KeyAuditTimeline, zmembers...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return removed.Val(), nil
}

// CheckRateLimit counts hits for subject/action in a fixed window and
// reports whether the caller is still within limit.
func (s *Store) CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, action, subject)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func roundKey(k models.RoundKey) string {
	return fmt.Sprintf(KeyRoundByKey, k.SeedID, k.Nonce, k.ClientSeed)
}

func auditEntryKey(member string) string {
	seq, _ := strconv.ParseInt(member, 10, 64)
	return fmt.Sprintf(KeyAuditEntry, seq)
}

func decodeSeed(op, data string) (*models.ServerSeedRecord, error) {
	var seed models.ServerSeedRecord
	if err := json.Unmarshal([]byte(data), &seed); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal seed: %w", op, err)
	}
	return &seed, nil
}

// scriptError maps error replies raised by the Lua scripts to storage
// sentinels.
func scriptError(err error) error {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return err
	}
	switch strings.TrimPrefix(rerr.Error(), "ERR ") {
	case "not found":
		return storage.ErrNotFound
	case "revealed":
		return storage.ErrSeedRevealed
	case "discarded":
		return storage.ErrSeedDiscarded
	}
	return err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"provably-fair-backend/internal/apperr"
	"provably-fair-backend/internal/fairness"
	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
)

// Play is the answer to a round request. Replayed is set when the round
// already existed and the stored result was returned as is.
type Play struct {
	Round    *models.RoundResult
	Replayed bool
}

// RoundLedger derives, signs and records rounds. Each (seed, client seed,
// nonce) key produces at most one stored round.
type RoundLedger struct {
	seeds  *SeedService
	store  storage.RoundRepository
	signer *Signer
	audit  *AuditTrail
	log    *slog.Logger
	now    func() time.Time

	// strict rejects a reused key with NonceReused instead of replaying it
	strict bool

	inflight singleflight.Group
}

func NewRoundLedger(seeds *SeedService, store storage.RoundRepository, signer *Signer, audit *AuditTrail, log *slog.Logger, strict bool) *RoundLedger {
	return &RoundLedger{
		seeds:  seeds,
		store:  store,
		signer: signer,
		audit:  audit,
		log:    log,
		now:    time.Now,
		strict: strict,
	}
}

func (l *RoundLedger) PlayRound(ctx context.Context, req models.RoundRequest) (*Play, error) {
	if req.Nonce > fairness.MaxNonce {
		return nil, apperr.New(apperr.CodeInvalidConfig, "nonce exceeds 2^63-1")
	}
	if err := req.Config.Validate(req.GameTag); err != nil {
		return nil, err
	}

	// The shared call outlives the caller that started it, so followers
	// still get the stored round when that caller goes away.
	shared := context.WithoutCancel(ctx)
	executed := false
	v, err, _ := l.inflight.Do(inflightKey(req.Key()), func() (interface{}, error) {
		executed = true
		return l.play(shared, req)
	})
	if err != nil {
		return nil, err
	}

	play := v.(*Play)
	if executed {
		return play, nil
	}
	// another caller computed this round
	return l.replay(play.Round)
}

func (l *RoundLedger) play(ctx context.Context, req models.RoundRequest) (*Play, error) {
	existing, err := l.store.GetRoundByKey(ctx, req.Key())
	switch {
	case err == nil:
		return l.replay(existing)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to look up round", err)
	}

	seed, err := l.seeds.usable(ctx, req.SeedID)
	if err != nil {
		return nil, err
	}
	if seed.Revealed {
		return nil, apperr.WithMetadata(apperr.CodeAlreadyRevealed,
			"revealed seeds cannot host new rounds", map[string]string{"seed_id": req.SeedID})
	}

	outcome, err := fairness.Compute(seed.Secret, req.ClientSeed, req.Nonce, req.GameTag, req.Config)
	if err != nil {
		return nil, err
	}
	payload, err := fairness.CanonicalPayload(req.SeedID, req.ClientSeed, req.Nonce, req.GameTag, outcome)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to encode round", err)
	}

	round := &models.RoundResult{
		RoundID:    models.NewID(),
		SeedID:     req.SeedID,
		ClientSeed: req.ClientSeed,
		Nonce:      req.Nonce,
		GameTag:    req.GameTag,
		Config:     req.Config,
		Result:     outcome,
		ResultHash: fairness.HashPayload(payload),
		Signature:  l.signer.Sign(payload),
		CreatedAt:  l.now().UTC(),
	}

	stored, inserted, err := l.store.InsertRoundIfAbsent(ctx, round)
	if err != nil {
		return nil, seedError(err, req.SeedID)
	}
	if !inserted {
		return l.replay(stored)
	}

	l.audit.record(ctx, models.ActionRoundPlayed, stored.RoundID, map[string]any{
		"seed_id":     stored.SeedID,
		"client_seed": stored.ClientSeed,
		"nonce":       stored.Nonce,
		"game_tag":    stored.GameTag,
		"result_hash": stored.ResultHash,
	})
	l.log.Debug("round played",
		sl.String("round_id", stored.RoundID),
		sl.String("seed_id", stored.SeedID),
		sl.String("game_tag", string(stored.GameTag)))

	return &Play{Round: stored}, nil
}

func (l *RoundLedger) replay(round *models.RoundResult) (*Play, error) {
	if l.strict {
		return nil, apperr.WithMetadata(apperr.CodeNonceReused,
			fmt.Sprintf("nonce %d already used with this client seed", round.Nonce),
			map[string]string{"round_id": round.RoundID})
	}
	c := *round
	return &Play{Round: &c, Replayed: true}, nil
}

func (l *RoundLedger) GetRound(ctx context.Context, roundID string) (*models.RoundResult, error) {
	round, err := l.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.WithMetadata(apperr.CodeNotFound, "round not found", map[string]string{"round_id": roundID})
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to load round", err)
	}
	return round, nil
}

// VisibleResult returns the outcome a caller may see. Trusted callers and
// rounds whose seed is revealed get the full payload, everyone else the
// summary.
func (l *RoundLedger) VisibleResult(ctx context.Context, round *models.RoundResult, trusted bool) (fairness.Outcome, error) {
	if trusted {
		return round.Result, nil
	}
	seed, err := l.seeds.lookup(ctx, round.SeedID)
	if err != nil {
		return fairness.Outcome{}, err
	}
	if seed.Revealed {
		return round.Result, nil
	}
	return round.Result.Summary(), nil
}

func inflightKey(k models.RoundKey) string {
	return k.SeedID + "\x00" + strconv.FormatUint(k.Nonce, 10) + "\x00" + k.ClientSeed
}

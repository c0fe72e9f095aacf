package services

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"strings"

	"provably-fair-backend/internal/apperr"
	"provably-fair-backend/internal/fairness"
	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
)

type VerifyRequest struct {
	SeedID        string              `json:"seed_id" binding:"required"`
	ClientSeed    string              `json:"client_seed"`
	Nonce         uint64              `json:"nonce"`
	GameTag       fairness.GameTag    `json:"game_tag" binding:"required"`
	Config        fairness.GameConfig `json:"config"`
	ClaimedHash   string              `json:"claimed_hash,omitempty"`
	ClaimedResult *fairness.Outcome   `json:"claimed_result,omitempty"`
}

func (r VerifyRequest) key() models.RoundKey {
	return models.RoundKey{SeedID: r.SeedID, ClientSeed: r.ClientSeed, Nonce: r.Nonce}
}

// Report is the outcome of a verification. A false Match is a reported
// result, never an error. Optional checks are nil when there was nothing to
// compare.
type Report struct {
	Match           bool             `json:"match"`
	ComputedHash    string           `json:"computed_hash"`
	ProvidedHash    string           `json:"provided_hash,omitempty"`
	HashMatch       *bool            `json:"hash_match,omitempty"`
	PayloadMatch    *bool            `json:"payload_match,omitempty"`
	SignatureValid  *bool            `json:"signature_valid,omitempty"`
	CommitmentMatch *bool            `json:"commitment_match,omitempty"`
	ComputedResult  fairness.Outcome `json:"computed_result"`
	RoundID         string           `json:"round_id,omitempty"`
	Detail          string           `json:"detail,omitempty"`
}

type Verifier struct {
	seeds  *SeedService
	rounds storage.RoundRepository
	signer *Signer
	audit  *AuditTrail
	log    *slog.Logger
}

func NewVerifier(seeds *SeedService, rounds storage.RoundRepository, signer *Signer, audit *AuditTrail, log *slog.Logger) *Verifier {
	return &Verifier{
		seeds:  seeds,
		rounds: rounds,
		signer: signer,
		audit:  audit,
		log:    log,
	}
}

// Verify recomputes a round from the revealed seed and compares it with the
// caller's claim and with the stored round, if any.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*Report, error) {
	if err := req.Config.Validate(req.GameTag); err != nil {
		return nil, err
	}

	seed, err := v.seeds.lookup(ctx, req.SeedID)
	if err != nil {
		return nil, err
	}
	if seed.Status == models.SeedDiscarded {
		return nil, v.refuse(ctx, req, expired(req.SeedID))
	}
	if !seed.Revealed {
		return nil, v.refuse(ctx, req, apperr.WithMetadata(apperr.CodeNotRevealed,
			"seed is not revealed yet", map[string]string{"seed_id": req.SeedID}))
	}

	stored, err := v.rounds.GetRoundByKey(ctx, req.key())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to look up round", err)
		}
		stored = nil
	}

	if req.ClaimedHash == "" && req.ClaimedResult == nil && stored == nil {
		return nil, apperr.New(apperr.CodeInvalidConfig, "nothing to verify: no claimed hash, claimed result or stored round")
	}

	report, err := compare(seed.Secret, req, stored, v.signer.PublicKey())
	if err != nil {
		return nil, err
	}
	commitment := fairness.Commitment(seed.Secret) == seed.CommitmentHash
	report.CommitmentMatch = &commitment
	if !commitment {
		report.Match = false
		report.Detail = joinDetail(report.Detail, "stored commitment does not match secret")
	}

	v.audit.record(ctx, models.ActionVerificationRequested, req.SeedID, map[string]any{
		"client_seed":   req.ClientSeed,
		"nonce":         req.Nonce,
		"game_tag":      req.GameTag,
		"match":         report.Match,
		"computed_hash": report.ComputedHash,
		"provided_hash": report.ProvidedHash,
	})

	if !report.Match {
		v.log.Error("verification mismatch",
			sl.String("seed_id", req.SeedID),
			sl.String("client_seed", req.ClientSeed),
			sl.Any("nonce", req.Nonce),
			sl.String("game_tag", string(req.GameTag)),
			sl.String("computed_hash", report.ComputedHash),
			sl.String("provided_hash", report.ProvidedHash),
			sl.String("detail", report.Detail))
	}

	return report, nil
}

// refuse audits a verification turned away before recomputation and
// returns err unchanged.
func (v *Verifier) refuse(ctx context.Context, req VerifyRequest, err error) error {
	code := apperr.CodeInternal
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	v.audit.record(ctx, models.ActionVerificationRequested, req.SeedID, map[string]any{
		"client_seed": req.ClientSeed,
		"nonce":       req.Nonce,
		"game_tag":    req.GameTag,
		"refused":     code,
	})
	return err
}

// VerifyOffline recomputes a round from a revealed secret without any
// store. commitment is optional; when set it is checked against the secret.
func VerifyOffline(secret []byte, commitment string, req VerifyRequest) (*Report, error) {
	if err := req.Config.Validate(req.GameTag); err != nil {
		return nil, err
	}

	report, err := compare(secret, req, nil, nil)
	if err != nil {
		return nil, err
	}
	if commitment != "" {
		ok := fairness.Commitment(secret) == strings.ToLower(commitment)
		report.CommitmentMatch = &ok
		if !ok {
			report.Match = false
			report.Detail = joinDetail(report.Detail, "commitment does not match secret")
		}
	}
	return report, nil
}

func compare(secret []byte, req VerifyRequest, stored *models.RoundResult, pub ed25519.PublicKey) (*Report, error) {
	outcome, err := fairness.Compute(secret, req.ClientSeed, req.Nonce, req.GameTag, req.Config)
	if err != nil {
		return nil, err
	}
	payload, err := fairness.CanonicalPayload(req.SeedID, req.ClientSeed, req.Nonce, req.GameTag, outcome)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to encode round", err)
	}

	report := &Report{
		Match:          true,
		ComputedHash:   fairness.HashPayload(payload),
		ComputedResult: outcome,
	}
	fail := func(detail string) {
		report.Match = false
		report.Detail = joinDetail(report.Detail, detail)
	}

	if req.ClaimedHash != "" {
		report.ProvidedHash = strings.ToLower(req.ClaimedHash)
	} else if stored != nil {
		report.ProvidedHash = stored.ResultHash
	}
	if report.ProvidedHash != "" {
		ok := report.ProvidedHash == report.ComputedHash
		report.HashMatch = &ok
		if !ok {
			fail("result hash mismatch")
		}
	}
	if stored != nil && req.ClaimedHash != "" && stored.ResultHash != report.ComputedHash {
		f := false
		report.HashMatch = &f
		fail("stored result hash mismatch")
	}

	claimed := req.ClaimedResult
	if claimed == nil && stored != nil {
		claimed = &stored.Result
	}
	if claimed != nil {
		want, err := fairness.CanonicalOutcome(outcome)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to encode outcome", err)
		}
		got, err := fairness.CanonicalOutcome(*claimed)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to encode outcome", err)
		}
		ok := bytes.Equal(want, got)
		report.PayloadMatch = &ok
		if !ok {
			fail("decoded result mismatch")
		}
	}

	if stored != nil {
		report.RoundID = stored.RoundID
		storedPayload, err := fairness.CanonicalPayload(stored.SeedID, stored.ClientSeed, stored.Nonce, stored.GameTag, stored.Result)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "failed to encode stored round", err)
		}
		ok := VerifySignature(pub, storedPayload, stored.Signature)
		report.SignatureValid = &ok
		if !ok {
			fail("round signature invalid")
		}
	}

	return report, nil
}

func joinDetail(detail, more string) string {
	if detail == "" {
		return more
	}
	return detail + "; " + more
}

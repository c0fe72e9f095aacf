package handlers

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/middleware"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/services"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type FairnessHandler struct {
	seeds    *services.SeedService
	ledger   *services.RoundLedger
	verifier *services.Verifier
	audit    *services.AuditTrail
	signer   *services.Signer
	store    Pinger
	log      *slog.Logger
}

func NewFairnessHandler(
	seeds *services.SeedService,
	ledger *services.RoundLedger,
	verifier *services.Verifier,
	audit *services.AuditTrail,
	signer *services.Signer,
	store Pinger,
	log *slog.Logger,
) *FairnessHandler {
	return &FairnessHandler{
		seeds:    seeds,
		ledger:   ledger,
		verifier: verifier,
		audit:    audit,
		signer:   signer,
		store:    store,
		log:      log,
	}
}

func (h *FairnessHandler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Error("health check failed", sl.Err(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *FairnessHandler) PublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"algorithm":  "ed25519",
		"public_key": h.signer.PublicKeyHex(),
	})
}

func (h *FairnessHandler) CreateSeed(c *gin.Context) {
	operatorID := c.GetString(middleware.ContextOperatorID)

	seedID, commitment, err := h.seeds.CreateSeed(c.Request.Context(), operatorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":         true,
		"seed_id":         seedID,
		"commitment_hash": commitment,
	})
}

func (h *FairnessHandler) GetCommitment(c *gin.Context) {
	seedID := c.Param("id")

	commitment, err := h.seeds.GetCommitment(c.Request.Context(), seedID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"seed_id":         seedID,
		"commitment_hash": commitment,
	})
}

func (h *FairnessHandler) RevealSeed(c *gin.Context) {
	seedID := c.Param("id")

	secret, err := h.seeds.Reveal(c.Request.Context(), seedID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"seed_id":     seedID,
		"secret_seed": hex.EncodeToString(secret),
	})
}

func (h *FairnessHandler) PlayRound(c *gin.Context) {
	var req models.RoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.ClientSeed == "" {
		clientSeed, err := models.GenerateClientSeed()
		if err != nil {
			h.log.Error("failed to generate client seed", sl.Err(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		req.ClientSeed = clientSeed
	}

	play, err := h.ledger.PlayRound(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	round, err := h.roundView(c, play.Round)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if play.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":  true,
		"replayed": play.Replayed,
		"round":    round,
	})
}

func (h *FairnessHandler) GetRound(c *gin.Context) {
	round, err := h.ledger.GetRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.roundView(c, round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": view})
}

func (h *FairnessHandler) roundView(c *gin.Context, round *models.RoundResult) (gin.H, error) {
	result, err := h.ledger.VisibleResult(c.Request.Context(), round, middleware.IsTrusted(c))
	if err != nil {
		return nil, err
	}

	return gin.H{
		"round_id":    round.RoundID,
		"seed_id":     round.SeedID,
		"client_seed": round.ClientSeed,
		"nonce":       round.Nonce,
		"game_tag":    round.GameTag,
		"config":      round.Config,
		"result":      result,
		"result_hash": round.ResultHash,
		"signature":   round.Signature,
		"created_at":  round.CreatedAt,
	}, nil
}

func (h *FairnessHandler) Verify(c *gin.Context) {
	var req services.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.verifier.Verify(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *FairnessHandler) ExportAudit(c *gin.Context) {
	now := time.Now().UTC()
	from, err := parseTime(c.Query("from"), now.Add(-24*time.Hour))
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := parseTime(c.Query("to"), now)
	if err != nil {
		badRequest(c, err)
		return
	}

	entries, err := h.audit.Export(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"from":    from,
		"to":      to,
		"count":   len(entries),
		"entries": entries,
	})
}

func parseTime(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, s)
}

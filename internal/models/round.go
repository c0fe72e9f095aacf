package models

import (
	"time"

	"provably-fair-backend/internal/fairness"
)

// RoundKey identifies one consumption of a (client seed, nonce) pair under a
// server seed.
type RoundKey struct {
	SeedID     string
	ClientSeed string
	Nonce      uint64
}

// RoundResult is immutable once stored.
type RoundResult struct {
	RoundID    string              `json:"round_id"`
	SeedID     string              `json:"seed_id"`
	ClientSeed string              `json:"client_seed"`
	Nonce      uint64              `json:"nonce"`
	GameTag    fairness.GameTag    `json:"game_tag"`
	Config     fairness.GameConfig `json:"config"`
	Result     fairness.Outcome    `json:"result"`
	ResultHash string              `json:"result_hash"`
	Signature  string              `json:"signature"`
	CreatedAt  time.Time           `json:"created_at"`
}

func (r *RoundResult) Key() RoundKey {
	return RoundKey{SeedID: r.SeedID, ClientSeed: r.ClientSeed, Nonce: r.Nonce}
}

type RoundRequest struct {
	SeedID     string              `json:"seed_id" binding:"required"`
	ClientSeed string              `json:"client_seed"`
	Nonce      uint64              `json:"nonce"`
	GameTag    fairness.GameTag    `json:"game_tag" binding:"required"`
	Config     fairness.GameConfig `json:"config"`
}

func (r RoundRequest) Key() RoundKey {
	return RoundKey{SeedID: r.SeedID, ClientSeed: r.ClientSeed, Nonce: r.Nonce}
}

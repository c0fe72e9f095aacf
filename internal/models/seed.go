package models

import "time"

type SeedStatus string

const (
	SeedCreated   SeedStatus = "created"
	SeedRevealed  SeedStatus = "revealed"
	SeedDiscarded SeedStatus = "discarded"
)

// ServerSeedRecord is a committed server seed. Secret must not leave the
// service until Revealed is true.
type ServerSeedRecord struct {
	ID             string     `json:"id"`
	OperatorID     string     `json:"operator_id"`
	Secret         []byte     `json:"secret"`
	CommitmentHash string     `json:"commitment_hash"`
	Status         SeedStatus `json:"status"`
	Revealed       bool       `json:"revealed"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RevealedAt     *time.Time `json:"revealed_at,omitempty"`
	RoundsPlayed   int64      `json:"rounds_played"`
}

// Expired reports whether the seed passed its expiry before hosting any
// round. Seeds already in use stay playable until revealed.
func (s *ServerSeedRecord) Expired(now time.Time) bool {
	return s.Status == SeedCreated && s.RoundsPlayed == 0 && !now.Before(s.ExpiresAt)
}

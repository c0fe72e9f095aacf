package models

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	ActionSeedCreated           AuditAction = "SeedCreated"
	ActionCommitmentRequested   AuditAction = "CommitmentRequested"
	ActionRoundPlayed           AuditAction = "RoundPlayed"
	ActionSeedRevealed          AuditAction = "SeedRevealed"
	ActionSeedDiscarded         AuditAction = "SeedDiscarded"
	ActionVerificationRequested AuditAction = "VerificationRequested"
)

// AuditEntry is append-only. Sequence is assigned by the store.
type AuditEntry struct {
	ID        string          `json:"id"`
	Sequence  int64           `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Action    AuditAction     `json:"action"`
	SubjectID string          `json:"subject_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

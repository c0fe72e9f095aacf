package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"provably-fair-backend/internal/apperr"
	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/models"
	"provably-fair-backend/internal/storage"
)

const DefaultAuditRetention = 90 * 24 * time.Hour

// AuditTrail appends compliance records and fans them out to live
// subscribers.
type AuditTrail struct {
	store     storage.AuditRepository
	log       *slog.Logger
	retention time.Duration
	now       func() time.Time

	mu          sync.RWMutex
	broadcaster Broadcaster
}

func NewAuditTrail(store storage.AuditRepository, log *slog.Logger, retention time.Duration) *AuditTrail {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &AuditTrail{
		store:     store,
		log:       log,
		retention: retention,
		now:       time.Now,
	}
}

func (a *AuditTrail) SetBroadcaster(b Broadcaster) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcaster = b
}

// Record appends one entry. payload is JSON encoded; nil means none.
func (a *AuditTrail) Record(ctx context.Context, action models.AuditAction, subjectID string, payload any) (*models.AuditEntry, error) {
	const op = "services.AuditTrail.Record"

	entry := &models.AuditEntry{
		ID:        models.NewID(),
		Timestamp: a.now().UTC(),
		Action:    action,
		SubjectID: subjectID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal payload: %w", op, err)
		}
		entry.Payload = raw
	}

	if err := a.store.AppendAudit(ctx, entry); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to append audit entry", err)
	}

	a.mu.RLock()
	b := a.broadcaster
	a.mu.RUnlock()
	if b != nil {
		b.BroadcastAudit(*entry)
	}

	return entry, nil
}

// record is Record for callers whose own operation already succeeded: a
// failed append is logged, not returned.
func (a *AuditTrail) record(ctx context.Context, action models.AuditAction, subjectID string, payload any) {
	if _, err := a.Record(ctx, action, subjectID, payload); err != nil {
		a.log.Error("failed to record audit entry",
			sl.String("action", string(action)),
			sl.String("subject_id", subjectID),
			sl.Err(err))
	}
}

// Export returns entries with from <= timestamp <= to in sequence order.
func (a *AuditTrail) Export(ctx context.Context, from, to time.Time) ([]models.AuditEntry, error) {
	if to.Before(from) {
		return nil, apperr.New(apperr.CodeInvalidConfig, "audit range end is before its start")
	}

	entries, err := a.store.ListAudit(ctx, from, to)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to list audit entries", err)
	}
	return entries, nil
}

// Prune drops entries older than the retention window.
func (a *AuditTrail) Prune(ctx context.Context) (int64, error) {
	cutoff := a.now().Add(-a.retention)

	n, err := a.store.PruneAudit(ctx, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "failed to prune audit entries", err)
	}
	if n > 0 {
		a.log.Info("pruned audit entries", slog.Int64("count", n), slog.Time("before", cutoff))
	}
	return n, nil
}

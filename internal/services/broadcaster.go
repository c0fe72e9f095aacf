package services

import "provably-fair-backend/internal/models"

type Broadcaster interface {
	BroadcastAudit(entry models.AuditEntry)
}

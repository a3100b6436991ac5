package service

import (
	"context"
	"log/slog"
	"time"

	"go-contacts-api/internal/model"
)

type auditLog interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	ListByAccount(ctx context.Context, accountID string, limit int, offset int) ([]model.AuditEntry, model.Meta, error)
}

type authEventCounter interface {
	AuthEvent(action string, status string)
}

type AuditService struct {
	store   auditLog
	metrics authEventCounter
	log     *slog.Logger
}

func NewAuditService(store auditLog, metrics authEventCounter) *AuditService {
	return &AuditService{
		store:   store,
		metrics: metrics,
		log:     slog.With("component", "audit"),
	}
}

// Record stores entry and counts it. A failed write is logged and otherwise
// ignored; the authentication flow never fails because of its audit trail.
func (s *AuditService) Record(ctx context.Context, entry model.AuditEntry) {
	if s == nil {
		return
	}

	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	if s.metrics != nil {
		s.metrics.AuthEvent(entry.Action, entry.Status)
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("write audit entry", "action", entry.Action, "status", entry.Status, "error", err)
	}
}

func (s *AuditService) ListForAccount(ctx context.Context, accountID string, limit int, offset int) ([]model.AuditEntry, model.Meta, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	return s.store.ListByAccount(ctx, accountID, limit, offset)
}

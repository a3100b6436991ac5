package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-contacts-api/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries (action, account_id, email, status, detail, client_ip, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Action, entry.AccountID, entry.Email, entry.Status, entry.Detail, entry.ClientIP, entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByAccount(ctx context.Context, accountID string, limit int, offset int) ([]model.AuditEntry, model.Meta, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}
	meta := model.Meta{Limit: limit, Offset: offset, Total: total}

	rows, err := r.pool.Query(ctx,
		`SELECT id, action, account_id::text, email, status, detail, client_ip, occurred_at
		 FROM audit_entries
		 WHERE account_id = $1
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.AccountID, &e.Email, &e.Status,
			&e.Detail, &e.ClientIP, &e.OccurredAt); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, meta, rows.Err()
}

package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recharge-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type AuditRepository interface {
	// Append writes one entry inside the caller's transaction so the
	// audit record commits or rolls back with the operation it records.
	Append(ctx context.Context, tx pgx.Tx, e *domain.AuditEntry) error

	List(ctx context.Context, filter *domain.AuditFilter) ([]*domain.AuditEntry, error)
}

type auditRepo struct {
	db DB
}

func NewAuditRepo(db DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.AuditEntry) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		INSERT INTO audit_log (actor_id, action, target_user_id, transaction_id, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query,
		e.ActorID, e.Action, e.TargetUserID, e.TransactionID, e.Message, time.Now(),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *auditRepo) List(ctx context.Context, filter *domain.AuditFilter) ([]*domain.AuditEntry, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}

	if filter != nil {
		if filter.ActorID != nil {
			add("actor_id = ", *filter.ActorID)
		}
		if filter.Action != nil {
			add("action = ", *filter.Action)
		}
		if filter.TransactionID != nil {
			add("transaction_id = ", *filter.TransactionID)
		}
		if filter.From != nil {
			add("created_at >= ", *filter.From)
		}
		if filter.To != nil {
			add("created_at <= ", *filter.To)
		}
	}

	query := `
		SELECT id, actor_id, action, target_user_id, transaction_id, message, created_at
		FROM audit_log
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit, offset := 100, 0
	if filter != nil {
		if filter.Limit > 0 && filter.Limit <= 500 {
			limit = filter.Limit
		}
		if filter.Offset > 0 {
			offset = filter.Offset
		}
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetUserID, &e.TransactionID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return out, nil
}

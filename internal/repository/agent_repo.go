package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
)

type AgentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Agent, error)
	Create(ctx context.Context, tx pgx.Tx, a *domain.Agent) error
	SetActive(ctx context.Context, tx pgx.Tx, id int64, active bool) error
	GetCapabilities(ctx context.Context, adminID int64) (*domain.AdminCapabilities, error)
}

type agentRepo struct {
	db DB
}

func NewAgentRepo(db DB) AgentRepository {
	return &agentRepo{db: db}
}

func (r *agentRepo) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	query := `
		SELECT id, username, full_name, phone, role, is_active, is_super_admin,
		       pos_device_id, created_at, suspended_at
		FROM agents
		WHERE id = $1
	`

	var a domain.Agent
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Username, &a.FullName, &a.Phone, &a.Role, &a.IsActive, &a.IsSuperAdmin,
		&a.POSDeviceID, &a.CreatedAt, &a.SuspendedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &a, nil
}

func (r *agentRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Agent) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		INSERT INTO agents (username, full_name, phone, role, is_active, is_super_admin, pos_device_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query,
		a.Username, a.FullName, a.Phone, a.Role, a.IsActive, a.IsSuperAdmin, a.POSDeviceID, time.Now(),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.ErrAgentAlreadyExists
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *agentRepo) SetActive(ctx context.Context, tx pgx.Tx, id int64, active bool) error {
	if tx == nil {
		return errNilTx
	}

	var suspendedAt *time.Time
	if !active {
		now := time.Now()
		suspendedAt = &now
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE agents SET is_active = $1, suspended_at = $2 WHERE id = $3`,
		active, suspendedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent state: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrAgentNotFound
	}
	return nil
}

func (r *agentRepo) GetCapabilities(ctx context.Context, adminID int64) (*domain.AdminCapabilities, error) {
	query := `
		SELECT admin_id, preset,
		       can_view_agents, can_add_agents, can_edit_agents,
		       can_view_commissions, can_edit_commissions,
		       can_view_reports, can_view_profit, can_view_audit_logs,
		       updated_at
		FROM admin_capabilities
		WHERE admin_id = $1
	`

	var c domain.AdminCapabilities
	err := r.db.QueryRow(ctx, query, adminID).Scan(
		&c.AdminID, &c.Preset,
		&c.CanViewAgents, &c.CanAddAgents, &c.CanEditAgents,
		&c.CanViewCommissions, &c.CanEditCommissions,
		&c.CanViewReports, &c.CanViewProfit, &c.CanViewAuditLogs,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin capabilities: %w", err)
	}
	return &c, nil
}

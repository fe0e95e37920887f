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

type CommissionRuleRepository interface {
	// FindActiveOverride returns the active agent-specific rule for
	// exactly this (agent, company, denomination) key.
	FindActiveOverride(ctx context.Context, agentID, companyID int64, denomination int) (*domain.CommissionRule, error)

	// FindActiveDefault returns the active company/denomination fallback
	// rule (agent_id IS NULL).
	FindActiveDefault(ctx context.Context, companyID int64, denomination int) (*domain.CommissionRule, error)

	// Upsert deactivates any active rule for the key and inserts the new
	// one in the same transaction, keeping at most one active rule per key.
	Upsert(ctx context.Context, tx pgx.Tx, create *domain.CommissionRuleCreate) (*domain.CommissionRule, error)

	ListActive(ctx context.Context) ([]*domain.CommissionRule, error)
}

type commissionRuleRepo struct {
	db DB
}

func NewCommissionRuleRepo(db DB) CommissionRuleRepository {
	return &commissionRuleRepo{db: db}
}

const ruleColumns = `
	id, agent_id, company_id, denomination, amount,
	is_active, effective_from, effective_to, created_at`

func scanRule(row pgx.Row) (*domain.CommissionRule, error) {
	var rule domain.CommissionRule
	err := row.Scan(
		&rule.ID, &rule.AgentID, &rule.CompanyID, &rule.Denomination, &rule.Amount,
		&rule.IsActive, &rule.EffectiveFrom, &rule.EffectiveTo, &rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *commissionRuleRepo) FindActiveOverride(ctx context.Context, agentID, companyID int64, denomination int) (*domain.CommissionRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM commission_rules
		WHERE agent_id = $1 AND company_id = $2 AND denomination = $3 AND is_active = true
	`

	rule, err := scanRule(r.db.QueryRow(ctx, query, agentID, companyID, denomination))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent commission rule: %w", err)
	}
	return rule, nil
}

func (r *commissionRuleRepo) FindActiveDefault(ctx context.Context, companyID int64, denomination int) (*domain.CommissionRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM commission_rules
		WHERE agent_id IS NULL AND company_id = $1 AND denomination = $2 AND is_active = true
	`

	rule, err := scanRule(r.db.QueryRow(ctx, query, companyID, denomination))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get default commission rule: %w", err)
	}
	return rule, nil
}

func (r *commissionRuleRepo) Upsert(ctx context.Context, tx pgx.Tx, create *domain.CommissionRuleCreate) (*domain.CommissionRule, error) {
	if tx == nil {
		return nil, errNilTx
	}

	now := time.Now()

	// Retire the current active rule for this key. agent_id IS NOT
	// DISTINCT FROM matches both override and default keys.
	deactivate := `
		UPDATE commission_rules
		SET is_active = false, effective_to = $1
		WHERE agent_id IS NOT DISTINCT FROM $2
		  AND company_id = $3 AND denomination = $4 AND is_active = true
	`
	if _, err := tx.Exec(ctx, deactivate, now, create.AgentID, create.CompanyID, create.Denomination); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous rule: %w", err)
	}

	insert := `
		INSERT INTO commission_rules (
			agent_id, company_id, denomination, amount,
			is_active, effective_from, created_at
		)
		VALUES ($1, $2, $3, $4, true, $5, $5)
		RETURNING ` + ruleColumns

	rule, err := scanRule(tx.QueryRow(ctx, insert,
		create.AgentID, create.CompanyID, create.Denomination, create.Amount, now,
	))
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return nil, xerrors.ErrCommissionRuleExists
		}
		return nil, fmt.Errorf("failed to create commission rule: %w", err)
	}
	return rule, nil
}

func (r *commissionRuleRepo) ListActive(ctx context.Context) ([]*domain.CommissionRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM commission_rules
		WHERE is_active = true
		ORDER BY company_id, denomination, agent_id NULLS FIRST
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list commission rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.CommissionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commission rules: %w", err)
	}
	return rules, nil
}

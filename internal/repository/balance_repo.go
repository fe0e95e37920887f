package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type BalanceRepository interface {
	GetByAgentID(ctx context.Context, agentID int64) (*domain.AgentBalance, error)
	GetByAgentIDWithLock(ctx context.Context, tx pgx.Tx, agentID int64) (*domain.AgentBalance, error)
	EnsureExists(ctx context.Context, tx pgx.Tx, agentID int64) error

	// Debit and Credit mutate the locked row and return the new balance.
	// The caller owns the surrounding transaction so the balance change
	// commits or rolls back together with related writes.
	Debit(ctx context.Context, tx pgx.Tx, agentID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, tx pgx.Tx, agentID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// Adjust applies a signed delta (admin top-up or correction).
	Adjust(ctx context.Context, tx pgx.Tx, agentID int64, delta decimal.Decimal) (decimal.Decimal, error)
}

type balanceRepo struct {
	db DB
}

func NewBalanceRepo(db DB) BalanceRepository {
	return &balanceRepo{db: db}
}

// GetByAgentID fetches the balance for an agent (read-only, no lock).
func (r *balanceRepo) GetByAgentID(ctx context.Context, agentID int64) (*domain.AgentBalance, error) {
	query := `
		SELECT agent_id, balance, updated_at
		FROM agent_balances
		WHERE agent_id = $1
	`

	var b domain.AgentBalance
	err := r.db.QueryRow(ctx, query, agentID).Scan(&b.AgentID, &b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &b, nil
}

// GetByAgentIDWithLock fetches the balance with a pessimistic lock
// (SELECT FOR UPDATE). Serializes concurrent sales for the same agent
// while unrelated agents proceed in parallel.
func (r *balanceRepo) GetByAgentIDWithLock(ctx context.Context, tx pgx.Tx, agentID int64) (*domain.AgentBalance, error) {
	if tx == nil {
		return nil, errNilTx
	}

	query := `
		SELECT agent_id, balance, updated_at
		FROM agent_balances
		WHERE agent_id = $1
		FOR UPDATE
	`

	var b domain.AgentBalance
	err := tx.QueryRow(ctx, query, agentID).Scan(&b.AgentID, &b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance with lock: %w", err)
	}
	return &b, nil
}

// EnsureExists creates the balance row at zero if absent (idempotent).
// Balances are provisioned lazily from account creation onward.
func (r *balanceRepo) EnsureExists(ctx context.Context, tx pgx.Tx, agentID int64) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		INSERT INTO agent_balances (agent_id, balance, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (agent_id) DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, agentID, time.Now()); err != nil {
		return fmt.Errorf("failed to ensure balance exists: %w", err)
	}
	return nil
}

func (r *balanceRepo) Debit(ctx context.Context, tx pgx.Tx, agentID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	return r.apply(ctx, tx, agentID, amount.Neg())
}

func (r *balanceRepo) Credit(ctx context.Context, tx pgx.Tx, agentID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	return r.apply(ctx, tx, agentID, amount)
}

func (r *balanceRepo) Adjust(ctx context.Context, tx pgx.Tx, agentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	newBalance, err := r.apply(ctx, tx, agentID, delta)
	if errors.Is(err, xerrors.ErrInsufficientBalance) {
		return decimal.Zero, xerrors.ErrNegativeBalanceNotAllowed
	}
	return newBalance, err
}

// apply performs the locked read-modify-write. The resulting balance is
// never negative; a violating delta fails and leaves the row unchanged.
func (r *balanceRepo) apply(ctx context.Context, tx pgx.Tx, agentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, errNilTx
	}

	balance, err := r.GetByAgentIDWithLock(ctx, tx, agentID)
	if err != nil {
		if !errors.Is(err, xerrors.ErrNotFound) {
			return decimal.Zero, err
		}
		// Lazy create at zero, then retry the lock so the row is held.
		if err := r.EnsureExists(ctx, tx, agentID); err != nil {
			return decimal.Zero, err
		}
		balance, err = r.GetByAgentIDWithLock(ctx, tx, agentID)
		if err != nil {
			return decimal.Zero, err
		}
	}

	newBalance := balance.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, xerrors.ErrInsufficientBalance
	}

	query := `
		UPDATE agent_balances
		SET balance = $1, updated_at = $2
		WHERE agent_id = $3
	`

	cmdTag, err := tx.Exec(ctx, query, newBalance, time.Now(), agentID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return decimal.Zero, xerrors.ErrNotFound
	}

	return newBalance, nil
}

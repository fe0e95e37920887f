package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/internal/repository"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceUsecase serves balance reads and admin adjustments. Sale-path
// debits go through SaleUsecase so they share the sale's transaction.
type BalanceUsecase struct {
	balanceRepo repository.BalanceRepository
	auditRepo   repository.AuditRepository
	events      EventSink
	db          repository.DB
	logger      *zap.Logger
}

func NewBalanceUsecase(
	balanceRepo repository.BalanceRepository,
	auditRepo repository.AuditRepository,
	events EventSink,
	db repository.DB,
	logger *zap.Logger,
) *BalanceUsecase {
	return &BalanceUsecase{
		balanceRepo: balanceRepo,
		auditRepo:   auditRepo,
		events:      events,
		db:          db,
		logger:      logger,
	}
}

// GetBalance returns the agent's balance, provisioning the row at zero on
// first access.
func (uc *BalanceUsecase) GetBalance(ctx context.Context, agentID int64) (*domain.AgentBalance, error) {
	b, err := uc.balanceRepo.GetByAgentID(ctx, agentID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	err = repository.WithinTx(ctx, uc.db, func(tx pgx.Tx) error {
		return uc.balanceRepo.EnsureExists(ctx, tx, agentID)
	})
	if err != nil {
		return nil, err
	}

	return &domain.AgentBalance{AgentID: agentID, Balance: decimal.Zero, UpdatedAt: time.Now()}, nil
}

// AdjustBalance applies an admin-signed delta. A delta that would take the
// balance below zero fails with ErrNegativeBalanceNotAllowed and changes
// nothing. The adjustment and its audit entry commit together.
func (uc *BalanceUsecase) AdjustBalance(ctx context.Context, actorID, agentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}

	var (
		newBalance decimal.Decimal
		auditEntry *domain.AuditEntry
	)
	err := repository.WithinTx(ctx, uc.db, func(tx pgx.Tx) error {
		if err := uc.balanceRepo.EnsureExists(ctx, tx, agentID); err != nil {
			return err
		}

		var err error
		newBalance, err = uc.balanceRepo.Adjust(ctx, tx, agentID, delta)
		if err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:      &actorID,
			Action:       domain.ActionAdjustBalance,
			TargetUserID: &agentID,
			Message: fmt.Sprintf("balance adjusted by %s, new balance %s",
				delta.String(), newBalance.String()),
		}
		return uc.auditRepo.Append(ctx, tx, auditEntry)
	})
	if err != nil {
		return decimal.Zero, err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)
	return newBalance, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"

	"recharge-service/internal/domain"
	"recharge-service/internal/repository"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CommissionUsecase resolves and manages commission rules.
type CommissionUsecase struct {
	ruleRepo  repository.CommissionRuleRepository
	auditRepo repository.AuditRepository
	events    EventSink
	db        repository.DB
	logger    *zap.Logger
}

func NewCommissionUsecase(
	ruleRepo repository.CommissionRuleRepository,
	auditRepo repository.AuditRepository,
	events EventSink,
	db repository.DB,
	logger *zap.Logger,
) *CommissionUsecase {
	return &CommissionUsecase{
		ruleRepo:  ruleRepo,
		auditRepo: auditRepo,
		events:    events,
		db:        db,
		logger:    logger,
	}
}

// Resolve returns the commission for (agent, company, denomination):
// active agent override first, then the active default rule, else zero.
// Deliberately uncached — rules may change between a sale and its
// confirmation, and the result must reflect rule state at call time.
func (uc *CommissionUsecase) Resolve(ctx context.Context, agentID, companyID int64, denomination int) (decimal.Decimal, error) {
	rule, err := uc.ruleRepo.FindActiveOverride(ctx, agentID, companyID, denomination)
	if err == nil {
		return rule.Amount, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("failed to resolve agent commission: %w", err)
	}

	rule, err = uc.ruleRepo.FindActiveDefault(ctx, companyID, denomination)
	if err == nil {
		return rule.Amount, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("failed to resolve default commission: %w", err)
	}

	return decimal.Zero, nil
}

// UpsertRule installs a new rule for its key, retiring any prior active
// rule atomically, and records the admin action.
func (uc *CommissionUsecase) UpsertRule(ctx context.Context, actorID int64, create *domain.CommissionRuleCreate) (*domain.CommissionRule, error) {
	if err := create.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, err)
	}

	action := domain.ActionUpdateDefaultRule
	if create.AgentID != nil {
		action = domain.ActionAddAgentCommission
	}

	var (
		rule       *domain.CommissionRule
		auditEntry *domain.AuditEntry
	)
	err := repository.WithinTx(ctx, uc.db, func(tx pgx.Tx) error {
		var err error
		rule, err = uc.ruleRepo.Upsert(ctx, tx, create)
		if err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:      &actorID,
			Action:       action,
			TargetUserID: create.AgentID,
			Message: fmt.Sprintf("commission rule set: company=%d denomination=%d amount=%s",
				create.CompanyID, create.Denomination, create.Amount.String()),
		}
		return uc.auditRepo.Append(ctx, tx, auditEntry)
	})
	if err != nil {
		return nil, err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)
	return rule, nil
}

func (uc *CommissionUsecase) ListActive(ctx context.Context) ([]*domain.CommissionRule, error) {
	return uc.ruleRepo.ListActive(ctx)
}

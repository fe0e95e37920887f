package usecase

import (
	"context"
	"errors"
	"fmt"

	"recharge-service/internal/domain"
	"recharge-service/internal/repository"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// AgentUsecase covers agent provisioning and actor resolution.
type AgentUsecase struct {
	agentRepo   repository.AgentRepository
	balanceRepo repository.BalanceRepository
	auditRepo   repository.AuditRepository
	events      EventSink
	db          repository.DB
	logger      *zap.Logger
}

func NewAgentUsecase(
	agentRepo repository.AgentRepository,
	balanceRepo repository.BalanceRepository,
	auditRepo repository.AuditRepository,
	events EventSink,
	db repository.DB,
	logger *zap.Logger,
) *AgentUsecase {
	return &AgentUsecase{
		agentRepo:   agentRepo,
		balanceRepo: balanceRepo,
		auditRepo:   auditRepo,
		events:      events,
		db:          db,
		logger:      logger,
	}
}

// ResolveActor turns a caller id into a typed actor value, resolved once
// per request. Capabilities are loaded for non-super admins only.
func (uc *AgentUsecase) ResolveActor(ctx context.Context, actorID int64) (*domain.Actor, error) {
	a, err := uc.agentRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	actor := &domain.Actor{
		ID:           a.ID,
		Role:         a.Role,
		IsActive:     a.IsActive,
		IsSuperAdmin: a.IsSuperAdmin,
	}

	// A non-super admin without a capability row keeps Capabilities nil
	// and is denied at the gate, never granted everything.
	if a.Role == domain.RoleAdmin && !a.IsSuperAdmin {
		caps, err := uc.agentRepo.GetCapabilities(ctx, a.ID)
		if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		actor.Capabilities = caps
	}

	return actor, nil
}

// CreateAgent creates the agent and explicitly provisions its zero
// balance row in the same transaction. Provisioning is a visible step of
// the creation workflow, not an implicit hook.
func (uc *AgentUsecase) CreateAgent(ctx context.Context, actorID int64, a *domain.Agent) error {
	if a.Username == "" {
		return fmt.Errorf("%w: username required", xerrors.ErrInvalidInput)
	}
	if a.Role == "" {
		a.Role = domain.RoleAgent
	}
	a.IsActive = true

	var auditEntry *domain.AuditEntry
	err := repository.WithinTx(ctx, uc.db, func(tx pgx.Tx) error {
		if err := uc.agentRepo.Create(ctx, tx, a); err != nil {
			return err
		}
		if err := uc.balanceRepo.EnsureExists(ctx, tx, a.ID); err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:      &actorID,
			Action:       domain.ActionAddAgent,
			TargetUserID: &a.ID,
			Message:      fmt.Sprintf("agent %s created", a.Username),
		}
		return uc.auditRepo.Append(ctx, tx, auditEntry)
	})
	if err != nil {
		return err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)
	return nil
}

func (uc *AgentUsecase) SuspendAgent(ctx context.Context, actorID, agentID int64) error {
	return uc.setActive(ctx, actorID, agentID, false, domain.ActionSuspendAgent)
}

func (uc *AgentUsecase) ActivateAgent(ctx context.Context, actorID, agentID int64) error {
	return uc.setActive(ctx, actorID, agentID, true, domain.ActionActivateAgent)
}

func (uc *AgentUsecase) setActive(ctx context.Context, actorID, agentID int64, active bool, action domain.AuditAction) error {
	var auditEntry *domain.AuditEntry
	err := repository.WithinTx(ctx, uc.db, func(tx pgx.Tx) error {
		if err := uc.agentRepo.SetActive(ctx, tx, agentID, active); err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:      &actorID,
			Action:       action,
			TargetUserID: &agentID,
			Message:      fmt.Sprintf("agent %d active=%t", agentID, active),
		}
		return uc.auditRepo.Append(ctx, tx, auditEntry)
	})
	if err != nil {
		return err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)
	return nil
}

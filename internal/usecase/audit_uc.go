package usecase

import (
	"context"

	"recharge-service/internal/domain"
	"recharge-service/internal/repository"
)

// AuditUsecase serves the admin audit review screen. Entries are written by
// the operation usecases inside their own transactions; this side only reads.
type AuditUsecase struct {
	auditRepo repository.AuditRepository
}

func NewAuditUsecase(auditRepo repository.AuditRepository) *AuditUsecase {
	return &AuditUsecase{auditRepo: auditRepo}
}

func (uc *AuditUsecase) List(ctx context.Context, filter *domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return uc.auditRepo.List(ctx, filter)
}

package usecase

import (
	"context"

	"recharge-service/internal/domain"
	"recharge-service/internal/repository"
)

// CatalogUsecase serves the company and denomination listings POS clients
// render their sale menus from.
type CatalogUsecase struct {
	catalogRepo repository.CatalogRepository
}

func NewCatalogUsecase(catalogRepo repository.CatalogRepository) *CatalogUsecase {
	return &CatalogUsecase{catalogRepo: catalogRepo}
}

func (uc *CatalogUsecase) ListCompanies(ctx context.Context) ([]*domain.TelecomCompany, error) {
	return uc.catalogRepo.ListActiveCompanies(ctx)
}

func (uc *CatalogUsecase) ListDenominations(ctx context.Context, companyID int64) ([]*domain.Denomination, error) {
	return uc.catalogRepo.ListActiveDenominations(ctx, companyID)
}

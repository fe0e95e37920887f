package repository

import (
	"context"
	"errors"
	"fmt"

	"recharge-service/internal/domain"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
)

type CatalogRepository interface {
	// GetActiveDenomination loads an active denomination joined with its
	// active company. Either side inactive or missing is a miss.
	GetActiveDenomination(ctx context.Context, id int64) (*domain.Denomination, *domain.TelecomCompany, error)

	// GetDenominationByID loads a denomination and its company without
	// the active filter. Used for rendering receipts of past sales whose
	// catalog rows may have been retired since.
	GetDenominationByID(ctx context.Context, id int64) (*domain.Denomination, *domain.TelecomCompany, error)

	GetCompanyByCode(ctx context.Context, code string) (*domain.TelecomCompany, error)
	ListActiveCompanies(ctx context.Context) ([]*domain.TelecomCompany, error)
	ListActiveDenominations(ctx context.Context, companyID int64) ([]*domain.Denomination, error)
}

type catalogRepo struct {
	db DB
}

func NewCatalogRepo(db DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) GetActiveDenomination(ctx context.Context, id int64) (*domain.Denomination, *domain.TelecomCompany, error) {
	query := `
		SELECT
			d.id, d.company_id, d.product_type, d.value,
			d.cost_to_company, d.price_to_agent, d.price_to_customer, d.is_active,
			c.id, c.code, c.name, c.company_type, c.display_order, c.is_active, c.created_at
		FROM denominations d
		INNER JOIN companies c ON c.id = d.company_id
		WHERE d.id = $1 AND d.is_active = true AND c.is_active = true
	`

	var d domain.Denomination
	var c domain.TelecomCompany
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.CompanyID, &d.ProductType, &d.Value,
		&d.CostToCompany, &d.PriceToAgent, &d.PriceToCustomer, &d.IsActive,
		&c.ID, &c.Code, &c.Name, &c.CompanyType, &c.DisplayOrder, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, xerrors.ErrDenominationNotFound
		}
		return nil, nil, fmt.Errorf("failed to get denomination: %w", err)
	}
	return &d, &c, nil
}

func (r *catalogRepo) GetDenominationByID(ctx context.Context, id int64) (*domain.Denomination, *domain.TelecomCompany, error) {
	query := `
		SELECT
			d.id, d.company_id, d.product_type, d.value,
			d.cost_to_company, d.price_to_agent, d.price_to_customer, d.is_active,
			c.id, c.code, c.name, c.company_type, c.display_order, c.is_active, c.created_at
		FROM denominations d
		INNER JOIN companies c ON c.id = d.company_id
		WHERE d.id = $1
	`

	var d domain.Denomination
	var c domain.TelecomCompany
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.CompanyID, &d.ProductType, &d.Value,
		&d.CostToCompany, &d.PriceToAgent, &d.PriceToCustomer, &d.IsActive,
		&c.ID, &c.Code, &c.Name, &c.CompanyType, &c.DisplayOrder, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, xerrors.ErrDenominationNotFound
		}
		return nil, nil, fmt.Errorf("failed to get denomination: %w", err)
	}
	return &d, &c, nil
}

func (r *catalogRepo) GetCompanyByCode(ctx context.Context, code string) (*domain.TelecomCompany, error) {
	query := `
		SELECT id, code, name, company_type, display_order, is_active, created_at
		FROM companies
		WHERE code = $1 AND is_active = true
	`

	var c domain.TelecomCompany
	err := r.db.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Name, &c.CompanyType, &c.DisplayOrder, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

func (r *catalogRepo) ListActiveCompanies(ctx context.Context) ([]*domain.TelecomCompany, error) {
	query := `
		SELECT id, code, name, company_type, display_order, is_active, created_at
		FROM companies
		WHERE is_active = true
		ORDER BY display_order, name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var out []*domain.TelecomCompany
	for rows.Next() {
		var c domain.TelecomCompany
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.CompanyType, &c.DisplayOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}
	return out, nil
}

func (r *catalogRepo) ListActiveDenominations(ctx context.Context, companyID int64) ([]*domain.Denomination, error) {
	query := `
		SELECT id, company_id, product_type, value,
		       cost_to_company, price_to_agent, price_to_customer, is_active
		FROM denominations
		WHERE company_id = $1 AND is_active = true
		ORDER BY value
	`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list denominations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Denomination
	for rows.Next() {
		var d domain.Denomination
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.ProductType, &d.Value,
			&d.CostToCompany, &d.PriceToAgent, &d.PriceToCustomer, &d.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan denomination: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating denominations: %w", err)
	}
	return out, nil
}

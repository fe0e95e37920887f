package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductMobile   ProductType = "MOBILE"
	ProductInternet ProductType = "INTERNET"
)

// TelecomCompany is a carrier whose recharge cards are sold (Asiacell,
// Zain, Korek...). Managed by admins, read-only for the sale path.
type TelecomCompany struct {
	ID           int64       `json:"id"`
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	CompanyType  ProductType `json:"company_type"`
	DisplayOrder int         `json:"display_order"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Denomination is a purchasable recharge value within a company, with the
// price snapshot base charged to the agent at sale time.
type Denomination struct {
	ID          int64       `json:"id"`
	CompanyID   int64       `json:"company_id"`
	ProductType ProductType `json:"product_type"`
	Value       int         `json:"value"` // 5, 10, 15, 25

	CostToCompany   decimal.Decimal `json:"cost_to_company"`
	PriceToAgent    decimal.Decimal `json:"price_to_agent"`
	PriceToCustomer decimal.Decimal `json:"price_to_customer"`

	IsActive bool `json:"is_active"`
}

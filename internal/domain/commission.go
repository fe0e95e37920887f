package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRule maps (company, denomination) to a commission amount.
// AgentID nil means a default rule; set means an agent-specific override.
// At most one active rule may exist per key combination.
type CommissionRule struct {
	ID           int64           `json:"id"`
	AgentID      *int64          `json:"agent_id,omitempty"`
	CompanyID    int64           `json:"company_id"`
	Denomination int             `json:"denomination"`
	Amount       decimal.Decimal `json:"amount"` // whole currency units, never negative

	IsActive      bool       `json:"is_active"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *CommissionRule) IsDefault() bool {
	return r.AgentID == nil
}

// CommissionRuleCreate is the admin-facing creation payload.
type CommissionRuleCreate struct {
	AgentID      *int64
	CompanyID    int64
	Denomination int
	Amount       decimal.Decimal
}

func (c *CommissionRuleCreate) Validate() error {
	if c.CompanyID <= 0 {
		return errInvalidRuleCompany
	}
	if c.Denomination <= 0 {
		return errInvalidRuleDenomination
	}
	if c.Amount.IsNegative() {
		return errInvalidRuleAmount
	}
	return nil
}

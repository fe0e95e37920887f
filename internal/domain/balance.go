package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentBalance holds an agent's spendable balance. The row is created
// lazily at zero and only mutated through locked debit/credit operations.
type AgentBalance struct {
	AgentID   int64           `json:"agent_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ParsePGErrorCode extracts the SQLSTATE code from a pgx error.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Agents
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentSuspended     = errors.New("agent suspended")
	ErrAgentAlreadyExists = errors.New("agent already exists")
)

// Catalog
var (
	ErrCompanyNotFound      = errors.New("company not found")
	ErrDenominationNotFound = errors.New("denomination not found")
)

// Balance ledger
var (
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrNegativeBalanceNotAllowed = errors.New("negative balance not allowed")
)

// Transactions / receipts
var (
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidTransactionState = errors.New("transaction not found or not in a valid state")
	ErrReissueLimitReached     = errors.New("receipt reissue limit reached")
	ErrReceiptNotFound         = errors.New("receipt not found")
	ErrReceiptExpired          = errors.New("receipt expired")
)

// Commission rules
var (
	ErrCommissionRuleExists   = errors.New("an active commission rule already exists for this key")
	ErrCommissionRuleNotFound = errors.New("commission rule not found")
)

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPrinted   TransactionStatus = "PRINTED"
	StatusConfirmed TransactionStatus = "CONFIRMED"
)

type TransactionSource string

const (
	SourceWeb TransactionSource = "WEB"
	SourcePOS TransactionSource = "POS"
)

const (
	DefaultReissueLimit   = 3
	ReceiptHMACAlgoSHA256 = "HMAC-SHA256"
)

// Transaction is one sale moving through PRINTED -> CONFIRMED. Rows are a
// financial record and are never physically deleted.
type Transaction struct {
	ID             int64 `json:"id"`
	AgentID        int64 `json:"agent_id"`
	CompanyID      int64 `json:"company_id"`
	DenominationID int64 `json:"denomination_id"`

	// Recharge card code. Sensitive; never exposed on public receipts.
	Code string `json:"-"`

	Status TransactionStatus `json:"status"`

	// Snapshot at sale time.
	Price            decimal.Decimal `json:"price"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`

	// Receipt access. PublicToken is immutable except on explicit reissue.
	PublicToken         string     `json:"public_token"`
	ReceiptExpiresAt    *time.Time `json:"receipt_expires_at,omitempty"`
	ReceiptReissueCount int        `json:"receipt_reissue_count"`
	ReceiptReissueLimit int        `json:"receipt_reissue_limit"`

	// Signed snapshot of exactly what the POS printed.
	ReceiptPayload        []byte     `json:"-"`
	ReceiptPayloadVersion int        `json:"receipt_payload_version"`
	ReceiptHMAC           string     `json:"-"`
	ReceiptHMACAlgo       string     `json:"receipt_hmac_algo"`
	ReceiptHMACCreatedAt  *time.Time `json:"receipt_hmac_created_at,omitempty"`

	Source      TransactionSource `json:"source"`
	DeviceID    *string           `json:"device_id,omitempty"`
	OfflineUUID *string           `json:"offline_uuid,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// SetReceiptExpiry sets the expiry window counted from confirmation time,
// falling back to now when the transaction is not yet confirmed.
func (t *Transaction) SetReceiptExpiry(ttl time.Duration) {
	base := time.Now()
	if t.ConfirmedAt != nil {
		base = *t.ConfirmedAt
	}
	expires := base.Add(ttl)
	t.ReceiptExpiresAt = &expires
}

// IsReceiptExpired reports whether the receipt window has passed. A missing
// expiry means the receipt never expires.
func (t *Transaction) IsReceiptExpired(now time.Time) bool {
	if t.ReceiptExpiresAt == nil {
		return false
	}
	return now.After(*t.ReceiptExpiresAt)
}

// SellResult is returned to the caller after a successful sale.
type SellResult struct {
	TransactionID int64           `json:"transaction_id"`
	Company       string          `json:"company"`
	Denomination  int             `json:"denomination"`
	Price         decimal.Decimal `json:"price"`
	Code          string          `json:"code"`
	Status        string          `json:"status"`
}

// ConfirmResult is returned after a successful confirmation.
type ConfirmResult struct {
	TransactionID    int64           `json:"transaction_id"`
	Status           string          `json:"status"`
	CommissionAmount decimal.Decimal `json:"commission"`
	ReceiptToken     string          `json:"receipt_token"`
	ReceiptURL       string          `json:"receipt_url"`
}

// ReissueResult is returned after a token-rotating reissue or a reprint.
type ReissueResult struct {
	TransactionID    int64  `json:"transaction_id"`
	ReceiptToken     string `json:"receipt_token"`
	ReceiptURL       string `json:"receipt_url"`
	ReissueCount     int    `json:"reissue_count"`
	ReissueRemaining int    `json:"reissue_remaining"`
}

// ReceiptView is the safe, public subset served for a receipt token. It
// never carries the raw recharge code.
type ReceiptView struct {
	TransactionID int64      `json:"transaction_id"`
	Company       string     `json:"company"`
	Denomination  int        `json:"denomination"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

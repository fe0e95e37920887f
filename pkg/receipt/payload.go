// Package receipt builds and signs the tamper-evident POS receipt snapshot
// stored on every transaction.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PayloadVersion = 1

	ProfileSunmi58 = "SUNMI_58"
	ProfileSunmi80 = "SUNMI_80"
)

// Meta binds the payload to its transaction for admin preview.
type Meta struct {
	TransactionID int64  `json:"transaction_id"`
	Status        string `json:"status"`
	PublicToken   string `json:"public_token"`
}

// Payload is the versioned snapshot of exactly what the POS printed.
// Content must be deterministic for the same transaction state.
type Payload struct {
	Version        int      `json:"version"`
	PrinterProfile string   `json:"printer_profile"`
	Width          int      `json:"width"`
	Lines          []string `json:"lines"`
	Meta           Meta     `json:"meta"`
}

// BuildParams carries everything the renderer needs, resolved by the caller
// so the package stays independent of storage.
type BuildParams struct {
	TransactionID int64
	Status        string
	PublicToken   string
	CreatedAt     time.Time

	CompanyName   string
	DenomValue    int
	Price         decimal.Decimal
	Code          string
	AgentUsername string

	PrinterProfile string
	IncludeCode    bool
}

// Build renders the receipt snapshot. The only time value that may appear
// is the transaction's own CreatedAt.
func Build(p BuildParams) Payload {
	profile := p.PrinterProfile
	if profile == "" {
		profile = ProfileSunmi58
	}
	width := 42 // 80mm
	if profile == ProfileSunmi58 {
		width = 32 // 58mm
	}
	sep := strings.Repeat("-", width)

	lines := []string{
		"RIADDA POS",
		sep,
		fmt.Sprintf("Company: %s", p.CompanyName),
		fmt.Sprintf("Value: %d", p.DenomValue),
		fmt.Sprintf("Price: %s", p.Price.StringFixed(2)),
	}
	if p.IncludeCode {
		lines = append(lines, fmt.Sprintf("Code: %s", p.Code))
	}
	lines = append(lines,
		sep,
		fmt.Sprintf("Agent: %s", p.AgentUsername),
		fmt.Sprintf("TxnID: %d", p.TransactionID),
		p.CreatedAt.Format("Date: 2006-01-02 15:04:05"),
		sep,
		"Thank you",
	)

	return Payload{
		Version:        PayloadVersion,
		PrinterProfile: profile,
		Width:          width,
		Lines:          lines,
		Meta: Meta{
			TransactionID: p.TransactionID,
			Status:        p.Status,
			PublicToken:   p.PublicToken,
		},
	}
}

package domain

import "time"

type AuditAction string

const (
	// Agent actions
	ActionSell           AuditAction = "SELL"
	ActionConfirm        AuditAction = "CONFIRM"
	ActionReissueReceipt AuditAction = "REISSUE_RECEIPT"
	ActionReprintReceipt AuditAction = "REPRINT_RECEIPT"

	// Admin actions
	ActionAddAgent           AuditAction = "ADD_AGENT"
	ActionSuspendAgent       AuditAction = "SUSPEND_AGENT"
	ActionActivateAgent      AuditAction = "ACTIVATE_AGENT"
	ActionAdjustBalance      AuditAction = "ADJUST_BALANCE"
	ActionUpdateDefaultRule  AuditAction = "UPDATE_DEFAULT_COMMISSION"
	ActionAddAgentCommission AuditAction = "ADD_AGENT_COMMISSION"
)

// AuditEntry is one append-only audit record. Entries are write-once and
// never mutated or deleted; the reissue counter audit trail depends on it.
type AuditEntry struct {
	ID            int64       `json:"id"`
	ActorID       *int64      `json:"actor_id,omitempty"`
	Action        AuditAction `json:"action"`
	TargetUserID  *int64      `json:"target_user_id,omitempty"`
	TransactionID *int64      `json:"transaction_id,omitempty"`
	Message       string      `json:"message"`
	CreatedAt     time.Time   `json:"created_at"`
}

// AuditFilter narrows audit listings for the admin review screen.
type AuditFilter struct {
	ActorID       *int64
	Action        *AuditAction
	TransactionID *int64
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

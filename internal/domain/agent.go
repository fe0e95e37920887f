package domain

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleAgent Role = "AGENT"
)

// Agent is a seller account with a spendable balance. The same table also
// holds admin users; Role separates the two.
type Agent struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	IsSuperAdmin bool       `json:"is_super_admin,omitempty"`
	POSDeviceID  *string    `json:"pos_device_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SuspendedAt  *time.Time `json:"suspended_at,omitempty"`
}

// Actor is the resolved identity of the caller, supplied by the upstream
// auth layer. Resolved once per request into a typed value.
type Actor struct {
	ID           int64
	Role         Role
	IsActive     bool
	IsSuperAdmin bool
	Capabilities *AdminCapabilities // nil for agents and super admins
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type CapabilityPreset string

const (
	PresetCustom     CapabilityPreset = "CUSTOM"
	PresetReadOnly   CapabilityPreset = "READ_ONLY"
	PresetManager    CapabilityPreset = "MANAGER"
	PresetAccountant CapabilityPreset = "ACCOUNTANT"
)

// AdminCapabilities is the explicit capability set for a non-super admin.
type AdminCapabilities struct {
	AdminID int64            `json:"admin_id"`
	Preset  CapabilityPreset `json:"preset"`

	CanViewAgents bool `json:"can_view_agents"`
	CanAddAgents  bool `json:"can_add_agents"`
	CanEditAgents bool `json:"can_edit_agents"`

	CanViewCommissions bool `json:"can_view_commissions"`
	CanEditCommissions bool `json:"can_edit_commissions"`

	CanViewReports   bool `json:"can_view_reports"`
	CanViewProfit    bool `json:"can_view_profit"`
	CanViewAuditLogs bool `json:"can_view_audit_logs"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyPreset overwrites the flags with a named preset. Unknown codes fall
// back to CUSTOM and leave the flags untouched.
func (c *AdminCapabilities) ApplyPreset(preset CapabilityPreset) {
	switch preset {
	case PresetReadOnly:
		c.Preset = PresetReadOnly
		c.CanViewAgents = true
		c.CanAddAgents = false
		c.CanEditAgents = false
		c.CanViewCommissions = true
		c.CanEditCommissions = false
		c.CanViewReports = true
		c.CanViewProfit = true
		c.CanViewAuditLogs = true
	case PresetManager:
		c.Preset = PresetManager
		c.CanViewAgents = true
		c.CanAddAgents = true
		c.CanEditAgents = true
		c.CanViewCommissions = true
		c.CanEditCommissions = true
		c.CanViewReports = true
		c.CanViewProfit = true
		c.CanViewAuditLogs = true
	case PresetAccountant:
		c.Preset = PresetAccountant
		c.CanViewAgents = true
		c.CanAddAgents = false
		c.CanEditAgents = false
		c.CanViewCommissions = true
		c.CanEditCommissions = false
		c.CanViewReports = true
		c.CanViewProfit = true
		c.CanViewAuditLogs = true
	default:
		c.Preset = PresetCustom
	}
}

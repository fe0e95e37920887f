package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/internal/usecase"
	"recharge-service/pkg/response"
	"recharge-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

// AdminHandler serves the back-office endpoints: agent management, balance
// adjustments, commission rules, receipt verification and the audit log.
type AdminHandler struct {
	agents      *usecase.AgentUsecase
	balances    *usecase.BalanceUsecase
	commissions *usecase.CommissionUsecase
	sales       *usecase.SaleUsecase
	audits      *usecase.AuditUsecase
}

func NewAdminHandler(
	agents *usecase.AgentUsecase,
	balances *usecase.BalanceUsecase,
	commissions *usecase.CommissionUsecase,
	sales *usecase.SaleUsecase,
	audits *usecase.AuditUsecase,
) *AdminHandler {
	return &AdminHandler{
		agents:      agents,
		balances:    balances,
		commissions: commissions,
		sales:       sales,
		audits:      audits,
	}
}

type createAgentRequest struct {
	Username    string  `json:"username"`
	FullName    string  `json:"full_name,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Role        string  `json:"role,omitempty"`
	POSDeviceID *string `json:"pos_device_id,omitempty"`
}

func (h *AdminHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}

	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	agent := &domain.Agent{
		Username:    req.Username,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Role:        domain.Role(req.Role),
		POSDeviceID: req.POSDeviceID,
	}
	if err := h.agents.CreateAgent(r.Context(), actor.ID, agent); err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, agent)
}

func (h *AdminHandler) SuspendAgent(w http.ResponseWriter, r *http.Request) {
	h.setAgentActive(w, r, false)
}

func (h *AdminHandler) ActivateAgent(w http.ResponseWriter, r *http.Request) {
	h.setAgentActive(w, r, true)
}

func (h *AdminHandler) setAgentActive(w http.ResponseWriter, r *http.Request, active bool) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}
	agentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	if active {
		err = h.agents.ActivateAgent(r.Context(), actor.ID, agentID)
	} else {
		err = h.agents.SuspendAgent(r.Context(), actor.ID, agentID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"agent_id": agentID, "is_active": active})
}

type adjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}
	agentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	newBalance, err := h.balances.AdjustBalance(r.Context(), actor.ID, agentID, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"agent_id":    agentID,
		"new_balance": newBalance,
	})
}

func (h *AdminHandler) GetAgentBalance(w http.ResponseWriter, r *http.Request) {
	agentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	b, err := h.balances.GetBalance(r.Context(), agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, b)
}

type commissionRuleRequest struct {
	AgentID      *int64          `json:"agent_id,omitempty"`
	CompanyID    int64           `json:"company_id"`
	Denomination int             `json:"denomination"`
	Amount       decimal.Decimal `json:"amount"`
}

func (h *AdminHandler) UpsertCommissionRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}

	var req commissionRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	rule, err := h.commissions.UpsertRule(r.Context(), actor.ID, &domain.CommissionRuleCreate{
		AgentID:      req.AgentID,
		CompanyID:    req.CompanyID,
		Denomination: req.Denomination,
		Amount:       req.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, rule)
}

func (h *AdminHandler) ListCommissionRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.commissions.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rules)
}

func (h *AdminHandler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	report, err := h.sales.VerifyReceipt(r.Context(), txID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &domain.AuditFilter{}

	if v := q.Get("actor_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ActorID = &id
		}
	}
	if v := q.Get("action"); v != "" {
		action := domain.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("transaction_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.TransactionID = &id
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	entries, err := h.audits.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, entries)
}

package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"recharge-service/internal/domain"
	"recharge-service/internal/usecase"
	"recharge-service/pkg/response"
	"recharge-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
)

// SaleHandler serves the agent-facing sale lifecycle endpoints.
type SaleHandler struct {
	sales    *usecase.SaleUsecase
	balances *usecase.BalanceUsecase
}

func NewSaleHandler(sales *usecase.SaleUsecase, balances *usecase.BalanceUsecase) *SaleHandler {
	return &SaleHandler{sales: sales, balances: balances}
}

type sellRequest struct {
	DenominationID int64   `json:"denomination_id"`
	Source         string  `json:"source"`
	DeviceID       *string `json:"device_id,omitempty"`
	OfflineUUID    *string `json:"offline_uuid,omitempty"`
}

func (h *SaleHandler) Sell(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}
	if req.DenominationID <= 0 {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	source := domain.TransactionSource(req.Source)
	if source != domain.SourcePOS {
		source = domain.SourceWeb
	}

	result, err := h.sales.Sell(r.Context(), actor.ID, req.DenominationID, source, req.DeviceID, req.OfflineUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, result)
}

func (h *SaleHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}
	txID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	result, err := h.sales.Confirm(r.Context(), txID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *SaleHandler) Reissue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}
	txID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	result, err := h.sales.Reissue(r.Context(), txID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *SaleHandler) Reprint(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}
	txID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	result, err := h.sales.Reprint(r.Context(), txID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.sales.ListAgentTransactions(r.Context(), actor.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, txs)
}

func (h *SaleHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, xerrors.ErrUnauthorized)
		return
	}

	b, err := h.balances.GetBalance(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, b)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

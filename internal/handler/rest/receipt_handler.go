package rest

import (
	"net/http"

	"recharge-service/internal/usecase"
	"recharge-service/pkg/response"
	"recharge-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
)

// ReceiptHandler serves the public receipt lookup. No authentication: the
// unguessable token is the credential.
type ReceiptHandler struct {
	sales *usecase.SaleUsecase
}

func NewReceiptHandler(sales *usecase.SaleUsecase) *ReceiptHandler {
	return &ReceiptHandler{sales: sales}
}

func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, xerrors.ErrReceiptNotFound)
		return
	}

	view, err := h.sales.GetReceipt(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

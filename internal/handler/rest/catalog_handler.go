package rest

import (
	"net/http"

	"recharge-service/internal/usecase"
	"recharge-service/pkg/response"
	"recharge-service/pkg/xerrors"
)

type CatalogHandler struct {
	catalog *usecase.CatalogUsecase
}

func NewCatalogHandler(catalog *usecase.CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.catalog.ListCompanies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, companies)
}

func (h *CatalogHandler) ListDenominations(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, xerrors.ErrInvalidInput)
		return
	}

	denoms, err := h.catalog.ListDenominations(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, denoms)
}

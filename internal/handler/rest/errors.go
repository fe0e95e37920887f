package rest

import (
	"errors"
	"net/http"

	"recharge-service/pkg/response"
	"recharge-service/pkg/xerrors"
)

type errMapping struct {
	status int
	code   string
}

// One place maps domain errors to HTTP status and a stable business code.
// Anything unmapped is a 500 with no internals leaked.
var errMap = map[error]errMapping{
	xerrors.ErrInvalidInput:              {http.StatusBadRequest, "INVALID_INPUT"},
	xerrors.ErrInvalidAmount:             {http.StatusBadRequest, "INVALID_AMOUNT"},
	xerrors.ErrUnauthorized:              {http.StatusUnauthorized, "UNAUTHORIZED"},
	xerrors.ErrForbidden:                 {http.StatusForbidden, "FORBIDDEN"},
	xerrors.ErrNotFound:                  {http.StatusNotFound, "NOT_FOUND"},
	xerrors.ErrAgentNotFound:             {http.StatusNotFound, "AGENT_NOT_FOUND"},
	xerrors.ErrAgentSuspended:            {http.StatusForbidden, "AGENT_SUSPENDED"},
	xerrors.ErrAgentAlreadyExists:        {http.StatusConflict, "AGENT_EXISTS"},
	xerrors.ErrCompanyNotFound:           {http.StatusNotFound, "COMPANY_NOT_FOUND"},
	xerrors.ErrDenominationNotFound:      {http.StatusNotFound, "DENOMINATION_NOT_FOUND"},
	xerrors.ErrInsufficientBalance:       {http.StatusConflict, "INSUFFICIENT_BALANCE"},
	xerrors.ErrNegativeBalanceNotAllowed: {http.StatusConflict, "NEGATIVE_BALANCE_NOT_ALLOWED"},
	xerrors.ErrInvalidTransactionState:   {http.StatusConflict, "INVALID_TRANSACTION_STATE"},
	xerrors.ErrReissueLimitReached:       {http.StatusConflict, "REISSUE_LIMIT_REACHED"},
	xerrors.ErrReceiptNotFound:           {http.StatusNotFound, "RECEIPT_NOT_FOUND"},
	xerrors.ErrReceiptExpired:            {http.StatusGone, "RECEIPT_EXPIRED"},
	xerrors.ErrCommissionRuleExists:      {http.StatusConflict, "COMMISSION_RULE_EXISTS"},
	xerrors.ErrCommissionRuleNotFound:    {http.StatusNotFound, "COMMISSION_RULE_NOT_FOUND"},
}

func writeError(w http.ResponseWriter, err error) {
	for sentinel, m := range errMap {
		if errors.Is(err, sentinel) {
			response.ErrorCode(w, m.status, m.code, sentinel.Error())
			return
		}
	}
	response.ErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"recharge-service/pkg/response"
	"recharge-service/pkg/xerrors"
)

func TestWriteErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{xerrors.ErrInsufficientBalance, http.StatusConflict, "INSUFFICIENT_BALANCE"},
		{xerrors.ErrInvalidTransactionState, http.StatusConflict, "INVALID_TRANSACTION_STATE"},
		{xerrors.ErrReissueLimitReached, http.StatusConflict, "REISSUE_LIMIT_REACHED"},
		{xerrors.ErrReceiptNotFound, http.StatusNotFound, "RECEIPT_NOT_FOUND"},
		{xerrors.ErrReceiptExpired, http.StatusGone, "RECEIPT_EXPIRED"},
		{xerrors.ErrAgentSuspended, http.StatusForbidden, "AGENT_SUSPENDED"},
		{xerrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)

		if rec.Code != tc.wantStatus {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.wantStatus)
		}
		var body response.APIResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Status != "error" || body.Code != tc.wantCode {
			t.Fatalf("%v: body = %+v, want code %s", tc.err, body, tc.wantCode)
		}
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("pq: connection refused to 10.0.0.5"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body response.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %q", body.Message)
	}
}

func TestWriteErrorUnwrapsWrappedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("confirm tx 7: %w", xerrors.ErrInvalidTransactionState))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

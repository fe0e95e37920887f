package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/internal/pub"
	"recharge-service/internal/repository"
	"recharge-service/pkg/receipt"
	"recharge-service/pkg/token"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recharge card codes come from a vendor feed that is not wired yet; the
// placeholder mirrors what the POS prints today.
// TODO: replace with the card inventory lookup once the vendor feed lands.
const pendingCode = "PENDING"

var (
	saleOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_operations_total",
			Help: "Total sale core operations by outcome",
		},
		[]string{"operation", "status"},
	)

	saleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sale_operation_duration_seconds",
			Help:    "Duration of sale core operations",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
		[]string{"operation"},
	)
)

// ReceiptCache is the subset of the redis cache the sale path needs.
// Nil-able so tests and degraded deployments can run without redis.
type ReceiptCache interface {
	GetReceipt(ctx context.Context, tok string) ([]byte, error)
	SetReceipt(ctx context.Context, tok string, data []byte, ttl time.Duration) error
	DeleteReceipt(ctx context.Context, tok string) error
}

// EventSink receives best-effort post-commit events.
type EventSink interface {
	PublishTransactionEvent(ctx context.Context, event *pub.TransactionEvent) error
	PublishAudit(ctx context.Context, e *domain.AuditEntry) error
}

// publishAudit streams a committed audit entry to the sink. The DB row is
// already durable; a sink failure is logged, never surfaced.
func publishAudit(ctx context.Context, events EventSink, logger *zap.Logger, e *domain.AuditEntry) {
	if events == nil || e == nil {
		return
	}
	if err := events.PublishAudit(ctx, e); err != nil && logger != nil {
		logger.Warn("failed to publish audit entry", zap.Error(err))
	}
}

// SalePolicy is the configuration snapshot injected at startup.
type SalePolicy struct {
	ReceiptTTL     time.Duration
	ReissueLimit   int
	ReceiptBaseURL string
	PrinterProfile string
}

// SaleUsecase orchestrates the PRINTED -> CONFIRMED lifecycle: it debits
// the ledger, resolves commissions, signs receipt snapshots and records
// the audit trail, each operation as a single atomic unit.
type SaleUsecase struct {
	txRepo      repository.TransactionRepository
	balanceRepo repository.BalanceRepository
	catalogRepo repository.CatalogRepository
	agentRepo   repository.AgentRepository
	auditRepo   repository.AuditRepository
	commissions *CommissionUsecase

	signer *receipt.Signer
	tokens *token.Generator
	cache  ReceiptCache
	events EventSink

	policy SalePolicy
	db     repository.DB
	logger *zap.Logger
}

func NewSaleUsecase(
	txRepo repository.TransactionRepository,
	balanceRepo repository.BalanceRepository,
	catalogRepo repository.CatalogRepository,
	agentRepo repository.AgentRepository,
	auditRepo repository.AuditRepository,
	commissions *CommissionUsecase,
	signer *receipt.Signer,
	tokens *token.Generator,
	cache ReceiptCache,
	events EventSink,
	policy SalePolicy,
	db repository.DB,
	logger *zap.Logger,
) *SaleUsecase {
	if policy.ReissueLimit <= 0 {
		policy.ReissueLimit = domain.DefaultReissueLimit
	}
	if policy.ReceiptTTL <= 0 {
		policy.ReceiptTTL = 24 * time.Hour
	}
	return &SaleUsecase{
		txRepo:      txRepo,
		balanceRepo: balanceRepo,
		catalogRepo: catalogRepo,
		agentRepo:   agentRepo,
		auditRepo:   auditRepo,
		commissions: commissions,
		signer:      signer,
		tokens:      tokens,
		cache:       cache,
		events:      events,
		policy:      policy,
		db:          db,
		logger:      logger,
	}
}

func (uc *SaleUsecase) receiptURL(tok string) string {
	return uc.policy.ReceiptBaseURL + "/" + tok
}

func (uc *SaleUsecase) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	saleOps.WithLabelValues(op, status).Inc()
	saleDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Sell creates a PRINTED transaction: debit, row creation, signed receipt
// snapshot and SELL audit entry all commit together or not at all.
func (uc *SaleUsecase) Sell(ctx context.Context, agentID, denominationID int64, source domain.TransactionSource, deviceID, offlineUUID *string) (result *domain.SellResult, err error) {
	start := time.Now()
	defer func() { uc.observe("sell", start, err) }()

	agent, err := uc.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.Role != domain.RoleAgent {
		return nil, xerrors.ErrForbidden
	}
	if !agent.IsActive {
		return nil, xerrors.ErrAgentSuspended
	}

	denom, company, err := uc.catalogRepo.GetActiveDenomination(ctx, denominationID)
	if err != nil {
		return nil, err
	}

	// POS clients replay queued offline sales; the same offline uuid must
	// not debit twice.
	if offlineUUID != nil && *offlineUUID != "" {
		if existing, err := uc.txRepo.GetByOfflineUUID(ctx, *offlineUUID); err == nil {
			return &domain.SellResult{
				TransactionID: existing.ID,
				Company:       company.Name,
				Denomination:  denom.Value,
				Price:         existing.Price,
				Code:          existing.Code,
				Status:        string(existing.Status),
			}, nil
		} else if !errors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
	}

	pubToken, err := uc.tokens.GenerateUnique(func(candidate string) bool {
		exists, err := uc.txRepo.PublicTokenExists(ctx, candidate)
		return err == nil && exists
	})
	if err != nil {
		return nil, err
	}

	price := denom.PriceToAgent
	t := &domain.Transaction{
		AgentID:             agentID,
		CompanyID:           company.ID,
		DenominationID:      denom.ID,
		Code:                pendingCode,
		Status:              domain.StatusPrinted,
		Price:               price,
		CommissionAmount:    decimal.Zero,
		PublicToken:         pubToken,
		ReceiptReissueLimit: uc.policy.ReissueLimit,
		ReceiptHMACAlgo:     domain.ReceiptHMACAlgoSHA256,
		Source:              source,
		DeviceID:            deviceID,
		OfflineUUID:         offlineUUID,
		CreatedAt:           time.Now(),
	}

	var (
		balanceAfter decimal.Decimal
		auditEntry   *domain.AuditEntry
	)
	err = repository.WithinTx(ctx, uc.db, func(dbtx pgx.Tx) error {
		var err error
		balanceAfter, err = uc.balanceRepo.Debit(ctx, dbtx, agentID, price)
		if err != nil {
			return err
		}

		if err := uc.txRepo.Create(ctx, dbtx, t); err != nil {
			return err
		}

		// The printed receipt always carries a verifiable snapshot, even
		// before confirmation.
		if err := uc.signSnapshot(t, company.Name, denom.Value, agent.Username); err != nil {
			return err
		}
		if err := uc.txRepo.UpdateReceiptSnapshot(ctx, dbtx, t); err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:       &agentID,
			Action:        domain.ActionSell,
			TransactionID: &t.ID,
			Message:       fmt.Sprintf("sold %s %d for %s", company.Name, denom.Value, price.StringFixed(2)),
		}
		return uc.auditRepo.Append(ctx, dbtx, auditEntry)
	})
	if err != nil {
		return nil, err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)
	uc.publish(ctx, &pub.TransactionEvent{
		EventType:     "sale.printed",
		AgentID:       agentID,
		TransactionID: t.ID,
		Status:        string(t.Status),
		Price:         price,
		BalanceAfter:  balanceAfter,
		Source:        string(source),
	})

	return &domain.SellResult{
		TransactionID: t.ID,
		Company:       company.Name,
		Denomination:  denom.Value,
		Price:         price,
		Code:          t.Code,
		Status:        string(t.Status),
	}, nil
}

// Confirm moves a PRINTED transaction to CONFIRMED, fixing the commission
// from current rule state and opening the receipt window. Any miss on
// (id, agent, PRINTED) is the unified invalid-state outcome.
func (uc *SaleUsecase) Confirm(ctx context.Context, txID, agentID int64) (result *domain.ConfirmResult, err error) {
	start := time.Now()
	defer func() { uc.observe("confirm", start, err) }()

	var (
		t          *domain.Transaction
		auditEntry *domain.AuditEntry
	)
	err = repository.WithinTx(ctx, uc.db, func(dbtx pgx.Tx) error {
		var err error
		t, err = uc.txRepo.GetForUpdate(ctx, dbtx, txID, agentID, domain.StatusPrinted)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return xerrors.ErrInvalidTransactionState
			}
			return err
		}

		denom, _, err := uc.catalogRepo.GetDenominationByID(ctx, t.DenominationID)
		if err != nil {
			return err
		}

		commission, err := uc.commissions.Resolve(ctx, agentID, t.CompanyID, denom.Value)
		if err != nil {
			return err
		}

		now := time.Now()
		t.Status = domain.StatusConfirmed
		t.ConfirmedAt = &now
		t.CommissionAmount = commission
		t.SetReceiptExpiry(uc.policy.ReceiptTTL)

		if err := uc.txRepo.UpdateConfirm(ctx, dbtx, t); err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:       &agentID,
			Action:        domain.ActionConfirm,
			TransactionID: &t.ID,
			Message:       fmt.Sprintf("transaction %d confirmed, commission %s", t.ID, commission.String()),
		}
		return uc.auditRepo.Append(ctx, dbtx, auditEntry)
	})
	if err != nil {
		return nil, err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)
	uc.publish(ctx, &pub.TransactionEvent{
		EventType:     "sale.confirmed",
		AgentID:       agentID,
		TransactionID: t.ID,
		Status:        string(t.Status),
		Price:         t.Price,
		Commission:    t.CommissionAmount,
	})

	return &domain.ConfirmResult{
		TransactionID:    t.ID,
		Status:           string(t.Status),
		CommissionAmount: t.CommissionAmount,
		ReceiptToken:     t.PublicToken,
		ReceiptURL:       uc.receiptURL(t.PublicToken),
	}, nil
}

// Reissue rotates the public token of a CONFIRMED transaction, bounded by
// the reissue limit. The snapshot is rebuilt and re-signed under the new
// token, and the old token's cached rendering is dropped so the old URL
// stops resolving.
func (uc *SaleUsecase) Reissue(ctx context.Context, txID, agentID int64) (result *domain.ReissueResult, err error) {
	start := time.Now()
	defer func() { uc.observe("reissue", start, err) }()

	var (
		t          *domain.Transaction
		oldToken   string
		auditEntry *domain.AuditEntry
	)
	err = repository.WithinTx(ctx, uc.db, func(dbtx pgx.Tx) error {
		var err error
		t, err = uc.txRepo.GetForUpdate(ctx, dbtx, txID, agentID, domain.StatusConfirmed)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return xerrors.ErrInvalidTransactionState
			}
			return err
		}

		if t.ReceiptReissueCount >= t.ReceiptReissueLimit {
			return xerrors.ErrReissueLimitReached
		}

		denom, company, err := uc.catalogRepo.GetDenominationByID(ctx, t.DenominationID)
		if err != nil {
			return err
		}
		agent, err := uc.agentRepo.GetByID(ctx, agentID)
		if err != nil {
			return err
		}

		oldToken = t.PublicToken
		newToken, err := uc.tokens.GenerateUnique(func(candidate string) bool {
			exists, err := uc.txRepo.PublicTokenExists(ctx, candidate)
			return err == nil && exists
		})
		if err != nil {
			return err
		}

		t.PublicToken = newToken
		t.ReceiptReissueCount++
		expires := time.Now().Add(uc.policy.ReceiptTTL)
		t.ReceiptExpiresAt = &expires

		if err := uc.signSnapshot(t, company.Name, denom.Value, agent.Username); err != nil {
			return err
		}
		if err := uc.txRepo.UpdateReissue(ctx, dbtx, t); err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:       &agentID,
			Action:        domain.ActionReissueReceipt,
			TransactionID: &t.ID,
			Message: fmt.Sprintf("receipt reissued (%d/%d), token %s -> %s",
				t.ReceiptReissueCount, t.ReceiptReissueLimit, oldToken, newToken),
		}
		return uc.auditRepo.Append(ctx, dbtx, auditEntry)
	})
	if err != nil {
		return nil, err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)

	if uc.cache != nil {
		if err := uc.cache.DeleteReceipt(ctx, oldToken); err != nil {
			uc.logger.Warn("failed to evict old receipt token", zap.Error(err))
		}
	}

	uc.publish(ctx, &pub.TransactionEvent{
		EventType:     "receipt.reissued",
		AgentID:       agentID,
		TransactionID: t.ID,
		Status:        string(t.Status),
		Price:         t.Price,
	})

	return &domain.ReissueResult{
		TransactionID:    t.ID,
		ReceiptToken:     t.PublicToken,
		ReceiptURL:       uc.receiptURL(t.PublicToken),
		ReissueCount:     t.ReceiptReissueCount,
		ReissueRemaining: t.ReceiptReissueLimit - t.ReceiptReissueCount,
	}, nil
}

// Reprint bumps the reissue counter without rotating the token. Kept as a
// distinct operation from Reissue: POS paper reprints reuse the original
// receipt URL, customer-facing reissues rotate it.
func (uc *SaleUsecase) Reprint(ctx context.Context, txID, agentID int64) (result *domain.ReissueResult, err error) {
	start := time.Now()
	defer func() { uc.observe("reprint", start, err) }()

	var (
		t          *domain.Transaction
		auditEntry *domain.AuditEntry
	)
	err = repository.WithinTx(ctx, uc.db, func(dbtx pgx.Tx) error {
		var err error
		t, err = uc.txRepo.GetForUpdate(ctx, dbtx, txID, agentID, domain.StatusConfirmed)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return xerrors.ErrInvalidTransactionState
			}
			return err
		}

		if t.ReceiptReissueCount >= t.ReceiptReissueLimit {
			return xerrors.ErrReissueLimitReached
		}

		t.ReceiptReissueCount++
		if err := uc.txRepo.UpdateReprint(ctx, dbtx, t); err != nil {
			return err
		}

		auditEntry = &domain.AuditEntry{
			ActorID:       &agentID,
			Action:        domain.ActionReprintReceipt,
			TransactionID: &t.ID,
			Message: fmt.Sprintf("receipt reprinted (%d/%d)",
				t.ReceiptReissueCount, t.ReceiptReissueLimit),
		}
		return uc.auditRepo.Append(ctx, dbtx, auditEntry)
	})
	if err != nil {
		return nil, err
	}

	publishAudit(ctx, uc.events, uc.logger, auditEntry)

	return &domain.ReissueResult{
		TransactionID:    t.ID,
		ReceiptToken:     t.PublicToken,
		ReceiptURL:       uc.receiptURL(t.PublicToken),
		ReissueCount:     t.ReceiptReissueCount,
		ReissueRemaining: t.ReceiptReissueLimit - t.ReceiptReissueCount,
	}, nil
}

// GetReceipt serves the public, token-based receipt lookup. The raw code
// never leaves this boundary.
func (uc *SaleUsecase) GetReceipt(ctx context.Context, publicToken string) (view *domain.ReceiptView, err error) {
	start := time.Now()
	defer func() { uc.observe("get_receipt", start, err) }()

	if uc.cache != nil {
		if data, err := uc.cache.GetReceipt(ctx, publicToken); err == nil && data != nil {
			var cached domain.ReceiptView
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	t, err := uc.txRepo.GetByPublicToken(ctx, publicToken, domain.StatusConfirmed)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrReceiptNotFound
		}
		return nil, err
	}

	if t.IsReceiptExpired(time.Now()) {
		return nil, xerrors.ErrReceiptExpired
	}

	denom, company, err := uc.catalogRepo.GetDenominationByID(ctx, t.DenominationID)
	if err != nil {
		return nil, err
	}

	view = &domain.ReceiptView{
		TransactionID: t.ID,
		Company:       company.Name,
		Denomination:  denom.Value,
		ConfirmedAt:   t.ConfirmedAt,
	}

	if uc.cache != nil && t.ReceiptExpiresAt != nil {
		if data, err := json.Marshal(view); err == nil {
			ttl := time.Until(*t.ReceiptExpiresAt)
			if err := uc.cache.SetReceipt(ctx, publicToken, data, ttl); err != nil {
				uc.logger.Warn("failed to cache receipt", zap.Error(err))
			}
		}
	}

	return view, nil
}

// ReceiptVerification is the admin-facing integrity report.
type ReceiptVerification struct {
	TransactionID  int64           `json:"transaction_id"`
	PayloadVersion int             `json:"payload_version"`
	Algo           string          `json:"algo"`
	SignatureValid bool            `json:"signature_valid"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// VerifyReceipt recomputes the stored snapshot's signature. A mismatch is
// reported, never repaired.
func (uc *SaleUsecase) VerifyReceipt(ctx context.Context, txID int64) (*ReceiptVerification, error) {
	t, err := uc.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}

	valid := uc.signer.Verify(receipt.Binding{
		TransactionID: t.ID,
		PublicToken:   t.PublicToken,
		CreatedAt:     t.CreatedAt,
	}, t.ReceiptPayload, t.ReceiptHMAC)

	return &ReceiptVerification{
		TransactionID:  t.ID,
		PayloadVersion: t.ReceiptPayloadVersion,
		Algo:           t.ReceiptHMACAlgo,
		SignatureValid: valid,
		Payload:        json.RawMessage(t.ReceiptPayload),
	}, nil
}

func (uc *SaleUsecase) ListAgentTransactions(ctx context.Context, agentID int64, limit, offset int) ([]*domain.Transaction, error) {
	return uc.txRepo.ListByAgent(ctx, agentID, limit, offset)
}

// signSnapshot rebuilds and signs the receipt payload in place.
func (uc *SaleUsecase) signSnapshot(t *domain.Transaction, companyName string, denomValue int, agentUsername string) error {
	payload := receipt.Build(receipt.BuildParams{
		TransactionID:  t.ID,
		Status:         string(t.Status),
		PublicToken:    t.PublicToken,
		CreatedAt:      t.CreatedAt,
		CompanyName:    companyName,
		DenomValue:     denomValue,
		Price:          t.Price,
		Code:           t.Code,
		AgentUsername:  agentUsername,
		PrinterProfile: uc.policy.PrinterProfile,
		IncludeCode:    true,
	})

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal receipt payload: %w", err)
	}

	sig, err := uc.signer.SignRaw(receipt.Binding{
		TransactionID: t.ID,
		PublicToken:   t.PublicToken,
		CreatedAt:     t.CreatedAt,
	}, raw)
	if err != nil {
		return fmt.Errorf("sign receipt payload: %w", err)
	}

	now := time.Now()
	t.ReceiptPayload = raw
	t.ReceiptPayloadVersion = receipt.PayloadVersion
	t.ReceiptHMAC = sig
	t.ReceiptHMACAlgo = domain.ReceiptHMACAlgoSHA256
	t.ReceiptHMACCreatedAt = &now
	return nil
}

func (uc *SaleUsecase) publish(ctx context.Context, event *pub.TransactionEvent) {
	if uc.events == nil {
		return
	}
	// Sortable ids let consumers order and dedupe the stream.
	event.EventID = uc.tokens.GenerateSortable()
	if err := uc.events.PublishTransactionEvent(ctx, event); err != nil {
		uc.logger.Warn("failed to publish transaction event", zap.Error(err))
	}
}

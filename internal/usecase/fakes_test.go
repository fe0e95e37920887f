package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/internal/pub"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// In-memory doubles for the repository layer. They ignore the pgx
// transaction handle; atomicity is the repositories' concern, the usecase
// tests only care about ordering and guard semantics.

type fakeTx struct{}

func (fakeTx) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("nested tx") }
func (fakeTx) Commit(context.Context) error          { return nil }
func (fakeTx) Rollback(context.Context) error        { return nil }
func (fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (fakeTx) Conn() *pgx.Conn                                         { return nil }

type fakeDB struct{}

func (fakeDB) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }
func (fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (fakeDB) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }

type fakeBalanceRepo struct {
	balances map[int64]decimal.Decimal
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: map[int64]decimal.Decimal{}}
}

func (r *fakeBalanceRepo) GetByAgentID(_ context.Context, agentID int64) (*domain.AgentBalance, error) {
	b, ok := r.balances[agentID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &domain.AgentBalance{AgentID: agentID, Balance: b, UpdatedAt: time.Now()}, nil
}

func (r *fakeBalanceRepo) GetByAgentIDWithLock(ctx context.Context, _ pgx.Tx, agentID int64) (*domain.AgentBalance, error) {
	return r.GetByAgentID(ctx, agentID)
}

func (r *fakeBalanceRepo) EnsureExists(_ context.Context, _ pgx.Tx, agentID int64) error {
	if _, ok := r.balances[agentID]; !ok {
		r.balances[agentID] = decimal.Zero
	}
	return nil
}

func (r *fakeBalanceRepo) Debit(_ context.Context, _ pgx.Tx, agentID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	return r.apply(agentID, amount.Neg())
}

func (r *fakeBalanceRepo) Credit(_ context.Context, _ pgx.Tx, agentID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	return r.apply(agentID, amount)
}

func (r *fakeBalanceRepo) Adjust(_ context.Context, _ pgx.Tx, agentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	b, err := r.apply(agentID, delta)
	if errors.Is(err, xerrors.ErrInsufficientBalance) {
		return decimal.Zero, xerrors.ErrNegativeBalanceNotAllowed
	}
	return b, err
}

func (r *fakeBalanceRepo) apply(agentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	b := r.balances[agentID]
	next := b.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, xerrors.ErrInsufficientBalance
	}
	r.balances[agentID] = next
	return next, nil
}

type fakeTransactionRepo struct {
	nextID int64
	txs    map[int64]*domain.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{nextID: 1, txs: map[int64]*domain.Transaction{}}
}

func cloneTx(t *domain.Transaction) *domain.Transaction {
	c := *t
	return &c
}

func (r *fakeTransactionRepo) Create(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	t.ID = r.nextID
	r.nextID++
	r.txs[t.ID] = cloneTx(t)
	return nil
}

func (r *fakeTransactionRepo) GetForUpdate(_ context.Context, _ pgx.Tx, id, agentID int64, status domain.TransactionStatus) (*domain.Transaction, error) {
	t, ok := r.txs[id]
	if !ok || t.AgentID != agentID || t.Status != status {
		return nil, xerrors.ErrNotFound
	}
	return cloneTx(t), nil
}

func (r *fakeTransactionRepo) GetByID(_ context.Context, id int64) (*domain.Transaction, error) {
	t, ok := r.txs[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cloneTx(t), nil
}

func (r *fakeTransactionRepo) GetByPublicToken(_ context.Context, token string, status domain.TransactionStatus) (*domain.Transaction, error) {
	for _, t := range r.txs {
		if t.PublicToken == token && t.Status == status {
			return cloneTx(t), nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeTransactionRepo) GetByOfflineUUID(_ context.Context, offlineUUID string) (*domain.Transaction, error) {
	for _, t := range r.txs {
		if t.OfflineUUID != nil && *t.OfflineUUID == offlineUUID {
			return cloneTx(t), nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeTransactionRepo) UpdateReceiptSnapshot(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	stored, ok := r.txs[t.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	stored.ReceiptPayload = t.ReceiptPayload
	stored.ReceiptPayloadVersion = t.ReceiptPayloadVersion
	stored.ReceiptHMAC = t.ReceiptHMAC
	stored.ReceiptHMACAlgo = t.ReceiptHMACAlgo
	stored.ReceiptHMACCreatedAt = t.ReceiptHMACCreatedAt
	return nil
}

func (r *fakeTransactionRepo) UpdateConfirm(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	stored, ok := r.txs[t.ID]
	if !ok || stored.Status != domain.StatusPrinted {
		return xerrors.ErrInvalidTransactionState
	}
	stored.Status = domain.StatusConfirmed
	stored.CommissionAmount = t.CommissionAmount
	stored.ConfirmedAt = t.ConfirmedAt
	stored.ReceiptExpiresAt = t.ReceiptExpiresAt
	return nil
}

func (r *fakeTransactionRepo) UpdateReissue(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	stored, ok := r.txs[t.ID]
	if !ok || stored.ReceiptReissueCount >= stored.ReceiptReissueLimit {
		return xerrors.ErrReissueLimitReached
	}
	stored.PublicToken = t.PublicToken
	stored.ReceiptReissueCount = t.ReceiptReissueCount
	stored.ReceiptExpiresAt = t.ReceiptExpiresAt
	stored.ReceiptPayload = t.ReceiptPayload
	stored.ReceiptHMAC = t.ReceiptHMAC
	stored.ReceiptHMACCreatedAt = t.ReceiptHMACCreatedAt
	return nil
}

func (r *fakeTransactionRepo) UpdateReprint(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	stored, ok := r.txs[t.ID]
	if !ok || stored.ReceiptReissueCount >= stored.ReceiptReissueLimit {
		return xerrors.ErrReissueLimitReached
	}
	stored.ReceiptReissueCount = t.ReceiptReissueCount
	return nil
}

func (r *fakeTransactionRepo) ListByAgent(_ context.Context, agentID int64, _, _ int) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, t := range r.txs {
		if t.AgentID == agentID {
			out = append(out, cloneTx(t))
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) PublicTokenExists(_ context.Context, token string) (bool, error) {
	for _, t := range r.txs {
		if t.PublicToken == token {
			return true, nil
		}
	}
	return false, nil
}

type fakeCatalogRepo struct {
	denoms    map[int64]*domain.Denomination
	companies map[int64]*domain.TelecomCompany
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		denoms:    map[int64]*domain.Denomination{},
		companies: map[int64]*domain.TelecomCompany{},
	}
}

func (r *fakeCatalogRepo) GetActiveDenomination(_ context.Context, id int64) (*domain.Denomination, *domain.TelecomCompany, error) {
	d, ok := r.denoms[id]
	if !ok || !d.IsActive {
		return nil, nil, xerrors.ErrDenominationNotFound
	}
	c, ok := r.companies[d.CompanyID]
	if !ok || !c.IsActive {
		return nil, nil, xerrors.ErrDenominationNotFound
	}
	return d, c, nil
}

func (r *fakeCatalogRepo) GetDenominationByID(_ context.Context, id int64) (*domain.Denomination, *domain.TelecomCompany, error) {
	d, ok := r.denoms[id]
	if !ok {
		return nil, nil, xerrors.ErrDenominationNotFound
	}
	return d, r.companies[d.CompanyID], nil
}

func (r *fakeCatalogRepo) GetCompanyByCode(_ context.Context, code string) (*domain.TelecomCompany, error) {
	for _, c := range r.companies {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, xerrors.ErrCompanyNotFound
}

func (r *fakeCatalogRepo) ListActiveCompanies(context.Context) ([]*domain.TelecomCompany, error) {
	var out []*domain.TelecomCompany
	for _, c := range r.companies {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCatalogRepo) ListActiveDenominations(_ context.Context, companyID int64) ([]*domain.Denomination, error) {
	var out []*domain.Denomination
	for _, d := range r.denoms {
		if d.CompanyID == companyID && d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeAgentRepo struct {
	agents map[int64]*domain.Agent
	nextID int64
}

func newFakeAgentRepo() *fakeAgentRepo {
	return &fakeAgentRepo{agents: map[int64]*domain.Agent{}, nextID: 1}
}

func (r *fakeAgentRepo) GetByID(_ context.Context, id int64) (*domain.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, xerrors.ErrAgentNotFound
	}
	c := *a
	return &c, nil
}

func (r *fakeAgentRepo) Create(_ context.Context, _ pgx.Tx, a *domain.Agent) error {
	for _, existing := range r.agents {
		if existing.Username == a.Username {
			return xerrors.ErrAgentAlreadyExists
		}
	}
	a.ID = r.nextID
	r.nextID++
	c := *a
	r.agents[a.ID] = &c
	return nil
}

func (r *fakeAgentRepo) SetActive(_ context.Context, _ pgx.Tx, id int64, active bool) error {
	a, ok := r.agents[id]
	if !ok {
		return xerrors.ErrAgentNotFound
	}
	a.IsActive = active
	return nil
}

func (r *fakeAgentRepo) GetCapabilities(context.Context, int64) (*domain.AdminCapabilities, error) {
	return nil, xerrors.ErrNotFound
}

type fakeAuditRepo struct {
	entries []*domain.AuditEntry
}

func (r *fakeAuditRepo) Append(_ context.Context, _ pgx.Tx, e *domain.AuditEntry) error {
	e.ID = int64(len(r.entries) + 1)
	e.CreatedAt = time.Now()
	c := *e
	r.entries = append(r.entries, &c)
	return nil
}

func (r *fakeAuditRepo) List(context.Context, *domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return r.entries, nil
}

func (r *fakeAuditRepo) lastAction() domain.AuditAction {
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Action
}

type fakeRuleRepo struct {
	overrides map[string]*domain.CommissionRule
	defaults  map[string]*domain.CommissionRule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{
		overrides: map[string]*domain.CommissionRule{},
		defaults:  map[string]*domain.CommissionRule{},
	}
}

func ruleKey(agentID int64, companyID int64, denom int) string {
	return fmt.Sprintf("%d:%d:%d", agentID, companyID, denom)
}

func (r *fakeRuleRepo) FindActiveOverride(_ context.Context, agentID, companyID int64, denom int) (*domain.CommissionRule, error) {
	rule, ok := r.overrides[ruleKey(agentID, companyID, denom)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rule, nil
}

func (r *fakeRuleRepo) FindActiveDefault(_ context.Context, companyID int64, denom int) (*domain.CommissionRule, error) {
	rule, ok := r.defaults[ruleKey(0, companyID, denom)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rule, nil
}

func (r *fakeRuleRepo) Upsert(_ context.Context, _ pgx.Tx, create *domain.CommissionRuleCreate) (*domain.CommissionRule, error) {
	rule := &domain.CommissionRule{
		AgentID:      create.AgentID,
		CompanyID:    create.CompanyID,
		Denomination: create.Denomination,
		Amount:       create.Amount,
		IsActive:     true,
	}
	if create.AgentID != nil {
		r.overrides[ruleKey(*create.AgentID, create.CompanyID, create.Denomination)] = rule
	} else {
		r.defaults[ruleKey(0, create.CompanyID, create.Denomination)] = rule
	}
	return rule, nil
}

func (r *fakeRuleRepo) ListActive(context.Context) ([]*domain.CommissionRule, error) {
	var out []*domain.CommissionRule
	for _, rule := range r.overrides {
		out = append(out, rule)
	}
	for _, rule := range r.defaults {
		out = append(out, rule)
	}
	return out, nil
}

type fakeCache struct {
	store   map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string][]byte{}}
}

func (c *fakeCache) GetReceipt(_ context.Context, tok string) ([]byte, error) {
	return c.store[tok], nil
}

func (c *fakeCache) SetReceipt(_ context.Context, tok string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.store[tok] = data
	return nil
}

func (c *fakeCache) DeleteReceipt(_ context.Context, tok string) error {
	delete(c.store, tok)
	c.deleted = append(c.deleted, tok)
	return nil
}

type fakeSink struct {
	events []*pub.TransactionEvent
	audits []*domain.AuditEntry
}

func (s *fakeSink) PublishTransactionEvent(_ context.Context, event *pub.TransactionEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSink) PublishAudit(_ context.Context, e *domain.AuditEntry) error {
	s.audits = append(s.audits, e)
	return nil
}

func (s *fakeSink) auditActions() []domain.AuditAction {
	var out []domain.AuditAction
	for _, e := range s.audits {
		out = append(out, e.Action)
	}
	return out
}

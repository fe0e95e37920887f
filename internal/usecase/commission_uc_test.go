package usecase

import (
	"context"
	"errors"
	"testing"

	"recharge-service/internal/domain"
	"recharge-service/pkg/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newCommissionEnv() (*CommissionUsecase, *fakeRuleRepo, *fakeAuditRepo) {
	rules := newFakeRuleRepo()
	audits := &fakeAuditRepo{}
	return NewCommissionUsecase(rules, audits, nil, fakeDB{}, zap.NewNop()), rules, audits
}

func TestResolveOverrideWinsOverDefault(t *testing.T) {
	uc, rules, _ := newCommissionEnv()
	agentID := int64(7)

	rules.defaults[ruleKey(0, 2, 5000)] = &domain.CommissionRule{
		CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(2), IsActive: true,
	}
	rules.overrides[ruleKey(agentID, 2, 5000)] = &domain.CommissionRule{
		AgentID: &agentID, CompanyID: 2, Denomination: 5000,
		Amount: decimal.NewFromInt(4), IsActive: true,
	}

	got, err := uc.Resolve(context.Background(), agentID, 2, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("commission = %s, want override 4", got)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	uc, rules, _ := newCommissionEnv()

	rules.defaults[ruleKey(0, 2, 5000)] = &domain.CommissionRule{
		CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(2), IsActive: true,
	}

	got, err := uc.Resolve(context.Background(), 7, 2, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("commission = %s, want default 2", got)
	}
}

func TestResolveNoRulesIsZero(t *testing.T) {
	uc, _, _ := newCommissionEnv()

	got, err := uc.Resolve(context.Background(), 7, 2, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Fatalf("commission = %s, want 0", got)
	}
}

func TestResolveExactKeyOnly(t *testing.T) {
	uc, rules, _ := newCommissionEnv()
	agentID := int64(7)

	// Override on a different denomination must not leak over.
	rules.overrides[ruleKey(agentID, 2, 10000)] = &domain.CommissionRule{
		AgentID: &agentID, CompanyID: 2, Denomination: 10000,
		Amount: decimal.NewFromInt(9), IsActive: true,
	}

	got, err := uc.Resolve(context.Background(), agentID, 2, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Fatalf("commission = %s, want 0 for unmatched key", got)
	}
}

func TestUpsertRuleValidatesAndAudits(t *testing.T) {
	uc, _, audits := newCommissionEnv()

	_, err := uc.UpsertRule(context.Background(), 1, &domain.CommissionRuleCreate{
		CompanyID: 0, Denomination: 5000, Amount: decimal.NewFromInt(1),
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, err = uc.UpsertRule(context.Background(), 1, &domain.CommissionRuleCreate{
		CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(-1),
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("negative amount: expected ErrInvalidInput, got %v", err)
	}

	rule, err := uc.UpsertRule(context.Background(), 1, &domain.CommissionRuleCreate{
		CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rule.IsDefault() {
		t.Fatal("rule without agent id must be a default rule")
	}
	if audits.lastAction() != domain.ActionUpdateDefaultRule {
		t.Fatalf("audit action = %s, want UPDATE_DEFAULT_COMMISSION", audits.lastAction())
	}

	agentID := int64(7)
	_, err = uc.UpsertRule(context.Background(), 1, &domain.CommissionRuleCreate{
		AgentID: &agentID, CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(4),
	})
	if err != nil {
		t.Fatal(err)
	}
	if audits.lastAction() != domain.ActionAddAgentCommission {
		t.Fatalf("audit action = %s, want ADD_AGENT_COMMISSION", audits.lastAction())
	}
}

// A rule change between sale and confirmation must be visible at
// confirmation time.
func TestResolveReflectsLatestRuleState(t *testing.T) {
	uc, rules, _ := newCommissionEnv()

	got, _ := uc.Resolve(context.Background(), 7, 2, 5000)
	if !got.IsZero() {
		t.Fatalf("commission = %s, want 0 before rule exists", got)
	}

	rules.defaults[ruleKey(0, 2, 5000)] = &domain.CommissionRule{
		CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(6), IsActive: true,
	}

	got, err := uc.Resolve(context.Background(), 7, 2, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("commission = %s, want 6 after rule installed", got)
	}
}

func TestUpsertRuleStreamsAuditAfterCommit(t *testing.T) {
	sink := &fakeSink{}
	uc := NewCommissionUsecase(newFakeRuleRepo(), &fakeAuditRepo{}, sink, fakeDB{}, zap.NewNop())

	_, err := uc.UpsertRule(context.Background(), 1, &domain.CommissionRuleCreate{
		CompanyID: 2, Denomination: 5000, Amount: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.audits) != 1 || sink.audits[0].Action != domain.ActionUpdateDefaultRule {
		t.Fatalf("streamed audits = %v, want one UPDATE_DEFAULT_COMMISSION", sink.auditActions())
	}

	// A rejected upsert commits nothing and must stream nothing.
	_, err = uc.UpsertRule(context.Background(), 1, &domain.CommissionRuleCreate{
		CompanyID: 0, Denomination: 5000, Amount: decimal.NewFromInt(2),
	})
	if err == nil {
		t.Fatal("invalid rule must fail")
	}
	if len(sink.audits) != 1 {
		t.Fatalf("failed upsert streamed an audit entry: %v", sink.auditActions())
	}
}

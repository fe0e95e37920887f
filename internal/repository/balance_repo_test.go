package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

const (
	lockQuery   = `SELECT agent_id, balance, updated_at\s+FROM agent_balances\s+WHERE agent_id = \$1\s+FOR UPDATE`
	updateQuery = `UPDATE agent_balances\s+SET balance = \$1, updated_at = \$2\s+WHERE agent_id = \$3`
	insertQuery = `INSERT INTO agent_balances \(agent_id, balance, updated_at\)`
)

func anyTime() time.Time { return time.Now() }

func errNoRowsForTest() error { return pgx.ErrNoRows }

func newBalanceMock(t *testing.T) (pgxmock.PgxPoolIface, BalanceRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return mock, NewBalanceRepo(mock)
}

func TestDebitLocksRowAndUpdates(t *testing.T) {
	mock, repo := newBalanceMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"agent_id", "balance", "updated_at"}).
			AddRow(int64(1), "100", anyTime()))
	mock.ExpectExec(updateQuery).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	newBalance, err := repo.Debit(ctx, tx, 1, decimal.NewFromInt(40))
	if err != nil {
		t.Fatal(err)
	}
	if !newBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("new balance = %s, want 60", newBalance)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDebitInsufficientLeavesRowUntouched(t *testing.T) {
	mock, repo := newBalanceMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"agent_id", "balance", "updated_at"}).
			AddRow(int64(1), "30", anyTime()))
	// No UPDATE expected: the guard must fire before any write.

	tx, err := mock.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = repo.Debit(ctx, tx, 1, decimal.NewFromInt(40))
	if !errors.Is(err, xerrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreditLazyCreatesMissingRow(t *testing.T) {
	mock, repo := newBalanceMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs(int64(2)).
		WillReturnError(errNoRowsForTest())
	mock.ExpectExec(insertQuery).
		WithArgs(int64(2), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(lockQuery).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"agent_id", "balance", "updated_at"}).
			AddRow(int64(2), "0", anyTime()))
	mock.ExpectExec(updateQuery).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	newBalance, err := repo.Credit(ctx, tx, 2, decimal.NewFromInt(10))
	if err != nil {
		t.Fatal(err)
	}
	if !newBalance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("new balance = %s, want 10", newBalance)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	mock, repo := newBalanceMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := mock.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Debit(ctx, tx, 1, decimal.Zero); !errors.Is(err, xerrors.ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := repo.Debit(ctx, tx, 1, decimal.NewFromInt(-5)); !errors.Is(err, xerrors.ErrInvalidAmount) {
		t.Fatalf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
}

func TestAdjustMapsOverdraftError(t *testing.T) {
	mock, repo := newBalanceMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"agent_id", "balance", "updated_at"}).
			AddRow(int64(1), "5", anyTime()))

	tx, err := mock.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = repo.Adjust(ctx, tx, 1, decimal.NewFromInt(-6))
	if !errors.Is(err, xerrors.ErrNegativeBalanceNotAllowed) {
		t.Fatalf("expected ErrNegativeBalanceNotAllowed, got %v", err)
	}
}

func TestMutationsRequireTransaction(t *testing.T) {
	_, repo := newBalanceMock(t)
	ctx := context.Background()

	if _, err := repo.Debit(ctx, nil, 1, decimal.NewFromInt(1)); err == nil {
		t.Fatal("debit without a transaction must fail")
	}
	if err := repo.EnsureExists(ctx, nil, 1); err == nil {
		t.Fatal("ensure without a transaction must fail")
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"recharge-service/internal/domain"
	"recharge-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error

	// GetForUpdate locks the specific transaction row scoped to
	// (id, agent, status). A miss unifies not-found, wrong-owner and
	// wrong-state so existence never leaks across agents.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id, agentID int64, status domain.TransactionStatus) (*domain.Transaction, error)

	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByPublicToken(ctx context.Context, token string, status domain.TransactionStatus) (*domain.Transaction, error)
	GetByOfflineUUID(ctx context.Context, offlineUUID string) (*domain.Transaction, error)

	// UpdateReceiptSnapshot stores the signed payload after the row id is
	// known; called inside the same transaction as Create.
	UpdateReceiptSnapshot(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error

	UpdateConfirm(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	UpdateReissue(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	UpdateReprint(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error

	ListByAgent(ctx context.Context, agentID int64, limit, offset int) ([]*domain.Transaction, error)
	PublicTokenExists(ctx context.Context, token string) (bool, error)
}

type transactionRepo struct {
	db DB
}

func NewTransactionRepo(db DB) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `
	id, agent_id, company_id, denomination_id, code, status,
	price, commission_amount,
	public_token, receipt_expires_at, receipt_reissue_count, receipt_reissue_limit,
	receipt_payload, receipt_payload_version, receipt_hmac, receipt_hmac_algo, receipt_hmac_created_at,
	source, device_id, offline_uuid, created_at, confirmed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.AgentID, &t.CompanyID, &t.DenominationID, &t.Code, &t.Status,
		&t.Price, &t.CommissionAmount,
		&t.PublicToken, &t.ReceiptExpiresAt, &t.ReceiptReissueCount, &t.ReceiptReissueLimit,
		&t.ReceiptPayload, &t.ReceiptPayloadVersion, &t.ReceiptHMAC, &t.ReceiptHMACAlgo, &t.ReceiptHMACCreatedAt,
		&t.Source, &t.DeviceID, &t.OfflineUUID, &t.CreatedAt, &t.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		INSERT INTO transactions (
			agent_id, company_id, denomination_id, code, status,
			price, commission_amount,
			public_token, receipt_reissue_count, receipt_reissue_limit,
			receipt_payload, receipt_payload_version, receipt_hmac, receipt_hmac_algo, receipt_hmac_created_at,
			source, device_id, offline_uuid, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query,
		t.AgentID, t.CompanyID, t.DenominationID, t.Code, t.Status,
		t.Price, t.CommissionAmount,
		t.PublicToken, t.ReceiptReissueCount, t.ReceiptReissueLimit,
		t.ReceiptPayload, t.ReceiptPayloadVersion, t.ReceiptHMAC, t.ReceiptHMACAlgo, t.ReceiptHMACCreatedAt,
		t.Source, t.DeviceID, t.OfflineUUID, t.CreatedAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return fmt.Errorf("duplicate transaction: %w", err)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id, agentID int64, status domain.TransactionStatus) (*domain.Transaction, error) {
	if tx == nil {
		return nil, errNilTx
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1 AND agent_id = $2 AND status = $3
		FOR UPDATE
	`

	t, err := scanTransaction(tx.QueryRow(ctx, query, id, agentID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction with lock: %w", err)
	}
	return t, nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *transactionRepo) GetByPublicToken(ctx context.Context, token string, status domain.TransactionStatus) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE public_token = $1 AND status = $2
	`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, token, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by token: %w", err)
	}
	return t, nil
}

func (r *transactionRepo) GetByOfflineUUID(ctx context.Context, offlineUUID string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE offline_uuid = $1
	`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, offlineUUID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by offline uuid: %w", err)
	}
	return t, nil
}

func (r *transactionRepo) UpdateReceiptSnapshot(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		UPDATE transactions
		SET receipt_payload = $1,
		    receipt_payload_version = $2,
		    receipt_hmac = $3,
		    receipt_hmac_algo = $4,
		    receipt_hmac_created_at = $5
		WHERE id = $6
	`

	cmdTag, err := tx.Exec(ctx, query,
		t.ReceiptPayload, t.ReceiptPayloadVersion, t.ReceiptHMAC, t.ReceiptHMACAlgo, t.ReceiptHMACCreatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to store receipt snapshot: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *transactionRepo) UpdateConfirm(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		UPDATE transactions
		SET status = $1,
		    commission_amount = $2,
		    confirmed_at = $3,
		    receipt_expires_at = $4
		WHERE id = $5 AND status = $6
	`

	cmdTag, err := tx.Exec(ctx, query,
		domain.StatusConfirmed, t.CommissionAmount, t.ConfirmedAt, t.ReceiptExpiresAt,
		t.ID, domain.StatusPrinted,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm transaction: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrInvalidTransactionState
	}
	return nil
}

// UpdateReissue persists a token rotation: new token, bumped counter,
// extended expiry and the re-signed receipt snapshot.
func (r *transactionRepo) UpdateReissue(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		UPDATE transactions
		SET public_token = $1,
		    receipt_reissue_count = $2,
		    receipt_expires_at = $3,
		    receipt_payload = $4,
		    receipt_hmac = $5,
		    receipt_hmac_created_at = $6
		WHERE id = $7 AND receipt_reissue_count < receipt_reissue_limit
	`

	cmdTag, err := tx.Exec(ctx, query,
		t.PublicToken, t.ReceiptReissueCount, t.ReceiptExpiresAt,
		t.ReceiptPayload, t.ReceiptHMAC, t.ReceiptHMACCreatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to reissue receipt: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrReissueLimitReached
	}
	return nil
}

// UpdateReprint bumps the reissue counter only; the token stays.
func (r *transactionRepo) UpdateReprint(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if tx == nil {
		return errNilTx
	}

	query := `
		UPDATE transactions
		SET receipt_reissue_count = $1
		WHERE id = $2 AND receipt_reissue_count < receipt_reissue_limit
	`

	cmdTag, err := tx.Exec(ctx, query, t.ReceiptReissueCount, t.ID)
	if err != nil {
		return fmt.Errorf("failed to reprint receipt: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrReissueLimitReached
	}
	return nil
}

func (r *transactionRepo) ListByAgent(ctx context.Context, agentID int64, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return out, nil
}

func (r *transactionRepo) PublicTokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE public_token = $1)`, token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token existence: %w", err)
	}
	return exists, nil
}

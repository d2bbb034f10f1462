package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hazolab/sms-gateway-go/internal/model"
)

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	CreateUnparsed(ctx context.Context, msg *model.UnparsedMessage) error
	ListRecent(ctx context.Context, limit, offset int) ([]model.Transaction, error)
	FindByReference(ctx context.Context, reference string) (*model.Transaction, error)
	DeleteUnparsedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type transactionRepo struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, amount, counterparty_name, counterparty_phone, occurred_at,
			 balance, reference, direction, locale, raw_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference) DO NOTHING
	`, tx.ID, tx.Amount, tx.CounterpartyName, tx.CounterpartyPhone, tx.OccurredAt,
		tx.Balance, tx.Reference, tx.Direction, tx.Locale, tx.RawMessage, tx.CreatedAt)
	return err
}

func (r *transactionRepo) CreateUnparsed(ctx context.Context, msg *model.UnparsedMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unparsed_messages (id, raw_message, received_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, msg.ID, msg.RawMessage, msg.ReceivedAt, msg.CreatedAt)
	return err
}

func (r *transactionRepo) ListRecent(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions
		ORDER BY occurred_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return txs, err
}

func (r *transactionRepo) FindByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.db.GetContext(ctx, &tx, `SELECT * FROM transactions WHERE reference = $1`, reference)
	return HandleNotFound(&tx, err)
}

func (r *transactionRepo) DeleteUnparsedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM unparsed_messages WHERE received_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/model"
)

// logOnlyRepo stands in when no database is configured. Writes are
// logged and dropped; reads come back empty.
type logOnlyRepo struct{}

func NewLogOnlyTransactionRepository() TransactionRepository {
	return &logOnlyRepo{}
}

func (r *logOnlyRepo) CreateTransaction(_ context.Context, tx *model.Transaction) error {
	log.Info().
		Int64("amount", tx.Amount).
		Str("reference", tx.Reference).
		Str("counterparty", tx.CounterpartyPhone).
		Msg("Transaction recorded (no database configured)")
	return nil
}

func (r *logOnlyRepo) CreateUnparsed(_ context.Context, msg *model.UnparsedMessage) error {
	log.Warn().
		Str("raw", msg.RawMessage).
		Msg("Unparsed message recorded (no database configured)")
	return nil
}

func (r *logOnlyRepo) ListRecent(_ context.Context, _, _ int) ([]model.Transaction, error) {
	return []model.Transaction{}, nil
}

func (r *logOnlyRepo) FindByReference(_ context.Context, _ string) (*model.Transaction, error) {
	return nil, nil
}

func (r *logOnlyRepo) DeleteUnparsedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

package model

import "time"

type Locale string

const (
	LocalePrimary   Locale = "primary"
	LocaleSecondary Locale = "secondary"
)

type Direction string

const DirectionIn Direction = "in"

// Transaction is a structured record extracted from a carrier notification
// message. Amounts are whole ariary; the currency has no minor unit in use.
type Transaction struct {
	ID                string    `db:"id" json:"id,omitempty"`
	Amount            int64     `db:"amount" json:"amount"`
	CounterpartyName  string    `db:"counterparty_name" json:"counterpartyName"`
	CounterpartyPhone string    `db:"counterparty_phone" json:"counterpartyPhone"`
	OccurredAt        time.Time `db:"occurred_at" json:"occurredAt"`
	Balance           int64     `db:"balance" json:"balance"`
	Reference         string    `db:"reference" json:"reference"`
	Direction         Direction `db:"direction" json:"direction"`
	Locale            Locale    `db:"locale" json:"locale"`
	RawMessage        string    `db:"raw_message" json:"rawMessage"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt,omitempty"`
}

// UnparsedMessage preserves an inbound text that matched no known pattern.
type UnparsedMessage struct {
	ID         string    `db:"id" json:"id,omitempty"`
	RawMessage string    `db:"raw_message" json:"rawMessage"`
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt,omitempty"`
}

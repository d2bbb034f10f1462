package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazolab/sms-gateway-go/internal/model"
)

func TestParsePrimaryLocale(t *testing.T) {
	t.Run("reference sample", func(t *testing.T) {
		text := "50 000 Ar recu de herimampianina (0346449569) le 01/08/24 a 07:44. Raison: fff. Solde : 59 950 Ar. Ref: 276567871 Avec MVola Epargne..."

		tx, ok := Parse(text)
		require.True(t, ok)
		assert.Equal(t, int64(50000), tx.Amount)
		assert.Equal(t, "herimampianina", tx.CounterpartyName)
		assert.Equal(t, "0346449569", tx.CounterpartyPhone)
		assert.Equal(t, int64(59950), tx.Balance)
		assert.Equal(t, "276567871", tx.Reference)
		assert.Equal(t, time.Date(2024, 8, 1, 7, 44, 0, 0, time.Local), tx.OccurredAt)
		assert.Equal(t, model.DirectionIn, tx.Direction)
		assert.Equal(t, model.LocalePrimary, tx.Locale)
		assert.Equal(t, text, tx.RawMessage)
	})

	t.Run("large amounts keep their grouping", func(t *testing.T) {
		text := "850 000 Ar recu de Going Beyond (0345755747) le 02/01/25 a 09:42. Serveur. Solde : 1 414 155 Ar. Ref: 544640999 Avec MVola Epargne..."

		tx, ok := Parse(text)
		require.True(t, ok)
		assert.Equal(t, int64(850000), tx.Amount)
		assert.Equal(t, "Going Beyond", tx.CounterpartyName)
		assert.Equal(t, int64(1414155), tx.Balance)
		assert.Equal(t, time.Date(2025, 1, 2, 9, 42, 0, 0, time.Local), tx.OccurredAt)
	})

	t.Run("tight spacing parses identically", func(t *testing.T) {
		spaced := "850 000 Ar recu de Test User (0341234567) le 01/01/24 a 12:34. Solde : 59 950 Ar. Ref: 123456789"
		tight := "850000Ar recu de Test User (0341234567) le 01/01/24 a 12:34. Solde:59950Ar. Ref:123456789"

		a, ok := Parse(spaced)
		require.True(t, ok)
		b, ok := Parse(tight)
		require.True(t, ok)
		assert.Equal(t, int64(850000), a.Amount)
		assert.Equal(t, a.Amount, b.Amount)
		assert.Equal(t, a.Balance, b.Balance)
	})

	t.Run("intervening free text is skipped", func(t *testing.T) {
		text := "50 000 Ar recu de Test (0341234567) le 01/01/24 a 12:34. Some random text here. Solde : 59 950 Ar. More text. Ref: 123456789"

		tx, ok := Parse(text)
		require.True(t, ok)
		assert.Equal(t, "Test", tx.CounterpartyName)
		assert.Equal(t, "123456789", tx.Reference)
	})
}

func TestParseSecondaryLocale(t *testing.T) {
	t.Run("malagasy wording", func(t *testing.T) {
		text := "Voaray 50 000 Ar avy amin'i herimampianina (0346449569) ny 01/08/24 tamin'ny 07:44. Sisa : 59 950 Ar. Ref: 276567871"

		tx, ok := Parse(text)
		require.True(t, ok)
		assert.Equal(t, model.LocaleSecondary, tx.Locale)
		assert.Equal(t, int64(50000), tx.Amount)
		assert.Equal(t, "herimampianina", tx.CounterpartyName)
		assert.Equal(t, int64(59950), tx.Balance)
		assert.Equal(t, "276567871", tx.Reference)
		assert.Equal(t, time.Date(2024, 8, 1, 7, 44, 0, 0, time.Local), tx.OccurredAt)
	})
}

func TestParseMiss(t *testing.T) {
	t.Run("unrelated text does not parse", func(t *testing.T) {
		_, ok := Parse("This is not a valid SMS format")
		assert.False(t, ok)
	})

	t.Run("invalid calendar fields fail the whole parse", func(t *testing.T) {
		// Matches the pattern but the month is out of range.
		_, ok := Parse("50 000 Ar recu de Test (0341234567) le 01/13/24 a 12:34. Solde : 59 950 Ar. Ref: 123456789")
		assert.False(t, ok)
	})

	t.Run("blank counterparty name fails the whole parse", func(t *testing.T) {
		_, ok := Parse("50 000 Ar recu de  (0341234567) le 01/01/24 a 12:34. Solde : 59 950 Ar. Ref: 123456789")
		assert.False(t, ok)
	})

	t.Run("parsing is idempotent", func(t *testing.T) {
		text := "50 000 Ar recu de herimampianina (0346449569) le 01/08/24 a 07:44. Solde : 59 950 Ar. Ref: 276567871"
		a, ok := Parse(text)
		require.True(t, ok)
		b, ok := Parse(text)
		require.True(t, ok)
		assert.Equal(t, a, b)
	})
}

func TestUnparsed(t *testing.T) {
	t.Run("preserves raw text and receipt time", func(t *testing.T) {
		at := time.Now()
		u := Unparsed("This is not a valid SMS format", at)
		assert.Equal(t, "This is not a valid SMS format", u.RawMessage)
		assert.Equal(t, at, u.ReceivedAt)
	})
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"850 000", 850000},
		{"850000", 850000},
		{"1 414 155", 1414155},
		{"50", 50},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

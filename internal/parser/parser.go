// Package parser extracts structured transaction records from carrier
// notification texts. Parsing is pure: no shared state, no side effects.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazolab/sms-gateway-go/internal/model"
)

// Two-digit years roll into 2000..2099. Messages past 2099 would need an
// explicit pivot policy; every observed sample is recent.
const centuryBase = 2000

// The carrier uses two mutually exclusive notification templates for the
// same transaction format, one per language. They are structurally
// different and deliberately kept as separate patterns: a merged pattern
// risks one locale's free text satisfying the other's field boundaries.
//
// Primary (French): "50 000 Ar recu de herimampianina (0346449569) le
// 01/08/24 a 07:44. ... Solde : 59 950 Ar. Ref: 276567871 ..."
var primaryPattern = regexp.MustCompile(
	`(?s)(\d+(?:\s+\d+)*)\s*Ar\s+recu\s+de\s+([^(]+)\((\d+)\)\s+le\s+(\d{2}/\d{2}/\d{2})\s+a\s+(\d{2}:\d{2}).*?Solde\s*:\s*(\d+(?:\s+\d+)*)\s*Ar.*?Ref\s*:\s*(\d+)`)

// Secondary (Malagasy): "Voaray 50 000 Ar avy amin'i herimampianina
// (0346449569) ny 01/08/24 tamin'ny 07:44. ... Sisa : 59 950 Ar.
// Ref: 276567871 ..."
var secondaryPattern = regexp.MustCompile(
	`(?s)Voaray\s+(\d+(?:\s+\d+)*)\s*Ar\s+avy\s+amin'i\s+([^(]+)\((\d+)\)\s+ny\s+(\d{2}/\d{2}/\d{2})\s+tamin'ny\s+(\d{2}:\d{2}).*?Sisa\s*:\s*(\d+(?:\s+\d+)*)\s*Ar.*?Ref\s*:\s*(\d+)`)

var locales = []struct {
	locale  model.Locale
	pattern *regexp.Regexp
}{
	{model.LocalePrimary, primaryPattern},
	{model.LocaleSecondary, secondaryPattern},
}

// Parse tries the primary-locale pattern first, then the secondary; first
// match wins. Any field that fails to extract or convert fails the whole
// parse: a partial match never produces a partial record.
func Parse(text string) (*model.Transaction, bool) {
	for _, l := range locales {
		m := l.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		tx, err := build(m, l.locale, text)
		if err != nil {
			return nil, false
		}
		return tx, true
	}
	return nil, false
}

// Unparsed wraps a text that matched no pattern, preserving the raw
// message verbatim for audit and storage.
func Unparsed(text string, receivedAt time.Time) *model.UnparsedMessage {
	return &model.UnparsedMessage{RawMessage: text, ReceivedAt: receivedAt}
}

type fieldError struct{ field string }

func (e *fieldError) Error() string { return "unusable field: " + e.field }

func build(m []string, locale model.Locale, raw string) (*model.Transaction, error) {
	amount, err := parseAmount(m[1])
	if err != nil {
		return nil, &fieldError{"amount"}
	}
	name := strings.TrimSpace(m[2])
	if name == "" {
		return nil, &fieldError{"counterparty name"}
	}
	phone := m[3]
	occurredAt, err := parseTimestamp(m[4], m[5])
	if err != nil {
		return nil, &fieldError{"timestamp"}
	}
	balance, err := parseAmount(m[6])
	if err != nil {
		return nil, &fieldError{"balance"}
	}
	reference := m[7]
	if reference == "" {
		return nil, &fieldError{"reference"}
	}

	return &model.Transaction{
		Amount:            amount,
		CounterpartyName:  name,
		CounterpartyPhone: phone,
		OccurredAt:        occurredAt,
		Balance:           balance,
		// Reference stays a string: parsing it to an integer would lose
		// leading zeros and cap its length.
		Reference:  reference,
		Direction:  model.DirectionIn,
		Locale:     locale,
		RawMessage: raw,
	}, nil
}

// parseAmount converts a numeral with optional thousands-separator
// whitespace between digit groups: "850 000" and "850000" both yield
// 850000.
func parseAmount(s string) (int64, error) {
	compact := strings.Join(strings.Fields(s), "")
	return strconv.ParseInt(compact, 10, 64)
}

// parseTimestamp combines dd/mm/yy and hh:mm fields into one timestamp.
func parseTimestamp(date, clock string) (time.Time, error) {
	d := strings.Split(date, "/")
	c := strings.Split(clock, ":")
	if len(d) != 3 || len(c) != 2 {
		return time.Time{}, &fieldError{"timestamp"}
	}

	day, err1 := strconv.Atoi(d[0])
	month, err2 := strconv.Atoi(d[1])
	year, err3 := strconv.Atoi(d[2])
	hour, err4 := strconv.Atoi(c[0])
	minute, err5 := strconv.Atoi(c[1])
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return time.Time{}, err
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, &fieldError{"timestamp"}
	}

	return time.Date(centuryBase+year, time.Month(month), day, hour, minute, 0, 0, time.Local), nil
}

package receipt

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Extractor turns recognized text into an ExtractedTransaction.
type Extractor struct {
	// Zone is the wall-clock zone the bank prints timestamps in.
	Zone *time.Location
	Log  zerolog.Logger
}

func NewExtractor(zone *time.Location, log zerolog.Logger) *Extractor {
	if zone == nil {
		zone = time.UTC
	}
	return &Extractor{Zone: zone, Log: log}
}

type fieldStep struct {
	field Field
	apply func(lines []string, tx *ExtractedTransaction) (bool, error)
}

func (e *Extractor) steps() []fieldStep {
	return []fieldStep{
		{FieldDescription, func(lines []string, tx *ExtractedTransaction) (bool, error) {
			var ok bool
			tx.Description, ok = findDescription(lines)
			return ok, nil
		}},
		{FieldAmount, func(lines []string, tx *ExtractedTransaction) (bool, error) {
			var ok bool
			tx.Amount, tx.CurrencySymbol, ok = findAmount(lines)
			return ok, nil
		}},
		{FieldDateTime, func(lines []string, tx *ExtractedTransaction) (bool, error) {
			raw, ok := findDateLine(lines)
			if !ok {
				return false, nil
			}
			t, err := parseDate(raw, e.Zone)
			if err != nil {
				return false, err
			}
			tx.DateTime = t
			return true, nil
		}},
		{FieldCard, func(lines []string, tx *ExtractedTransaction) (bool, error) {
			var ok bool
			tx.CardIdentifier, ok = findCard(lines)
			return ok, nil
		}},
		{FieldTransactionNumber, func(lines []string, tx *ExtractedTransaction) (bool, error) {
			var ok bool
			tx.TransactionNumber, ok = findTransactionNumber(lines)
			return ok, nil
		}},
	}
}

// Extract runs the field steps in order and stops at the first missing field.
// The result is deterministic for a given text and zone.
func (e *Extractor) Extract(text string) (*ExtractedTransaction, error) {
	lines := SplitLines(text)
	tx := &ExtractedTransaction{}
	for _, s := range e.steps() {
		ok, err := s.apply(lines, tx)
		if err != nil {
			e.Log.Warn().Err(err).Str("field", string(s.field)).Msg("field rejected")
			return nil, err
		}
		if !ok {
			e.Log.Warn().Str("field", string(s.field)).Int("lines", len(lines)).Msg("field not found")
			return nil, &ExtractionError{Field: s.field}
		}
	}
	if v, ok := findForeignAmount(lines); ok {
		tx.ForeignAmount = v
	}
	if v, ok := findMCC(lines); ok {
		tx.MerchantCategoryCode = v
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	e.Log.Debug().
		Str("description", tx.Description).
		Str("amount", tx.Amount).
		Str("symbol", tx.CurrencySymbol).
		Str("txn", tx.TransactionNumber).
		Msg("transaction extracted")
	return tx, nil
}

package receipt

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedTransaction is one bank notification turned into ledger fields.
// It is either fully populated or not produced at all.
type ExtractedTransaction struct {
	Description string `json:"description"`
	// Amount is the unsigned magnitude with '.' as decimal separator, e.g. "18.29".
	Amount         string    `json:"amount"`
	CurrencySymbol string    `json:"currency_symbol"`
	DateTime       time.Time `json:"date_time"`
	CardIdentifier string    `json:"card"`
	// TransactionNumber is the bank's reference, used downstream as the external id.
	TransactionNumber    string `json:"transaction_number"`
	ForeignAmount        string `json:"foreign_amount,omitempty"`
	MerchantCategoryCode string `json:"mcc,omitempty"`
}

var digitsRE = regexp.MustCompile(`^\d+$`)

// AmountDecimal parses Amount.
func (t *ExtractedTransaction) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Amount)
}

// Validate reports the first field that makes the record unusable.
func (t *ExtractedTransaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("empty description")
	}
	if strings.ContainsAny(t.Amount, "+-") {
		return fmt.Errorf("amount %q carries a sign", t.Amount)
	}
	amt, err := t.AmountDecimal()
	if err != nil {
		return fmt.Errorf("amount %q: %w", t.Amount, err)
	}
	if !amt.IsPositive() {
		return fmt.Errorf("amount %q is not positive", t.Amount)
	}
	if t.CurrencySymbol == "" {
		return fmt.Errorf("empty currency symbol")
	}
	if t.DateTime.IsZero() || t.DateTime.Location() == nil {
		return fmt.Errorf("missing date time")
	}
	if strings.TrimSpace(t.CardIdentifier) == "" {
		return fmt.Errorf("empty card identifier")
	}
	if !digitsRE.MatchString(t.TransactionNumber) {
		return fmt.Errorf("transaction number %q is not numeric", t.TransactionNumber)
	}
	if t.ForeignAmount != "" {
		if _, err := decimal.NewFromString(t.ForeignAmount); err != nil {
			return fmt.Errorf("foreign amount %q: %w", t.ForeignAmount, err)
		}
	}
	return nil
}

package receipt

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const notification = `NSK GROCER- QCM
-18,29 $
09 november's 2025 15:37:39
Card Solo Visa Signature MLT **1293
12165085404`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Almaty")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return NewExtractor(loc, zerolog.Nop())
}

func TestExtractNotification(t *testing.T) {
	ex := newTestExtractor(t)
	tx, err := ex.Extract(notification)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if tx.Description != "NSK GROCER- QCM" {
		t.Fatalf("description: %q", tx.Description)
	}
	if tx.Amount != "18.29" || tx.CurrencySymbol != "$" {
		t.Fatalf("amount: %q %q", tx.Amount, tx.CurrencySymbol)
	}
	want := time.Date(2025, time.November, 9, 15, 37, 39, 0, ex.Zone)
	if !tx.DateTime.Equal(want) || tx.DateTime.Location() != ex.Zone {
		t.Fatalf("date: %v", tx.DateTime)
	}
	if !strings.Contains(tx.CardIdentifier, "1293") {
		t.Fatalf("card: %q", tx.CardIdentifier)
	}
	if tx.TransactionNumber != "12165085404" {
		t.Fatalf("txn: %q", tx.TransactionNumber)
	}
	if tx.ForeignAmount != "" || tx.MerchantCategoryCode != "" {
		t.Fatalf("unexpected optional fields: %+v", tx)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	ex := newTestExtractor(t)
	a, err := ex.Extract(notification)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	b, err := ex.Extract(notification)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if *a != *b {
		t.Fatalf("results differ:\n%+v\n%+v", a, b)
	}
}

func TestExtractMissingDate(t *testing.T) {
	ex := newTestExtractor(t)
	text := strings.Replace(notification, "09 november's 2025 15:37:39\n", "", 1)
	tx, err := ex.Extract(text)
	if tx != nil {
		t.Fatalf("expected no record, got %+v", tx)
	}
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Field != FieldDateTime {
		t.Fatalf("expected date_time extraction error got %v", err)
	}
	if !errors.Is(err, ErrFieldMissing) {
		t.Fatalf("expected ErrFieldMissing match")
	}
}

func TestExtractFirstMissingFieldWins(t *testing.T) {
	ex := newTestExtractor(t)
	_, err := ex.Extract("nothing useful here\n12:30")
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Field != FieldDescription {
		t.Fatalf("expected description error got %v", err)
	}
	_, err = ex.Extract("ACME STORE\nno money here")
	if !errors.As(err, &ee) || ee.Field != FieldAmount {
		t.Fatalf("expected amount error got %v", err)
	}
}

func TestExtractUnparsableDate(t *testing.T) {
	ex := newTestExtractor(t)
	text := `ACME STORE
-5,00 €
Date and time
31 smarch 2025 10:00:00
Card Visa **1111
1234567890123`
	_, err := ex.Extract(text)
	var de *DateParseError
	if !errors.As(err, &de) {
		t.Fatalf("expected DateParseError got %v", err)
	}
	if de.Raw != "31 smarch 2025 10:00:00" {
		t.Fatalf("raw: %q", de.Raw)
	}
	if !errors.Is(err, ErrDateParse) {
		t.Fatalf("expected ErrDateParse match")
	}
}

func TestExtractAnchoredLayout(t *testing.T) {
	ex := newTestExtractor(t)
	text := `14:02 ull 5G
Purchase
8
©
Magnum Cash&Carry
-8 021,60 T
Date and time
O7 March 2025 19:04:11
From
Gold Card *4432
Transaction N
5512 3409 11
Transaction amount
Converted
21,40 MYR
MCC 5912`
	tx, err := ex.Extract(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if tx.Description != "Magnum Cash&Carry" {
		t.Fatalf("description: %q", tx.Description)
	}
	if tx.Amount != "8021.60" || tx.CurrencySymbol != "T" {
		t.Fatalf("amount: %q %q", tx.Amount, tx.CurrencySymbol)
	}
	if tx.DateTime.Day() != 7 || tx.DateTime.Month() != time.March || tx.DateTime.Hour() != 19 {
		t.Fatalf("date: %v", tx.DateTime)
	}
	if tx.CardIdentifier != "Gold Card *4432" {
		t.Fatalf("card: %q", tx.CardIdentifier)
	}
	if tx.TransactionNumber != "5512340911" {
		t.Fatalf("txn: %q", tx.TransactionNumber)
	}
	if tx.ForeignAmount != "21.40" {
		t.Fatalf("foreign: %q", tx.ForeignAmount)
	}
	if tx.MerchantCategoryCode != "5912" {
		t.Fatalf("mcc: %q", tx.MerchantCategoryCode)
	}
}

func TestExtractPositiveAmountFallback(t *testing.T) {
	ex := newTestExtractor(t)
	text := `COFFEE PLACE
4,50 €
09 november 2025 08:00:00
Card **9
99999999999`
	tx, err := ex.Extract(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if tx.Amount != "4.50" || tx.CurrencySymbol != "€" {
		t.Fatalf("amount: %q %q", tx.Amount, tx.CurrencySymbol)
	}
}

func TestExtractSkipsZeroAmount(t *testing.T) {
	ex := newTestExtractor(t)
	text := `NSK GROCER- QCM
Cashback -0,00 $
-18,29 $
09 november's 2025 15:37:39
Card Solo Visa **1293
12165085404`
	tx, err := ex.Extract(text)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if tx.Amount != "18.29" || tx.CurrencySymbol != "$" {
		t.Fatalf("amount: %q %q", tx.Amount, tx.CurrencySymbol)
	}
}

func TestExtractOnlyZeroAmountIsMissing(t *testing.T) {
	ex := newTestExtractor(t)
	text := "SHOP NAME\n-0,00 $\n01 january 2025 00:00:00\nCard *1\n1234567890"
	_, err := ex.Extract(text)
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Field != FieldAmount {
		t.Fatalf("expected amount extraction error got %v", err)
	}
	if UserMessage(err) != "could not recognize transaction data" {
		t.Fatalf("message: %q", UserMessage(err))
	}
}

func TestExtractTrimsDanglingDecimalPoint(t *testing.T) {
	ex := newTestExtractor(t)
	tx, err := ex.Extract("SHOP NAME\n-18. $\n01 january 2025 00:00:00\nCard *1\n1234567890")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if tx.Amount != "18" {
		t.Fatalf("amount: %q", tx.Amount)
	}
}

func TestExtractedAmountsAreUnsignedAndNumeric(t *testing.T) {
	ex := newTestExtractor(t)
	digits := regexp.MustCompile(`^\d+$`)
	for _, amt := range []string{"-1 234,5 $", "-0,99 €", "-18 $", "-7.10 £"} {
		text := "SHOP NAME\n" + amt + "\n01 january 2025 00:00:00\nCard *1\n1234567890"
		tx, err := ex.Extract(text)
		if err != nil {
			t.Fatalf("%q: %v", amt, err)
		}
		if strings.ContainsAny(tx.Amount, "+-") {
			t.Fatalf("%q: signed amount %q", amt, tx.Amount)
		}
		d, err := tx.AmountDecimal()
		if err != nil || !d.IsPositive() {
			t.Fatalf("%q: amount %q not positive (%v)", amt, tx.Amount, err)
		}
		if !digits.MatchString(tx.TransactionNumber) {
			t.Fatalf("%q: txn %q", amt, tx.TransactionNumber)
		}
	}
}

func TestCleanDate(t *testing.T) {
	cases := map[string]string{
		"09 november's 2025 15:37:39": "09 november 2025 15:37:39",
		"O9 november 2025 15:37:39":   "09 november 2025 15:37:39",
		"009 november  2025 15:37:39": "09 november 2025 15:37:39",
		"9 November’s 2025 01:02:03":  "9 November 2025 01:02:03",
	}
	for in, want := range cases {
		if got := cleanDate(in); got != want {
			t.Errorf("cleanDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("  a \r\n\n b\n   \nc")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestFindMCCNextLine(t *testing.T) {
	if v, ok := findMCC([]string{"MCC", "5411"}); !ok || v != "5411" {
		t.Fatalf("got %q %v", v, ok)
	}
	if _, ok := findMCC([]string{"MCC", "abc"}); ok {
		t.Fatalf("expected no mcc")
	}
}

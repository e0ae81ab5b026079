package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"receipt2ledger/models"
)

type fakeSource struct {
	rows     []models.Receipt
	from, to time.Time
}

func (f *fakeSource) UserByName(username string) (*models.User, error) {
	if username != "alice" {
		return nil, errors.New("not found")
	}
	return &models.User{ID: 4, Username: username}, nil
}

func (f *fakeSource) ReceiptsBetween(userID uint, from, to time.Time) ([]models.Receipt, error) {
	f.from, f.to = from, to
	return f.rows, nil
}

func receiptRow(code, amount string) models.Receipt {
	return models.Receipt{CurrencyCode: code, Amount: decimal.RequireFromString(amount)}
}

func TestSummarizeGroupsByCurrency(t *testing.T) {
	got := Summarize([]models.Receipt{
		receiptRow("USD", "18.29"),
		receiptRow("KZT", "8021.60"),
		receiptRow("USD", "1.71"),
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 currencies got %d", len(got))
	}
	if got[0].Code != "KZT" || got[1].Code != "USD" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[1].Count != 2 || got[1].Total.StringFixed(2) != "20.00" {
		t.Fatalf("usd total %+v", got[1])
	}
}

func TestMonthlyUsesZoneBounds(t *testing.T) {
	zone := time.FixedZone("ALMT", 5*3600)
	src := &fakeSource{rows: []models.Receipt{receiptRow("USD", "5")}}
	rep, err := Monthly(src, "alice", "2025-11", zone)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	wantFrom := time.Date(2025, 11, 1, 0, 0, 0, 0, zone)
	if !src.from.Equal(wantFrom) || !src.to.Equal(wantFrom.AddDate(0, 1, 0)) {
		t.Fatalf("bounds %v - %v", src.from, src.to)
	}
	var buf bytes.Buffer
	rep.Write(&buf, false)
	if !strings.Contains(buf.String(), "USD records=1 total=5.00") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestMonthlyErrors(t *testing.T) {
	if _, err := Monthly(&fakeSource{}, "bob", "2025-11", nil); err == nil {
		t.Fatalf("expected unknown user error")
	}
	if _, err := Monthly(&fakeSource{}, "alice", "11/2025", nil); err == nil {
		t.Fatalf("expected month format error")
	}
}

package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"receipt2ledger/models"
)

// Source is the part of the store the report reads.
type Source interface {
	UserByName(username string) (*models.User, error)
	ReceiptsBetween(userID uint, from, to time.Time) ([]models.Receipt, error)
}

// CurrencyTotal sums one currency's receipts.
type CurrencyTotal struct {
	Code  string
	Count int
	Total decimal.Decimal
}

type Report struct {
	Username string
	Month    string
	Zone     *time.Location
	Totals   []CurrencyTotal
	Rows     []models.Receipt
}

// MonthBounds returns [start, end) of month ("YYYY-MM") in zone.
func MonthBounds(month string, zone *time.Location) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01", month, zone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, err)
	}
	return t, t.AddDate(0, 1, 0), nil
}

// Monthly builds the report for username. Month boundaries follow the zone
// the bank prints dates in, so a purchase lands in the month shown on screen.
func Monthly(src Source, username, month string, zone *time.Location) (*Report, error) {
	if zone == nil {
		zone = time.UTC
	}
	user, err := src.UserByName(username)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}
	start, end, err := MonthBounds(month, zone)
	if err != nil {
		return nil, err
	}
	rows, err := src.ReceiptsBetween(user.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &Report{Username: user.Username, Month: month, Zone: zone, Totals: Summarize(rows), Rows: rows}, nil
}

// Summarize groups rows by currency code, sorted by code.
func Summarize(rows []models.Receipt) []CurrencyTotal {
	byCode := map[string]*CurrencyTotal{}
	for _, r := range rows {
		ct, ok := byCode[r.CurrencyCode]
		if !ok {
			ct = &CurrencyTotal{Code: r.CurrencyCode}
			byCode[r.CurrencyCode] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(r.Amount)
	}
	out := make([]CurrencyTotal, 0, len(byCode))
	for _, ct := range byCode {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Write prints the report; rows are listed when list is set.
func (r *Report) Write(w io.Writer, list bool) {
	fmt.Fprintf(w, "Report for user=%s month=%s (%s):\n", r.Username, r.Month, r.Zone)
	if len(r.Totals) == 0 {
		fmt.Fprintln(w, "  no receipts")
	}
	for _, t := range r.Totals {
		fmt.Fprintf(w, "  %s records=%d total=%s\n", t.Code, t.Count, t.Total.StringFixed(2))
	}
	if !list {
		return
	}
	for _, row := range r.Rows {
		fmt.Fprintf(w, "%d|%s|%s|%s %s|%s|%s\n", row.ID, row.TransactionNumber,
			row.OccurredAt.In(r.Zone).Format(time.DateTime), row.Amount.StringFixed(2), row.CurrencyCode,
			row.Description, row.LedgerStatus)
	}
}

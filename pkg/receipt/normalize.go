package receipt

import (
	"time"

	"github.com/rs/zerolog"
)

// CurrencyMapper resolves printed currency symbols to ISO 4217 codes.
type CurrencyMapper struct {
	symbols  map[string]string
	fallback string
	log      zerolog.Logger
}

// NewCurrencyMapper copies symbols; fallback is returned for anything not in it.
func NewCurrencyMapper(symbols map[string]string, fallback string, log zerolog.Logger) *CurrencyMapper {
	m := make(map[string]string, len(symbols))
	for k, v := range symbols {
		m[k] = v
	}
	if fallback == "" {
		fallback = "USD"
	}
	return &CurrencyMapper{symbols: m, fallback: fallback, log: log}
}

// Map never fails; known is false when the fallback code was used.
func (c *CurrencyMapper) Map(symbol string) (code string, known bool) {
	if code, ok := c.symbols[symbol]; ok {
		return code, true
	}
	c.log.Warn().Str("symbol", symbol).Str("code", c.fallback).Msg("unknown currency symbol")
	return c.fallback, false
}

const LedgerLayout = "2006-01-02T15:04:05"

// LedgerClock renders transaction times the way the ledger expects them:
// UTC wall clock shifted by Skew, without an offset suffix.
type LedgerClock struct {
	Skew time.Duration
}

func (c LedgerClock) Timestamp(t time.Time) string {
	return applyLedgerSkew(t.UTC(), c.Skew).Format(LedgerLayout)
}

// applyLedgerSkew compensates the ledger's own timezone handling; the
// amount is taken from configuration and may be zero.
func applyLedgerSkew(t time.Time, skew time.Duration) time.Time {
	return t.Add(skew)
}

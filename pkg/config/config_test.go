package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SourceZone.String() != "Asia/Almaty" {
		t.Fatalf("expected Asia/Almaty got %s", cfg.SourceZone)
	}
	if cfg.LedgerSkew != time.Hour {
		t.Fatalf("expected 1h skew got %v", cfg.LedgerSkew)
	}
	if cfg.OCR.PageSegMode != 11 || cfg.OCR.EngineMode != 1 || cfg.OCR.Language != "eng" {
		t.Fatalf("unexpected OCR defaults: %+v", cfg.OCR)
	}
	if cfg.Image.CropTop != 0.10 || cfg.Image.Scale != 2.0 || cfg.Image.Binarize {
		t.Fatalf("unexpected image defaults: %+v", cfg.Image)
	}
	if cfg.CurrencySymbols["T"] != "KZT" || cfg.CurrencySymbols["RM"] != "MYR" {
		t.Fatalf("unexpected symbol table: %v", cfg.CurrencySymbols)
	}
	if cfg.DefaultCurrency != "USD" || cfg.ForeignCurrency != "MYR" {
		t.Fatalf("unexpected currencies: %s %s", cfg.DefaultCurrency, cfg.ForeignCurrency)
	}
	if cfg.Workers <= 0 {
		t.Fatalf("workers must be positive, got %d", cfg.Workers)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"LEDGER_SKEW":      "0s",
		"SOURCE_TIMEZONE":  "UTC",
		"OCR_BINARIZE":     "yes",
		"OCR_SCALE":        "1.5",
		"CURRENCY_SYMBOLS": "฿=thb, $=CAD",
		"DEFAULT_CURRENCY": "eur",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LedgerSkew != 0 {
		t.Fatalf("expected zero skew got %v", cfg.LedgerSkew)
	}
	if !cfg.Image.Binarize || cfg.Image.Scale != 1.5 {
		t.Fatalf("unexpected image config: %+v", cfg.Image)
	}
	if cfg.CurrencySymbols["฿"] != "THB" || cfg.CurrencySymbols["$"] != "CAD" || cfg.CurrencySymbols["€"] != "EUR" {
		t.Fatalf("unexpected symbol table: %v", cfg.CurrencySymbols)
	}
	if cfg.DefaultCurrency != "EUR" {
		t.Fatalf("expected EUR got %s", cfg.DefaultCurrency)
	}
}

func TestFromEnvCollectsErrors(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{
		"OCR_PSM":         "block",
		"SOURCE_TIMEZONE": "Nowhere/Land",
		"OCR_CROP_TOP":    "1.5",
	}))
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"OCR_PSM", "SOURCE_TIMEZONE", "OCR_CROP_TOP"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseCurrencySymbolsRejectsBadPairs(t *testing.T) {
	if _, err := ParseCurrencySymbols("$USD", nil); err == nil {
		t.Fatalf("expected error for missing '='")
	}
	if _, err := ParseCurrencySymbols("$=DOLLAR", nil); err == nil {
		t.Fatalf("expected error for non-ISO code")
	}
}

func TestParseCurrencySymbolsReplaceMode(t *testing.T) {
	got, err := ParseCurrencySymbols("=$=USD, €=eur", DefaultCurrencySymbols())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got["$"] != "USD" || got["€"] != "EUR" {
		t.Fatalf("expected only $ and €, got %v", got)
	}
	empty, err := ParseCurrencySymbols("=", DefaultCurrencySymbols())
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty table, got %v %v", empty, err)
	}
}

func TestFromEnvBinarizeThresholdReportedOnce(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"OCR_BINARIZE_THRESHOLD": "dark"}))
	if err == nil {
		t.Fatalf("expected error")
	}
	if n := strings.Count(err.Error(), "OCR_BINARIZE_THRESHOLD"); n != 1 {
		t.Fatalf("threshold error reported %d times: %q", n, err)
	}
	_, err = FromEnv(envMap(map[string]string{"OCR_BINARIZE_THRESHOLD": "300"}))
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected range error got %v", err)
	}
}

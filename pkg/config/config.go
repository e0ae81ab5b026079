package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // source zone must resolve in minimal containers

	"github.com/joho/godotenv"
)

// Config holds process-wide settings. Everything is read from the environment,
// optionally seeded from a local .env file.
type Config struct {
	DBDSN         string
	DBAutoMigrate bool
	JWTSecret     string
	HTTPAddr      string
	UploadBase    string
	LogLevel      string

	OCR   OCR
	Image Image

	SourceZone      *time.Location
	LedgerSkew      time.Duration
	CurrencySymbols map[string]string
	DefaultCurrency string
	ForeignCurrency string

	Workers    int
	OCRTimeout time.Duration
}

// OCR is the static tesseract configuration.
type OCR struct {
	TessdataPrefix string
	Language       string
	PageSegMode    int
	EngineMode     int
}

// Image holds the conditioning toggles.
type Image struct {
	CropTop           float64
	Scale             float64
	Grayscale         bool
	Contrast          float64
	Binarize          bool
	BinarizeThreshold uint8
}

// DefaultCurrencySymbols is the symbol table used when CURRENCY_SYMBOLS does not override it.
func DefaultCurrencySymbols() map[string]string {
	return map[string]string{
		"$":  "USD",
		"€":  "EUR",
		"£":  "GBP",
		"¥":  "JPY",
		"₽":  "RUB",
		"₸":  "KZT",
		"T":  "KZT", // OCR reads ₸ as T
		"RM": "MYR",
	}
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // no .env is fine; existing vars win
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Missing keys take defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	threshold := p.integer("OCR_BINARIZE_THRESHOLD", 140)
	cfg := &Config{
		DBDSN:         getenv("DB_DSN"),
		DBAutoMigrate: p.boolean("DB_AUTO_MIGRATE", true),
		JWTSecret:     p.str("JWT_SECRET", "dev-insecure-secret-change"),
		HTTPAddr:      p.str("HTTP_ADDR", ":8081"),
		UploadBase:    p.str("UPLOAD_BASE", "uploads"),
		LogLevel:      p.str("LOG_LEVEL", "info"),
		OCR: OCR{
			TessdataPrefix: p.str("TESSDATA_PREFIX", "/usr/share/tesseract-ocr/5/tessdata/"),
			Language:       p.str("OCR_LANGUAGE", "eng"),
			PageSegMode:    p.integer("OCR_PSM", 11),
			EngineMode:     p.integer("OCR_OEM", 1),
		},
		Image: Image{
			CropTop:           p.float("OCR_CROP_TOP", 0.10),
			Scale:             p.float("OCR_SCALE", 2.0),
			Grayscale:         p.boolean("OCR_GRAYSCALE", true),
			Contrast:          p.float("OCR_CONTRAST", 1.3),
			Binarize:          p.boolean("OCR_BINARIZE", false),
			BinarizeThreshold: uint8(threshold),
		},
		LedgerSkew:      p.duration("LEDGER_SKEW", time.Hour),
		DefaultCurrency: strings.ToUpper(p.str("DEFAULT_CURRENCY", "USD")),
		ForeignCurrency: strings.ToUpper(p.str("FOREIGN_CURRENCY", "MYR")),
		Workers:         p.integer("OCR_WORKERS", runtime.NumCPU()),
		OCRTimeout:      p.duration("OCR_TIMEOUT", 30*time.Second),
	}

	zone := p.str("SOURCE_TIMEZONE", "Asia/Almaty")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("SOURCE_TIMEZONE %q: %v", zone, err))
	}
	cfg.SourceZone = loc

	symbols, err := ParseCurrencySymbols(getenv("CURRENCY_SYMBOLS"), DefaultCurrencySymbols())
	if err != nil {
		p.errs = append(p.errs, err.Error())
	}
	cfg.CurrencySymbols = symbols

	if threshold < 0 || threshold > 255 {
		p.errs = append(p.errs, fmt.Sprintf("OCR_BINARIZE_THRESHOLD out of range: %d", threshold))
	}
	if cfg.Image.CropTop < 0 || cfg.Image.CropTop >= 1 {
		p.errs = append(p.errs, fmt.Sprintf("OCR_CROP_TOP must be in [0,1): %v", cfg.Image.CropTop))
	}
	if cfg.Image.Scale <= 0 {
		p.errs = append(p.errs, fmt.Sprintf("OCR_SCALE must be positive: %v", cfg.Image.Scale))
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(p.errs, "; "))
	}
	return cfg, nil
}

// ParseCurrencySymbols merges "sym=ISO,sym=ISO" pairs over base.
// An empty value returns a copy of base. A leading '=' replaces base
// entirely: "=$=USD,€=EUR" yields exactly those two symbols.
func ParseCurrencySymbols(raw string, base map[string]string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "=") {
		raw = strings.TrimSpace(raw[1:])
		base = nil
	}
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.LastIndexByte(pair, '=')
		if eq <= 0 || eq == len(pair)-1 {
			return nil, fmt.Errorf("CURRENCY_SYMBOLS: bad pair %q", pair)
		}
		sym := strings.TrimSpace(pair[:eq])
		code := strings.ToUpper(strings.TrimSpace(pair[eq+1:]))
		if len(code) != 3 {
			return nil, fmt.Errorf("CURRENCY_SYMBOLS: %q is not an ISO code", code)
		}
		out[sym] = code
	}
	return out, nil
}

type parser struct {
	getenv func(string) string
	errs   []string
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(p.getenv(key))) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		p.errs = append(p.errs, fmt.Sprintf("%s: not a boolean", key))
		return def
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

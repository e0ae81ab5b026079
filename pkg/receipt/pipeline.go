package receipt

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/ocr"
)

// Recognizer is the OCR step. *ocr.Engine satisfies it.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// Result is a ledger-ready record.
type Result struct {
	Transaction         *ExtractedTransaction `json:"transaction"`
	CurrencyCode        string                `json:"currency_code"`
	ForeignCurrencyCode string                `json:"foreign_currency_code,omitempty"`
	LedgerDate          string                `json:"ledger_date"`
	Warnings            []string              `json:"warnings,omitempty"`
	// Text is the raw recognized text, kept for diagnostics.
	Text string `json:"-"`
}

// Pipeline wires conditioning, recognition, extraction and normalization.
// It holds no per-call state.
type Pipeline struct {
	Conditioner     *ocr.Conditioner
	Engine          Recognizer
	Extractor       *Extractor
	Currency        *CurrencyMapper
	Clock           LedgerClock
	ForeignCurrency string
	Log             zerolog.Logger
}

// NewPipeline builds a Pipeline from configuration around an existing engine.
func NewPipeline(cfg *config.Config, engine Recognizer, log zerolog.Logger) *Pipeline {
	cond := ocr.NewConditioner(ocr.ConditionOptions{
		CropTop:           cfg.Image.CropTop,
		Scale:             cfg.Image.Scale,
		Grayscale:         cfg.Image.Grayscale,
		Contrast:          cfg.Image.Contrast,
		Binarize:          cfg.Image.Binarize,
		BinarizeThreshold: cfg.Image.BinarizeThreshold,
	})
	cond.Warnf = func(format string, args ...any) { log.Warn().Msgf(format, args...) }
	return &Pipeline{
		Conditioner:     cond,
		Engine:          engine,
		Extractor:       NewExtractor(cfg.SourceZone, log),
		Currency:        NewCurrencyMapper(cfg.CurrencySymbols, cfg.DefaultCurrency, log),
		Clock:           LedgerClock{Skew: cfg.LedgerSkew},
		ForeignCurrency: cfg.ForeignCurrency,
		Log:             log,
	}
}

// Recognize conditions raw and runs OCR on it.
func (p *Pipeline) Recognize(ctx context.Context, raw []byte) (string, error) {
	log := p.logger(ctx)
	img, err := p.Conditioner.Condition(raw)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.Engine.Recognize(img)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ocr.ErrEmptyRecognition
	}
	log.Debug().Int("chars", len(text)).Str("text", ocr.Snippet(text, 200)).Msg("ocr done")
	return text, nil
}

// Process runs the whole chain on image bytes.
func (p *Pipeline) Process(ctx context.Context, raw []byte) (*Result, error) {
	text, err := p.Recognize(ctx, raw)
	if err != nil {
		return nil, err
	}
	return p.ProcessText(ctx, text)
}

// ProcessText extracts and normalizes already recognized text.
func (p *Pipeline) ProcessText(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ocr.ErrEmptyRecognition
	}
	ex := *p.Extractor
	ex.Log = p.logger(ctx)
	tx, err := ex.Extract(text)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Transaction: tx,
		LedgerDate:  p.Clock.Timestamp(tx.DateTime),
		Text:        text,
	}
	code, known := p.Currency.Map(tx.CurrencySymbol)
	res.CurrencyCode = code
	if !known {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("unknown currency symbol %q, using %s", tx.CurrencySymbol, code))
	}
	if tx.ForeignAmount != "" {
		res.ForeignCurrencyCode = p.ForeignCurrency
	}
	return res, nil
}

func (p *Pipeline) logger(ctx context.Context) zerolog.Logger {
	if l := logger.FromContext(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return p.Log
}

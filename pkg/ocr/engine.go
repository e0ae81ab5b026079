package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// EngineConfig is the static tesseract setup, fixed for the life of an Engine.
type EngineConfig struct {
	TessdataPrefix string
	Language       string
	PageSegMode    int // 11 = sparse text
	EngineMode     int // 1 = LSTM only; <0 keeps tesseract's default
}

// Engine wraps a single tesseract client. The model is loaded once in
// NewEngine; Recognize is safe for concurrent use and serializes calls
// because the underlying binding is not.
type Engine struct {
	mu       sync.Mutex
	client   *gosseract.Client
	confPath string
}

// NewEngine initializes tesseract and performs a warm-up recognition so that
// missing tessdata or a bad language surfaces here rather than on the first receipt.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	client := gosseract.NewClient()
	e := &Engine{client: client}
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			e.Close()
			return nil, fmt.Errorf("tessdata prefix: %w", err)
		}
	}
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		e.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		e.Close()
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	// OEM is an init-only variable; tesseract only accepts it through a config file.
	if cfg.EngineMode >= 0 {
		f, err := os.CreateTemp("", "ocr-oem-*.cfg")
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("engine mode config: %w", err)
		}
		_, werr := fmt.Fprintf(f, "tessedit_ocr_engine_mode %d\n", cfg.EngineMode)
		_ = f.Close()
		e.confPath = f.Name()
		if werr != nil {
			e.Close()
			return nil, fmt.Errorf("engine mode config: %w", werr)
		}
		if err := client.SetConfigFile(e.confPath); err != nil {
			e.Close()
			return nil, fmt.Errorf("engine mode config: %w", err)
		}
	}
	if _, err := e.Recognize(imaging.New(32, 32, color.White)); err != nil {
		e.Close()
		return nil, fmt.Errorf("tesseract init: %w", err)
	}
	return e, nil
}

// Recognize returns the text tesseract finds in img, possibly empty.
func (e *Engine) Recognize(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("%w: empty bitmap", ErrImageDecode)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: encode png: %v", ErrImageDecode, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", fmt.Errorf("ocr engine closed")
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the tesseract handle. Safe to call twice.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.client != nil {
		err = e.client.Close()
		e.client = nil
	}
	if e.confPath != "" {
		_ = os.Remove(e.confPath)
		e.confPath = ""
	}
	return err
}

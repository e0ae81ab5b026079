// Command cmd_watch scans a directory of notification screenshots, records
// every recognized transaction for a user and optionally keeps watching.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rs/zerolog"

	"receipt2ledger/models"
	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/ocr"
	"receipt2ledger/pkg/receipt"
	"receipt2ledger/pkg/seen"
	"receipt2ledger/pkg/store"
	"receipt2ledger/process/watcher"
)

func main() {
	fs := ff.NewFlagSet("cmd_watch")
	var (
		dir          = fs.StringLong("dir", "inbox", "directory to scan for notification screenshots")
		processedDir = fs.StringLong("processed-dir", "processed", "where recognized files are moved (empty keeps them)")
		username     = fs.StringLong("user", "admin", "user the receipts are recorded for")
		seenDB       = fs.StringLong("seen-db", "seen.db", "bbolt file remembering processed images")
		workers      = fs.IntLong("workers", 0, "worker pool size (default OCR_WORKERS)")
		maxKB        = fs.IntLong("max-kb", 1000, "shrink processed images above this size")
		debounceMS   = fs.IntLong("debounce-ms", 300, "quiet period before a new file is picked up")
		watch        = fs.BoolLong("watch", "keep watching the directory for new files")
		dryRun       = fs.BoolLong("dry-run", "print records instead of writing to the database")
		retryFailed  = fs.BoolLong("retry-failed", "process files that failed before")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPT_WATCH")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	if *workers <= 0 {
		*workers = cfg.Workers
	}

	engine, err := ocr.NewEngine(ocr.EngineConfig{
		TessdataPrefix: cfg.OCR.TessdataPrefix,
		Language:       cfg.OCR.Language,
		PageSegMode:    cfg.OCR.PageSegMode,
		EngineMode:     cfg.OCR.EngineMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ocr engine")
	}
	defer engine.Close()
	pipeline := receipt.NewPipeline(cfg, engine, log)

	var rec watcher.Recorder
	if *dryRun {
		rec = &printRecorder{enc: json.NewEncoder(os.Stdout)}
		*processedDir = ""
	} else {
		st, err := store.Open(cfg.DBDSN, log)
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		user, err := st.UserByName(*username)
		if err != nil {
			log.Fatal().Err(err).Str("user", *username).Msg("user lookup")
		}
		rec = &storeRecorder{store: st, user: user, dir: *dir, processedDir: *processedDir, log: log}
	}

	idx, err := seen.Open(*seenDB)
	if err != nil {
		log.Fatal().Err(err).Msg("seen index")
	}
	defer idx.Close()

	w := watcher.New(watcher.Options{
		Dir:               *dir,
		ProcessedDir:      *processedDir,
		Workers:           *workers,
		RetryFailed:       *retryFailed,
		MaxProcessedBytes: int64(*maxKB) * 1000,
		Debounce:          time.Duration(*debounceMS) * time.Millisecond,
	}, pipeline, idx, rec, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := w.Scan(ctx); err != nil {
		log.Error().Err(err).Msg("scan")
	}
	if *watch && ctx.Err() == nil {
		if err := w.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("watch failed")
		}
	}
	st := w.Stats()
	log.Info().Int64("processed", st.Processed).Int64("duplicates", st.Duplicates).
		Int64("skipped", st.Skipped).Int64("failed", st.Failed).Msg("done")
}

// storeRecorder writes an upload row per file and a receipt per transaction.
type storeRecorder struct {
	store        *store.Store
	user         *models.User
	dir          string
	processedDir string
	log          zerolog.Logger
}

func (r *storeRecorder) upload(name string, raw []byte) *models.Upload {
	storePath := filepath.Join(r.dir, name)
	if r.processedDir != "" {
		storePath = filepath.Join(r.processedDir, name)
	}
	return &models.Upload{
		FileName:    name,
		StorePath:   filepath.ToSlash(storePath),
		Digest:      seen.Digest(raw),
		UserID:      r.user.ID,
		ContentType: watcher.MimeFromExt(name),
	}
}

func (r *storeRecorder) Record(_ context.Context, name string, raw []byte, res *receipt.Result) (bool, error) {
	up := r.upload(name, raw)
	if err := r.store.SaveUpload(up); err != nil {
		return false, fmt.Errorf("save upload: %w", err)
	}
	_, dup, err := r.store.SaveReceipt(r.user.ID, &up.ID, res)
	return dup, err
}

func (r *storeRecorder) RecordFailure(_ context.Context, name string, raw []byte, cause error) {
	up := r.upload(name, raw)
	up.StorePath = filepath.ToSlash(filepath.Join(r.dir, name))
	up.Failed = true
	up.FailedReason = ocr.Snippet(cause.Error(), 200)
	if err := r.store.SaveUpload(up); err != nil {
		r.log.Error().Err(err).Str("file", name).Msg("save failed upload")
	}
}

// printRecorder is the --dry-run sink.
type printRecorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (p *printRecorder) Record(_ context.Context, name string, _ []byte, res *receipt.Result) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return false, p.enc.Encode(map[string]any{"file": name, "result": res})
}

func (p *printRecorder) RecordFailure(_ context.Context, name string, _ []byte, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(map[string]any{"file": name, "error": receipt.UserMessage(cause), "detail": cause.Error()})
}

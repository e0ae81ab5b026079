// Package watcher feeds notification screenshots dropped into a directory
// through the receipt pipeline.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"receipt2ledger/pkg/receipt"
	"receipt2ledger/pkg/seen"
)

// Recorder persists outcomes. Record reports whether the transaction was
// already known.
type Recorder interface {
	Record(ctx context.Context, name string, raw []byte, res *receipt.Result) (duplicate bool, err error)
	RecordFailure(ctx context.Context, name string, raw []byte, cause error)
}

var errWatcherClosed = errors.New("fsnotify watcher closed")

type Options struct {
	Dir          string
	ProcessedDir string // "" leaves files in place
	Workers      int
	RetryFailed  bool
	// MaxProcessedBytes triggers a shrink of images moved to ProcessedDir.
	MaxProcessedBytes int64
	Debounce          time.Duration
}

// Stats counts per-file outcomes.
type Stats struct {
	Processed  int64
	Duplicates int64
	Skipped    int64
	Failed     int64
}

type Watcher struct {
	opts  Options
	proc  receipt.Processor
	index *seen.Index
	rec   Recorder
	log   zerolog.Logger

	processed, duplicates, skipped, failed atomic.Int64
}

// New returns a Watcher. index may be nil, in which case every file is processed.
func New(opts Options, proc receipt.Processor, index *seen.Index, rec Recorder, log zerolog.Logger) *Watcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	return &Watcher{opts: opts, proc: proc, index: index, rec: rec, log: log}
}

func (w *Watcher) Stats() Stats {
	return Stats{
		Processed:  w.processed.Load(),
		Duplicates: w.duplicates.Load(),
		Skipped:    w.skipped.Load(),
		Failed:     w.failed.Load(),
	}
}

// Scan processes the files currently in Dir and returns when all are done.
func (w *Watcher) Scan(ctx context.Context) error {
	files, err := listImageFiles(w.opts.Dir)
	if err != nil {
		return err
	}
	w.log.Info().Int("files", len(files)).Int("workers", w.opts.Workers).Str("dir", w.opts.Dir).Msg("scanning")
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, f := range files {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	w.runWorkerPool(ctx, ch)
	return ctx.Err()
}

// Watch processes files created in Dir until ctx is cancelled. A file is
// picked up once it has not changed for the debounce interval.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", w.opts.Dir).Dur("debounce", w.opts.Debounce).Msg("watching")

	fileCh := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.runWorkerPool(ctx, fileCh)
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.opts.Debounce / 2)
	defer ticker.Stop()
	var werr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-fw.Events:
			if !ok {
				werr = errWatcherClosed
				break loop
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if name := filepath.Base(ev.Name); isSupportedExt(name) {
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) >= w.opts.Debounce {
					delete(pending, name)
					select {
					case fileCh <- name:
					case <-ctx.Done():
						break loop
					}
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				werr = errWatcherClosed
				break loop
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
	close(fileCh)
	<-done
	return werr
}

func (w *Watcher) runWorkerPool(ctx context.Context, names <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				if ctx.Err() != nil {
					continue
				}
				w.processFile(ctx, name)
			}
		}()
	}
	wg.Wait()
}

func (w *Watcher) processFile(ctx context.Context, name string) {
	log := w.log.With().Str("file", name).Logger()
	path := filepath.Join(w.opts.Dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		// moved away between listing and reading
		log.Debug().Err(err).Msg("read failed")
		return
	}
	digest := seen.Digest(raw)
	if w.index != nil {
		skip, err := w.index.Seen(digest, w.opts.RetryFailed)
		if err != nil {
			log.Error().Err(err).Msg("seen index lookup")
			return
		}
		if skip {
			w.skipped.Add(1)
			log.Debug().Msg("already processed")
			return
		}
	}

	res, err := w.proc.Process(ctx, raw)
	if err != nil {
		w.failed.Add(1)
		log.Warn().Err(err).Msg("receipt not recognized")
		if w.rec != nil {
			w.rec.RecordFailure(ctx, name, raw, err)
		}
		if errors.Is(err, receipt.ErrOCRUnavailable) {
			return
		}
		w.mark(log, digest, seen.Entry{Path: name, Failed: true, Reason: err.Error()})
		return
	}

	dup := false
	if w.rec != nil {
		dup, err = w.rec.Record(ctx, name, raw, res)
		if err != nil {
			w.failed.Add(1)
			log.Error().Err(err).Msg("record receipt")
			return
		}
	}
	if dup {
		w.duplicates.Add(1)
	} else {
		w.processed.Add(1)
	}
	txn := res.Transaction.TransactionNumber
	log.Info().Str("txn", txn).Str("amount", res.Transaction.Amount).Str("currency", res.CurrencyCode).
		Bool("duplicate", dup).Msg("receipt recorded")
	w.mark(log, digest, seen.Entry{Path: name, TransactionNumber: txn})

	if w.opts.ProcessedDir != "" {
		dst, err := moveToProcessed(path, w.opts.ProcessedDir, w.opts.MaxProcessedBytes)
		if err != nil {
			log.Warn().Err(err).Msg("failed to move processed file")
			return
		}
		log.Debug().Str("dst", dst).Msg("moved")
	}
}

func (w *Watcher) mark(log zerolog.Logger, digest string, e seen.Entry) {
	if w.index == nil {
		return
	}
	if err := w.index.Mark(digest, e); err != nil {
		log.Error().Err(err).Msg("seen index update")
	}
}

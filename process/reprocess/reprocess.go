// Package reprocess retries uploads whose recognition failed, typically after
// the conditioning or extraction rules were tuned.
package reprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"receipt2ledger/models"
	"receipt2ledger/pkg/receipt"
)

// Store is the persistence the retry needs.
type Store interface {
	FailedUploads(userID uint, limit int) ([]models.Upload, error)
	SaveReceipt(userID uint, uploadID *uint, res *receipt.Result) (*models.Receipt, bool, error)
	ClearUploadFailure(id uint) error
	MarkUploadFailed(id uint, reason string) error
}

type Options struct {
	UploadBase string
	UserID     uint // 0 = all users
	Limit      int
	DryRun     bool
}

type Summary struct {
	Tried, Recovered, StillFailing, Missing int
}

// Run re-runs proc over failed uploads and records the ones that now succeed.
func Run(ctx context.Context, st Store, proc receipt.Processor, opts Options, log zerolog.Logger) (Summary, error) {
	var sum Summary
	ups, err := st.FailedUploads(opts.UserID, opts.Limit)
	if err != nil {
		return sum, fmt.Errorf("list failed uploads: %w", err)
	}
	for _, up := range ups {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		l := log.With().Uint("upload_id", up.ID).Str("file", up.FileName).Logger()
		raw, err := os.ReadFile(resolve(opts.UploadBase, up.StorePath))
		if err != nil {
			sum.Missing++
			l.Warn().Err(err).Msg("stored file missing")
			continue
		}
		sum.Tried++
		res, err := proc.Process(ctx, raw)
		if err != nil {
			sum.StillFailing++
			l.Info().Err(err).Msg("still not recognized")
			if !opts.DryRun {
				if merr := st.MarkUploadFailed(up.ID, err.Error()); merr != nil {
					l.Error().Err(merr).Msg("update failure reason")
				}
			}
			continue
		}
		sum.Recovered++
		l.Info().Str("txn", res.Transaction.TransactionNumber).Bool("dry_run", opts.DryRun).Msg("recovered")
		if opts.DryRun {
			continue
		}
		id := up.ID
		if _, _, err := st.SaveReceipt(up.UserID, &id, res); err != nil {
			return sum, fmt.Errorf("save receipt for upload %d: %w", up.ID, err)
		}
		if err := st.ClearUploadFailure(up.ID); err != nil {
			l.Error().Err(err).Msg("clear failure flag")
		}
	}
	return sum, nil
}

// resolve maps a stored path to disk. HTTP uploads are relative to the
// upload base; watch-folder uploads carry their own directory.
func resolve(base, storePath string) string {
	p := filepath.FromSlash(storePath)
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	if _, err := os.Stat(filepath.Join(base, p)); err == nil {
		return filepath.Join(base, p)
	}
	return p
}

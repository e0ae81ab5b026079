package main

import (
	"os"

	"github.com/rs/zerolog"

	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/store"
)

// initDB connects, optionally migrates, seeds roles and prepares the upload dir.
// Migration problems are logged and do not stop startup.
func initDB(cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	st, err := store.Open(cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := st.Migrate(); err != nil {
			log.Warn().Err(err).Msg("migration incomplete")
		}
	}
	if err := st.Seed(); err != nil {
		return nil, err
	}
	ensureUploadBase(cfg.UploadBase, log)
	return st, nil
}

func ensureUploadBase(base string, log zerolog.Logger) {
	if err := os.MkdirAll(base, 0755); err != nil {
		log.Warn().Err(err).Str("dir", base).Msg("failed to create upload base dir")
	}
}

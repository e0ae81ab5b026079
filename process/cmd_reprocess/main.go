package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/ocr"
	"receipt2ledger/pkg/receipt"
	"receipt2ledger/pkg/store"
	"receipt2ledger/process/reprocess"
)

func main() {
	fs := ff.NewFlagSet("cmd_reprocess")
	var (
		username = fs.StringLong("user", "", "only retry this user's uploads")
		limit    = fs.IntLong("limit", 0, "retry at most this many uploads")
		dryRun   = fs.BoolLong("dry-run", "report what would be recovered without writing")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPT_REPROCESS")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	st, err := store.Open(cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	var userID uint
	if *username != "" {
		u, err := st.UserByName(*username)
		if err != nil {
			log.Fatal().Err(err).Str("user", *username).Msg("user lookup")
		}
		userID = u.ID
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sum, err := reprocess.Run(ctx, st, receipt.NewPipeline(cfg, engine, log), reprocess.Options{
		UploadBase: cfg.UploadBase,
		UserID:     userID,
		Limit:      *limit,
		DryRun:     *dryRun,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("reprocess")
	}
	fmt.Printf("tried=%d recovered=%d still_failing=%d missing=%d\n", sum.Tried, sum.Recovered, sum.StillFailing, sum.Missing)
}

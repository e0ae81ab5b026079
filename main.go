package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/ocr"
	"receipt2ledger/pkg/receipt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	// `receipt2ledger migrate` runs AutoMigrate and seeding then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		cfg.DBAutoMigrate = true
		if _, err := initDB(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		fmt.Println("migration and seeding completed")
		return
	}

	st, err := initDB(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
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
	pool := receipt.NewPool(pipeline, cfg.Workers, cfg.OCRTimeout)
	defer pool.Close()

	s := newServer(cfg, st, pipeline, pool, log)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	s.setupRoutes(r)

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Int("workers", cfg.Workers).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OCRTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

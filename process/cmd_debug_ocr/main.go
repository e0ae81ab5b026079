// Command cmd_debug_ocr runs the receipt pipeline on one file and prints
// what each stage produced. A .txt file is treated as an OCR dump and only
// goes through extraction.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/ocr"
	"receipt2ledger/pkg/receipt"
)

func main() {
	fs := ff.NewFlagSet("cmd_debug_ocr")
	var (
		file      = fs.StringLong("file", "", "image or .txt OCR dump")
		saveImage = fs.StringLong("save-conditioned", "", "write the conditioned bitmap here (png/jpg)")
		showText  = fs.BoolLong("text", "print the recognized text")
	)
	if err := ff.Parse(fs, os.Args[1:]); err != nil || *file == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("read file")
	}

	var (
		pipeline *receipt.Pipeline
		text     string
	)
	if strings.EqualFold(filepath.Ext(*file), ".txt") {
		pipeline = receipt.NewPipeline(cfg, nil, log)
		text = string(raw)
	} else {
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
		pipeline = receipt.NewPipeline(cfg, engine, log)

		if *saveImage != "" {
			img, err := pipeline.Conditioner.Condition(raw)
			if err != nil {
				log.Fatal().Err(err).Msg("condition")
			}
			if err := imaging.Save(img, *saveImage); err != nil {
				log.Fatal().Err(err).Msg("save conditioned image")
			}
			fmt.Printf("conditioned %dx%d -> %s\n", img.Bounds().Dx(), img.Bounds().Dy(), *saveImage)
		}
		text, err = pipeline.Recognize(ctx, raw)
		if err != nil {
			fmt.Printf("error: %s (%v)\n", receipt.UserMessage(err), err)
			os.Exit(1)
		}
	}

	if *showText {
		fmt.Println("--- text ---")
		for i, l := range receipt.SplitLines(text) {
			fmt.Printf("%3d| %s\n", i, l)
		}
		fmt.Println("------------")
	}
	res, err := pipeline.ProcessText(ctx, text)
	if err != nil {
		fmt.Printf("error: %s (%v)\n", receipt.UserMessage(err), err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rs/zerolog"

	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/store"
	"receipt2ledger/process/report"
)

func main() {
	fs := ff.NewFlagSet("cmd_report")
	var (
		username = fs.StringLong("username", "admin", "username to report for")
		month    = fs.StringLong("month", time.Now().Format("2006-01"), "month to report (YYYY-MM)")
		list     = fs.BoolLong("list", "list matching rows")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPT_REPORT")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.DBDSN, zerolog.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	rep, err := report.Monthly(st, *username, *month, cfg.SourceZone)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rep.Write(os.Stdout, *list)
}

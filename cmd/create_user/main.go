package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"receipt2ledger/models"
	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/store"
)

func main() {
	fs := ff.NewFlagSet("create_user")
	var (
		role  = fs.StringLong("role", models.RoleUser, "role name (user or administrator)")
		reset = fs.BoolLong("reset-password", "update the password of an existing user")
	)
	if err := ff.Parse(fs, os.Args[1:]); err != nil || len(fs.GetArgs()) != 2 {
		fmt.Fprintln(os.Stderr, "usage: create_user [--role R] [--reset-password] <username> <password>")
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		os.Exit(2)
	}
	username, password := fs.GetArgs()[0], fs.GetArgs()[1]

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
	if err := st.Seed(); err != nil {
		log.Fatal().Err(err).Msg("seed roles")
	}

	u, err := st.CreateUser(username, password, *role)
	switch {
	case errors.Is(err, store.ErrUserExists) && *reset:
		if err := st.SetPassword(username, password); err != nil {
			log.Fatal().Err(err).Msg("reset password")
		}
		fmt.Printf("password updated for %s\n", username)
	case errors.Is(err, store.ErrUserExists):
		fmt.Printf("user %s already exists\n", username)
	case err != nil:
		log.Fatal().Err(err).Msg("failed to create user")
	default:
		fmt.Printf("created user %s id=%d role=%s\n", u.Username, u.ID, u.Role.Name)
	}
}

// Package app wires together configuration, the local store, and the logger
// into a single Deps struct that commands receive at runtime.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/derickschaefer/periodic/internal/config"
	"github.com/derickschaefer/periodic/internal/period"
	"github.com/derickschaefer/periodic/internal/store"
	"github.com/derickschaefer/periodic/internal/validate"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is nil until RequireStore is called.
type Deps struct {
	Config *config.Config
	Store  *store.Store
	Logger *slog.Logger
}

// New builds a Deps from resolved config, logging to stderr.
func New(cfg *config.Config) *Deps {
	return &Deps{
		Config: cfg,
		Logger: NewLogger(os.Stderr, cfg),
	}
}

// NewLogger returns a text logger at the level cfg resolves to.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	lvl, _ := cfg.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// RequireStore opens the bbolt database at Config.DBPath if it is not
// already open.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.DBPath == "" {
		return fmt.Errorf("no database path: set --db, PERIODIC_DB_PATH or db_path in config")
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return err
	}
	d.Logger.Debug("store opened", "path", d.Config.DBPath)
	d.Store = s
	return nil
}

// Close releases the store, if one was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

// NewValidator builds a validator from the configured defaults. Options in
// extra are applied last and override them.
func (d *Deps) NewValidator(resolution, periodicity period.Period, extra ...validate.Option) (*validate.Validator, error) {
	opts := append(d.Config.ValidatorOptions(), validate.WithLogger(d.Logger))
	return validate.New(resolution, periodicity, append(opts, extra...)...)
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/config"
	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
	"github.com/harshilgor/testtaker-sub001/internal/store"
)

// flushTimeout bounds how long one-shot commands wait for queued writes.
const flushTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "testtaker",
	Short: "Practice progress engine",
	Long: "testtaker folds practice attempts into per-skill mastery, daily streaks and " +
		"quests with exactly-once rewards, and serves them over HTTP.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TESTTAKER_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("user", "local", "User id to act on")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(questsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// runtime is everything a command needs, opened from config.
type runtime struct {
	cfg        *config.Config
	log        *logging.Logger
	store      *store.Store
	engine     *reconcile.Engine
	normalizer *attempt.Normalizer
	user       string
}

// open loads config and opens the store and engine.
func open(cmd *cobra.Command) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		log.Debug("config loaded", "path", cfg.Source)
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ec, err := cfg.Reconcile()
	if err != nil {
		st.Close()
		return nil, err
	}
	user, _ := cmd.Flags().GetString("user")
	return &runtime{
		cfg:        cfg,
		log:        log,
		store:      st,
		engine:     reconcile.New(st, ec, log),
		normalizer: attempt.NewNormalizer(ec.Location),
		user:       user,
	}, nil
}

func (r *runtime) Close() {
	r.engine.Close()
	r.store.Close()
	r.log.Sync()
}

// warm loads the user's state and brings it up to date with the store.
func (r *runtime) warm(ctx context.Context) error {
	if err := r.engine.Warm(ctx, r.user); err != nil {
		return err
	}
	return r.engine.Refresh(ctx, r.user)
}

// flush waits for the user's queued writes so nothing is lost on exit.
func (r *runtime) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := r.engine.Flush(ctx, r.user); err != nil {
		return fmt.Errorf("save changes: %w", err)
	}
	return nil
}

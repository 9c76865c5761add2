package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bryan-buckman/crabnews/internal/app"
	"github.com/bryan-buckman/crabnews/internal/config"
	"github.com/bryan-buckman/crabnews/internal/database"
	"github.com/bryan-buckman/crabnews/internal/host"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/rss"
	"github.com/bryan-buckman/crabnews/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	logLevel    string
	accountName string

	flagAddr        string
	flagDB          string
	flagDatabaseURL string
	flagExportDir   string
	flagPrefs       string
	flagConcurrency int

	rootCmd = &cobra.Command{
		Use:          "crabnews",
		Short:        "A feed reader that keeps subscriptions as OPML",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background refresher",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	importCmd = &cobra.Command{
		Use:   "import FILE",
		Short: "Import an OPML file into an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write an account's subscriptions to the export directory",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&flagAddr, "addr", "", "listen address (CRABNEWS_ADDR)")
	pf.StringVar(&flagDB, "db", "", "SQLite database path (CRABNEWS_DB)")
	pf.StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection URL (CRABNEWS_DATABASE_URL)")
	pf.StringVar(&flagExportDir, "export-dir", "", "directory OPML exports are written to (CRABNEWS_EXPORT_DIR)")
	pf.StringVar(&flagPrefs, "preferences", "", "preferences TOML file (CRABNEWS_PREFERENCES)")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "parallel feed fetches (CRABNEWS_FETCH_CONCURRENCY)")

	importCmd.Flags().StringVar(&accountName, "account", "", "account name (defaults to the first account)")
	exportCmd.Flags().StringVar(&accountName, "account", "", "account name (defaults to the first account)")

	rootCmd.AddCommand(serveCmd, importCmd, exportCmd)
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = flagAddr
	}
	if flags.Changed("db") {
		cfg.DBPath = flagDB
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flags.Changed("export-dir") {
		cfg.ExportDir = flagExportDir
	}
	if flags.Changed("preferences") {
		cfg.PreferencesPath = flagPrefs
	}
	if flags.Changed("concurrency") {
		cfg.FetchConcurrency = flagConcurrency
	}
	return cfg, cfg.Validate()
}

// session bundles what every command needs.
type session struct {
	cfg    config.Config
	logger zerolog.Logger
	store  database.Store
	host   *host.Host
	stop   func()
}

// start opens the store, restores state and runs the host loop.
func start(ctx context.Context, cmd *cobra.Command) (*session, error) {
	logger := newLogger(logLevel)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	prefs, err := config.LoadPreferences(cfg.PreferencesPath)
	if err != nil {
		logger.Warn().Err(err).Msg("using default preferences")
	}

	store, err := database.Open(database.Options{Path: cfg.DBPath, DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	logger.Info().Str("database", store.DatabaseType()).Msg("store opened")

	fetcher := rss.NewFetcher(rss.WithLogger(logger.With().Str("component", "fetcher").Logger()))
	m := app.NewModel(app.WithExportDir(cfg.ExportDir), app.WithPreferences(prefs))
	h := host.New(m, store, fetcher, cfg.FetchConcurrency, logger.With().Str("component", "host").Logger())
	if err := h.Restore(ctx); err != nil {
		store.Close()
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		h.Run(loopCtx)
		close(done)
	}()

	return &session{
		cfg:    cfg,
		logger: logger,
		store:  store,
		host:   h,
		stop: func() {
			cancel()
			<-done
			store.Close()
		},
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := start(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.stop()

	go func() {
		err := config.WatchPreferences(ctx, rt.cfg.PreferencesPath, rt.logger, func(p model.Preferences) {
			if _, err := rt.host.Dispatch(ctx, app.SetPreferences{Preferences: p}); err != nil {
				rt.logger.Warn().Err(err).Msg("apply preferences")
			}
		})
		if err != nil {
			rt.logger.Warn().Err(err).Msg("preferences watcher stopped")
		}
	}()

	poller := rss.NewPoller(
		func() time.Duration { return rt.host.Current().Preferences.RefreshInterval.Duration() },
		rt.host.RefreshAll,
		rt.logger.With().Str("component", "poller").Logger(),
	)
	srv := server.New(rt.host, poller, rt.logger.With().Str("component", "server").Logger())
	return srv.Start(ctx, rt.cfg.Addr)
}

func runImport(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	return oneShot(cmd, true, func(name model.AccountName) app.Event {
		return app.ImportSubscriptions{Account: name, Path: path}
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return oneShot(cmd, false, func(name model.AccountName) app.Event {
		return app.ExportSubscriptions{Account: name}
	})
}

// oneShot dispatches a single event against stored state and prints the
// resulting notification. With create set, an empty store gets a local
// account first.
func oneShot(cmd *cobra.Command, create bool, build func(model.AccountName) app.Event) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := start(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.stop()

	name := model.AccountName(accountName)
	if name == "" {
		view := rt.host.Current()
		if len(view.Accounts) == 0 {
			if !create {
				return errors.New("no accounts exist")
			}
			if view, err = rt.host.Dispatch(ctx, app.CreateAccount{Type: model.AccountLocal}); err != nil {
				return err
			}
		}
		name = model.AccountName(view.Accounts[0].Name)
	}

	view, err := rt.host.Dispatch(ctx, build(name))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), view.Notification)
	return nil
}

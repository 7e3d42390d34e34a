// ABOUTME: Root Cobra command and global flags for the logbook CLI.
// ABOUTME: Sets up lifecycle hooks for config loading, logging, and opening the journal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/config"
	"github.com/2389-research/logbook/internal/journal"
	"github.com/2389-research/logbook/internal/logging"
	"github.com/2389-research/logbook/internal/storage"
)

var (
	cfgFile string

	globalConfig   *config.Config
	globalLogger   *zap.Logger
	globalProvider storage.DataProvider
	globalApp      *journal.App
)

// storeFreeCommands run without opening the journal.
var storeFreeCommands = map[string]bool{
	"help":       true,
	"version":    true,
	"completion": true,
	"config":     true,
}

var rootCmd = &cobra.Command{
	Use:   "logbook",
	Short: "A personal journal with undo, for humans and agents",
	Long: `
██╗      ██████╗  ██████╗ ██████╗  ██████╗  ██████╗ ██╗  ██╗
██║     ██╔═══██╗██╔════╝ ██╔══██╗██╔═══██╗██╔═══██╗██║ ██╔╝
██║     ██║   ██║██║  ███╗██████╔╝██║   ██║██║   ██║█████╔╝
██║     ██║   ██║██║   ██║██╔══██╗██║   ██║██║   ██║██╔═██╗
███████╗╚██████╔╝╚██████╔╝██████╔╝╚██████╔╝╚██████╔╝██║  ██╗
╚══════╝ ╚═════╝  ╚═════╝ ╚═════╝  ╚═════╝  ╚═════╝ ╚═╝  ╚═╝

Dated, titled, tagged journal entries stored as one JSON document,
one markdown file per entry, or an SQLite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		if storeFreeCommands[cmd.Name()] || (cmd.Parent() != nil && storeFreeCommands[cmd.Parent().Name()]) {
			return nil
		}

		logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		globalLogger = logger

		provider, err := storage.Open(cfg.Storage.Backend, cfg.StoragePath(), logger)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
		}
		globalProvider = provider

		app, err := journal.New(journal.Config{
			Provider:        provider,
			HistoryLimit:    cfg.History.Limit,
			DefaultPriority: cfg.Entries.DefaultPriority,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		if err := app.LoadEntries(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load entries: %w", err)
		}
		globalApp = app
		return nil
	},
}

func init() {
	cobra.OnFinalize(closeSession)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (default ~/.config/logbook/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend: json, files, or sqlite")
	rootCmd.PersistentFlags().String("data", "", "Storage path for the selected backend")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// closeSession releases the store and flushes the logger. It runs after every command,
// including ones that fail in RunE or halfway through PersistentPreRunE.
func closeSession() {
	if globalProvider != nil {
		if err := globalProvider.Close(); err != nil && globalLogger != nil {
			globalLogger.Warn("failed to close store", zap.Error(err))
		}
		globalProvider = nil
	}
	if globalLogger != nil {
		_ = globalLogger.Sync()
		globalLogger = nil
	}
	globalApp = nil
}

// loadConfig layers defaults, the config file, LOGBOOK_* env vars, and explicitly set
// flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper()
	if err != nil {
		return nil, err
	}
	// config init may be pointed at a file it is about to create.
	creating := cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config"
	if _, statErr := os.Stat(cfgFile); !creating || statErr == nil {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return nil, err
		}
	}

	bindFlag(v, cmd, "storage.backend", "backend")
	bindFlag(v, cmd, "log.level", "log-level")

	// --data applies to whichever backend ends up selected.
	if f := cmd.Flags().Lookup("data"); f != nil && f.Changed {
		switch v.GetString("storage.backend") {
		case storage.BackendFiles:
			v.Set("storage.files_dir", f.Value.String())
		case storage.BackendSQLite:
			v.Set("storage.sqlite_path", f.Value.String())
		default:
			v.Set("storage.json_path", f.Value.String())
		}
	}

	return config.FromViper(v)
}

// bindFlag binds a flag only when the user set it, so an empty default never hides a
// config or env value.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil || !f.Changed {
		return
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

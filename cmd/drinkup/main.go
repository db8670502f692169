package main

import (
	"fmt"
	"os"

	"drinkup/internal/app"
	"drinkup/internal/config"
	"drinkup/internal/database"
	"drinkup/internal/logging"
	"drinkup/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs, filled in by the root pre-run.
type env struct {
	verbose bool
	envFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "drinkup",
		Short: "DrinkUp - daily water intake tracker",
		Long: `DrinkUp tracks how much water you drink against a daily goal
derived from your profile, and reminds you to drink through the day.

Configuration comes from the environment (DRINKUP_DB_PATH, LOG_LEVEL,
TELEGRAM_BOT_TOKEN, ...). Run "drinkup bot" to serve the Telegram bot.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(e.envFile); err != nil {
				return err
			}
			cfg, err := config.NewFromEnv()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level := cfg.LogLevel
			if e.verbose {
				level = "debug"
			}
			logger, err := logging.New(level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "load environment variables from this file when it exists")

	root.AddCommand(
		newOnboardCmd(e),
		newDrinkCmd(e),
		newStatusCmd(e),
		newBotCmd(e),
		newMetricsCleanupCmd(e),
	)
	return root
}

// stack is the storage and session controller shared by the subcommands.
type stack struct {
	db  *database.DB
	kv  *storage.SQLiteKV
	app *app.App
}

func (s *stack) Close() error {
	return s.db.Close()
}

// open opens the database and builds an App on top of it.
func (e *env) open(opts ...app.Option) (*stack, error) {
	db, err := database.NewDB(e.cfg.DatabasePath, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	kv := storage.NewSQLiteKV(db.SQL)
	opts = append([]app.Option{app.WithLogger(e.logger)}, opts...)
	return &stack{db: db, kv: kv, app: app.New(kv, opts...)}, nil
}

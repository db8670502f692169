package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"drinkup/internal/app"
	"drinkup/internal/config"
	"drinkup/internal/llm"
	"drinkup/internal/metrics"
	"drinkup/internal/reminder"
	"drinkup/internal/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newBotCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve the Telegram bot and send daily reminders",
		Long: `Starts the webhook server for the Telegram bot and the reminder
scheduler. Requires TELEGRAM_BOT_TOKEN, TELEGRAM_WEBHOOK_URL and
TELEGRAM_ALLOW_USER_ID. Reminders follow REMINDER_CONFIG when set, and
edits to that file are picked up while the bot runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), e)
		},
	}
}

func runBot(parent context.Context, e *env) error {
	cfg, logger := e.cfg, e.logger
	if err := cfg.ValidateForBot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := e.open()
	if err != nil {
		return err
	}
	defer st.Close()
	a := st.app

	metricsStore := metrics.NewStore(st.db.SQL)
	gen, model, closeGen := newReminderGenerator(ctx, cfg, logger)
	defer closeGen()
	composer := reminder.NewComposer(gen, logger.Named("composer"), reminder.WithRecorder(metricsStore, model))

	bot, err := telegram.NewBot(cfg, a, telegram.NewSessionRepository(st.kv), composer, metricsStore, logger.Named("telegram"))
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram Bot: %w", err)
	}
	a.SetCelebrator(bot)

	plan, err := reminderPlan(cfg)
	if err != nil {
		return err
	}
	scheduler := reminder.NewLocalScheduler(bot, logger.Named("reminder"))
	if _, err := a.ConfigureReminders(ctx, scheduler, plan); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}

	var watcher *config.PlanWatcher
	if cfg.ReminderConfigPath != "" {
		watcher, err = config.NewPlanWatcher(cfg.ReminderConfigPath, logger.Named("config"))
		if err != nil {
			// Reminders still run on the plan loaded above.
			logger.Warn("reminder config will not be reloaded", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(scheduler.Run(gctx))
	})
	if watcher != nil {
		g.Go(func() error {
			return ignoreCanceled(watcher.Run(gctx, func(file *config.ReminderPlan) {
				reloadReminders(gctx, a, scheduler, file, logger)
			}))
		})
	}
	g.Go(func() error {
		logger.Info("telegram bot server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server exiting")
	return err
}

func reloadReminders(ctx context.Context, a *app.App, s reminder.Scheduler, file *config.ReminderPlan, logger *zap.Logger) {
	plan, err := mergePlan(file)
	if err != nil {
		logger.Warn("ignoring reminder config", zap.Error(err))
		return
	}
	if _, err := a.ConfigureReminders(ctx, s, plan); err != nil {
		logger.Error("failed to reschedule reminders", zap.Error(err))
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newReminderGenerator picks the model used to word reminders: Gemini when
// a key is set, then Groq, else none.
func newReminderGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.TextGenerator, string, func()) {
	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err == nil {
			logger.Info("reminder text from gemini", zap.String("model", cfg.GeminiModel))
			return client, cfg.GeminiModel, func() { client.Close() }
		}
		logger.Warn("gemini unavailable, trying next generator", zap.Error(err))
	}
	if cfg.GroqAPIKey != "" {
		logger.Info("reminder text from groq")
		return llm.NewGroqClient(cfg), llm.GroqModel, func() {}
	}
	logger.Info("no language model configured, reminders use the fixed message")
	return nil, "", func() {}
}

// reminderPlan is the default plan overridden by REMINDER_CONFIG.
func reminderPlan(cfg *config.Config) (reminder.Plan, error) {
	if cfg.ReminderConfigPath == "" {
		return reminder.DefaultPlan(), nil
	}
	file, err := config.LoadReminderPlan(cfg.ReminderConfigPath)
	if err != nil {
		return reminder.Plan{}, err
	}
	return mergePlan(file)
}

// mergePlan fills the fields a plan file leaves empty from the defaults.
func mergePlan(file *config.ReminderPlan) (reminder.Plan, error) {
	plan := reminder.DefaultPlan()
	if len(file.Hours) > 0 {
		plan.Hours = file.Hours
	}
	plan.Minute = file.Minute
	if file.Message != "" {
		plan.Message = file.Message
	}
	return plan, plan.Validate()
}

func newMetricsCleanupCmd(e *env) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Remove old reminder wording metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.open()
			if err != nil {
				return err
			}
			defer st.Close()

			affected, err := metrics.NewStore(st.db.SQL).Cleanup(cmd.Context(), days)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records.\n", affected)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "keep records for the last N days")
	return cmd
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"drinkup/internal/app"
	"drinkup/internal/config"
	"drinkup/internal/logging"
	"drinkup/internal/metrics"
	"drinkup/internal/profile"
	"drinkup/internal/reminder"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const helpText = `*DrinkUp* commands:
/drink AMOUNT - log a drink (default 200ml, e.g. 330ml or 0.5L)
/status - today's progress
/log - today's drinks
/reset - redo onboarding
/health - system health
/metrics - reminder wording activity`

// botAPI is the subset of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UsageReporter summarizes recent language model activity.
type UsageReporter interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Bot wraps the Telegram API around the hydration session.
type Bot struct {
	api      botAPI
	handler  func(r *http.Request) (*tgbotapi.Update, error)
	app      *app.App
	sessions *SessionRepository
	composer *reminder.Composer
	usage    UsageReporter
	cfg      *config.Config
	logger   *zap.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	a *app.App,
	sessions *SessionRepository,
	composer *reminder.Composer,
	usage UsageReporter,
	logger *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger = logging.OrNop(logger)
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", zap.String("description", resp.Description))

	b := newBot(api, cfg, a, sessions, composer, usage, logger)
	b.handler = api.HandleUpdate
	return b, nil
}

func newBot(api botAPI, cfg *config.Config, a *app.App, sessions *SessionRepository, composer *reminder.Composer, usage UsageReporter, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		app:      a,
		sessions: sessions,
		composer: composer,
		usage:    usage,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
	}
}

// RegisterHandlers registers the webhook handler on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.handler(r)
	if err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		return
	}

	if update.CallbackQuery != nil {
		if !b.allowed(update.CallbackQuery.From) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil || !b.allowed(update.Message.From) {
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if from.ID != b.cfg.TelegramAllowUserID {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("user_id", from.ID), zap.String("username", from.UserName))
		return false
	}
	return true
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx := context.Background()
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, chatID)
		case "drink":
			b.handleDrinkRequest(ctx, chatID, msg.CommandArguments())
		case "status":
			b.handleStatus(ctx, chatID)
		case "log":
			b.handleLog(ctx, chatID)
		case "reset":
			b.handleReset(ctx, chatID)
		case "health":
			b.send(chatID, formatHealth(metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath))), nil)
		case "metrics":
			b.handleMetrics(ctx, chatID)
		default:
			b.send(chatID, helpText, nil)
		}
		return
	}

	draft, err := b.sessions.GetActive(ctx)
	if err != nil {
		b.logger.Warn("failed to load onboarding session", zap.Error(err))
	}
	if draft != nil {
		b.continueOnboarding(ctx, chatID, draft, msg.Text)
		return
	}
	b.send(chatID, helpText, nil)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	action, value, ok := strings.Cut(query.Data, "|")
	if !ok {
		return
	}

	switch action {
	case "drink":
		b.handleDrinkRequest(ctx, chatID, value)
	case "onboard":
		draft, err := b.sessions.GetActive(ctx)
		if err != nil || draft == nil {
			b.send(chatID, "No onboarding in progress. Send /start to begin.", nil)
			return
		}
		b.continueOnboarding(ctx, chatID, draft, value)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	st, err := b.app.Start(ctx)
	if errors.Is(err, app.ErrNotOnboarded) {
		b.beginOnboarding(ctx, chatID)
		return
	}
	if err != nil {
		b.sendError(chatID, "Error loading your data", err)
		return
	}
	b.send(chatID, fmt.Sprintf("Hello, %s! 👋\n\n%s", escape(st.Profile.Name), formatStatus(st)), drinkKeyboard())
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	if err := b.app.Reset(ctx); err != nil {
		b.sendError(chatID, "Error resetting your profile", err)
		return
	}
	b.beginOnboarding(ctx, chatID)
}

func (b *Bot) beginOnboarding(ctx context.Context, chatID int64) {
	draft := newOnboardingDraft()
	if err := b.sessions.Save(ctx, draft); err != nil {
		b.logger.Warn("failed to save onboarding session", zap.Error(err))
	}
	b.askOnboarding(chatID, draft)
}

func (b *Bot) continueOnboarding(ctx context.Context, chatID int64, draft *onboardingDraft, input string) {
	if problem := draft.apply(input); problem != "" {
		b.send(chatID, problem, nil)
		b.askOnboarding(chatID, draft)
		return
	}

	if !draft.done() {
		if err := b.sessions.Save(ctx, draft); err != nil {
			b.logger.Warn("failed to save onboarding session", zap.Error(err))
		}
		b.askOnboarding(chatID, draft)
		return
	}

	st, err := b.app.Onboard(ctx, draft.toProfile())
	var vErr *profile.ValidationError
	if errors.As(err, &vErr) {
		b.send(chatID, fmt.Sprintf("Your %s doesn't look right, let's start over.", vErr.Field), nil)
		b.beginOnboarding(ctx, chatID)
		return
	}
	if err != nil {
		b.sendError(chatID, "Error saving your profile", err)
		return
	}

	if err := b.sessions.Delete(ctx); err != nil {
		b.logger.Warn("failed to clear onboarding session", zap.Error(err))
	}
	b.send(chatID, "All set! 🎉\n\n"+formatStatus(st), drinkKeyboard())
}

func (b *Bot) askOnboarding(chatID int64, draft *onboardingDraft) {
	var markup interface{}
	switch draft.Step {
	case stepGender:
		markup = genderKeyboard()
	case stepSport:
		markup = sportKeyboard()
	}
	b.send(chatID, draft.question(), markup)
}

func (b *Bot) handleDrinkRequest(ctx context.Context, chatID int64, arg string) {
	liters, err := parseAmount(arg)
	if err != nil {
		b.send(chatID, "🤔 I couldn't read that amount. Try /drink 250ml or /drink 0.5L.", nil)
		return
	}

	res, err := b.app.Drink(ctx, liters)
	if errors.Is(err, app.ErrNotOnboarded) {
		b.beginOnboarding(ctx, chatID)
		return
	}
	if err != nil {
		b.sendError(chatID, "Error recording your drink", err)
		return
	}
	b.send(chatID, formatStatus(res.Status), drinkKeyboard())
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	st, err := b.app.Status(ctx)
	if errors.Is(err, app.ErrNotOnboarded) {
		b.beginOnboarding(ctx, chatID)
		return
	}
	if err != nil {
		b.sendError(chatID, "Error loading your progress", err)
		return
	}
	b.send(chatID, formatStatus(st), drinkKeyboard())
}

func (b *Bot) handleLog(ctx context.Context, chatID int64) {
	st, err := b.app.Status(ctx)
	if errors.Is(err, app.ErrNotOnboarded) {
		b.beginOnboarding(ctx, chatID)
		return
	}
	if err != nil {
		b.sendError(chatID, "Error loading your log", err)
		return
	}
	b.send(chatID, formatLog(st.Today), nil)
}

func (b *Bot) handleMetrics(ctx context.Context, chatID int64) {
	if b.usage == nil {
		b.send(chatID, "Metrics are not enabled.", nil)
		return
	}
	usage, err := b.usage.GetDailyUsage(ctx, 7)
	if err != nil {
		b.sendError(chatID, "Error fetching metrics", err)
		return
	}
	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath))
	b.send(chatID, formatUsage(usage)+"\n"+formatHealth(health), nil)
}

// Celebrate announces the goal. The app calls it once per day.
func (b *Bot) Celebrate(_ context.Context, st app.Status) {
	text := fmt.Sprintf("🎉🎉🎉 *Goal reached!* You drank %.1f L today. Well done, %s!",
		st.Today.TotalLiters(), escape(st.Profile.Name))
	b.send(b.cfg.TelegramAllowUserID, text, nil)
}

// Notify delivers a reminder to the allowed user's private chat.
func (b *Bot) Notify(ctx context.Context, r reminder.Reminder) error {
	var progress reminder.Progress
	if st, err := b.app.Status(ctx); err == nil {
		progress = reminder.Progress{Name: st.Profile.Name, TotalLiters: st.Today.TotalLiters(), GoalLiters: st.Goal}
	}

	body := b.composer.Compose(ctx, r.Message, progress)
	msg := tgbotapi.NewMessage(b.cfg.TelegramAllowUserID, reminder.Title+"\n\n"+body)
	msg.ReplyMarkup = drinkKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}

func (b *Bot) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendError(chatID int64, what string, err error) {
	b.logger.Error(what, zap.Error(err))
	b.send(chatID, "❌ "+what+". Please try again.", nil)
}

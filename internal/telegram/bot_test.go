package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"drinkup/internal/app"
	"drinkup/internal/config"
	"drinkup/internal/intake"
	"drinkup/internal/metrics"
	"drinkup/internal/profile"
	"drinkup/internal/reminder"
	"drinkup/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID int64 = 4242

type fakeAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *app.App) {
	t.Helper()
	kv := storage.NewMemoryKV()
	clock := intake.ClockFunc(func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local) })
	a := app.New(kv, app.WithClock(clock))
	api := &fakeAPI{}
	cfg := &config.Config{TelegramAllowUserID: userID, DatabasePath: t.TempDir() + "/drinkup.db"}
	b := newBot(api, cfg, a, NewSessionRepository(kv), reminder.NewComposer(nil, nil), fakeUsage{}, nil)
	a.SetCelebrator(b)
	return b, api, a
}

type fakeUsage struct{}

func (fakeUsage) GetDailyUsage(context.Context, int) ([]metrics.DailyUsage, error) {
	return []metrics.DailyUsage{{Date: "2026-10-17", TotalExecution: 3, Fallbacks: 1, AvgLatencyMS: 420}}, nil
}

func textMessage(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: userID},
		From: &tgbotapi.User{ID: userID},
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}
}

func TestOnboardingConversation(t *testing.T) {
	b, api, a := newTestBot(t)

	b.processMessage(textMessage("/start"))
	assert.Contains(t, api.last().Text, "What's your name?")

	b.processMessage(textMessage("Ana"))
	assert.Equal(t, "How old are you?", api.last().Text)

	b.processMessage(textMessage("twenty"))
	texts := api.texts()
	assert.Equal(t, problemBadAge, texts[len(texts)-2])

	b.processMessage(textMessage("22"))
	assert.Equal(t, "What's your sex?", api.last().Text)
	assert.NotNil(t, api.last().ReplyMarkup)

	b.handleCallbackQuery(callback("onboard|female"))
	assert.Equal(t, "Do you practice sport?", api.last().Text)

	b.handleCallbackQuery(callback("onboard|yes"))
	assert.Contains(t, api.last().Text, "All set!")
	assert.Contains(t, api.last().Text, "today's goal: 2.6 L")

	st, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, profile.Profile{Name: "Ana", Age: 22, Gender: profile.Female, Active: true}, st.Profile)

	draft, err := b.sessions.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, draft, "session is cleared after onboarding")
}

func TestDrinkCelebratesOnce(t *testing.T) {
	b, api, a := newTestBot(t)
	_, err := a.Onboard(context.Background(), profile.Profile{Name: "Rui", Age: 10, Gender: profile.Male})
	require.NoError(t, err)

	b.processMessage(textMessage("/drink 1.5L"))
	assert.Contains(t, api.last().Text, "75%")

	b.handleCallbackQuery(callback("drink|500ml"))
	celebrations := 0
	for _, text := range api.texts() {
		if strings.Contains(text, "Goal reached!") {
			celebrations++
		}
	}
	assert.Equal(t, 1, celebrations)

	b.processMessage(textMessage("/drink 200"))
	celebrations = 0
	for _, text := range api.texts() {
		if strings.Contains(text, "Goal reached!") {
			celebrations++
		}
	}
	assert.Equal(t, 1, celebrations, "second drink after the goal does not celebrate again")

	b.processMessage(textMessage("/log"))
	assert.Contains(t, api.last().Text, "*Total:* 2.20 L")
}

func TestDrinkBeforeOnboardingStartsIt(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.processMessage(textMessage("/drink"))
	assert.Contains(t, api.last().Text, "What's your name?")
}

func TestBadDrinkAmount(t *testing.T) {
	b, api, _ := newTestBot(t)
	for _, arg := range []string{"lots", "nan", "inf"} {
		b.processMessage(textMessage("/drink " + arg))
		assert.Contains(t, api.last().Text, "couldn't read that amount", arg)
	}
}

func TestNotify(t *testing.T) {
	b, api, a := newTestBot(t)
	_, err := a.Onboard(context.Background(), profile.Profile{Name: "Rui", Age: 10, Gender: profile.Male})
	require.NoError(t, err)

	require.NoError(t, b.Notify(context.Background(), reminder.Reminder{Hour: 9, Message: reminder.DefaultMessage}))
	msg := api.last()
	assert.Equal(t, userID, msg.ChatID)
	assert.True(t, strings.HasPrefix(msg.Text, reminder.Title))
	assert.Contains(t, msg.Text, "0.0 / 2.0 L so far")
}

func TestUnknownUserIsIgnored(t *testing.T) {
	b, _, _ := newTestBot(t)
	assert.False(t, b.allowed(&tgbotapi.User{ID: 1}))
	assert.False(t, b.allowed(nil))
	assert.True(t, b.allowed(&tgbotapi.User{ID: userID}))
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"":       intake.DefaultServing,
		"250":    0.25,
		"250ml":  0.25,
		"330 ml": 0.33,
		"0.5":    0.5,
		"0,5L":   0.5,
		"1l":     1,
	}
	for in, want := range tests {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, in := range []string{"-1", "0", "abc", "ml", "nan", "inf", "-inf", "NaN ml"} {
		_, err := parseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestOnboardingDraft(t *testing.T) {
	d := newOnboardingDraft()
	assert.Equal(t, problemEmptyName, d.apply("  "))
	assert.Empty(t, d.apply("Zé"))
	assert.Equal(t, problemBadAge, d.apply("-4"))
	assert.Empty(t, d.apply("41"))
	assert.Equal(t, problemBadGender, d.apply("robot"))
	assert.Empty(t, d.apply("Masculino"))
	assert.Equal(t, problemBadAnswer, d.apply("maybe"))
	assert.Empty(t, d.apply("não"))
	assert.True(t, d.done())
	assert.Equal(t, problemFinished, d.apply("more"))
	assert.Equal(t, profile.Profile{Name: "Zé", Age: 41, Gender: profile.Male}, d.toProfile())
}

func TestFormatStatus(t *testing.T) {
	st := app.Status{
		Profile: profile.Profile{Name: "Ana_B"},
		Goal:    2.0,
		Today:   intake.DailyState{Events: []intake.Event{{Liters: 2.4}}},
		Ratio:   1,
		Phase:   intake.GoalMet,
	}
	out := formatStatus(st)
	assert.Contains(t, out, `Ana\_B`)
	assert.Contains(t, out, "▰▰▰▰▰▰▰▰▰▰ 100%")
	assert.Contains(t, out, "2.40 L drunk ✅")

	assert.Equal(t, "▰▰▰▱▱▱▱▱▱▱", progressBar(0.3))
	assert.Equal(t, "▱▱▱▱▱▱▱▱▱▱", progressBar(0))
}

func TestMetricsCommand(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.processMessage(textMessage("/metrics"))
	text := api.last().Text
	assert.Contains(t, text, "2026-10-17*: 3 calls, 1 fallbacks, 420ms avg")
	assert.Contains(t, text, "System Health")
}

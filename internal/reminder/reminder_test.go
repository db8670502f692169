package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"drinkup/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingScheduler struct {
	granted   bool
	cancelled int
	scheduled []string
}

func (r *recordingScheduler) RequestPermission(context.Context) (bool, error) { return r.granted, nil }

func (r *recordingScheduler) CancelAll(context.Context) error {
	r.cancelled++
	r.scheduled = nil
	return nil
}

func (r *recordingScheduler) ScheduleDaily(_ context.Context, hour, minute int, message string) error {
	r.scheduled = append(r.scheduled, time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")+" "+message)
	return nil
}

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("Granted", func(t *testing.T) {
		s := &recordingScheduler{granted: true, scheduled: []string{"stale"}}
		ok, err := Setup(ctx, s, DefaultPlan())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, s.cancelled)
		require.Len(t, s.scheduled, 7)
		assert.Equal(t, "09:00 "+DefaultMessage, s.scheduled[0])
		assert.Equal(t, "21:00 "+DefaultMessage, s.scheduled[6])
	})

	t.Run("Denied", func(t *testing.T) {
		s := &recordingScheduler{granted: false, scheduled: []string{"kept"}}
		ok, err := Setup(ctx, s, DefaultPlan())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, s.cancelled)
		assert.Equal(t, []string{"kept"}, s.scheduled)
	})

	t.Run("InvalidPlan", func(t *testing.T) {
		s := &recordingScheduler{granted: true}
		_, err := Setup(ctx, s, Plan{Hours: []int{25}})
		require.Error(t, err)
		_, err = Setup(ctx, s, Plan{Hours: []int{9}, Minute: 60})
		require.Error(t, err)
		assert.Empty(t, s.scheduled)
	})

	t.Run("EmptyMessageUsesDefault", func(t *testing.T) {
		s := &recordingScheduler{granted: true}
		_, err := Setup(ctx, s, Plan{Hours: []int{10}, Minute: 30})
		require.NoError(t, err)
		assert.Equal(t, []string{"10:30 " + DefaultMessage}, s.scheduled)
	})
}

func TestNextOccurrence(t *testing.T) {
	base := time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC), NextOccurrence(base, 11, 0))
	assert.Equal(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), NextOccurrence(base, 9, 0))
	assert.Equal(t, time.Date(2026, 10, 18, 10, 15, 0, 0, time.UTC), NextOccurrence(base, 10, 15), "an occurrence exactly now is tomorrow's")

	endOfMonth := time.Date(2026, 10, 31, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC), NextOccurrence(endOfMonth, 9, 0))
}

type chanNotifier struct {
	ch chan Reminder
}

func (n *chanNotifier) Notify(_ context.Context, r Reminder) error {
	n.ch <- r
	return nil
}

type fakeTimers struct {
	mu     sync.Mutex
	waits  []time.Duration
	fireCh chan time.Time
}

func (f *fakeTimers) after(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	return f.fireCh
}

func TestLocalSchedulerFires(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC)
	notifier := &chanNotifier{ch: make(chan Reminder, 4)}
	timers := &fakeTimers{fireCh: make(chan time.Time)}

	s := NewLocalScheduler(notifier, nil)
	s.now = func() time.Time { return now }
	s.after = timers.after

	ctx, cancel := context.WithCancel(context.Background())
	ok, err := Setup(ctx, s, Plan{Hours: []int{9, 11, 13}, Message: "drink"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, s.Scheduled(), 3)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	timers.fireCh <- now
	select {
	case r := <-notifier.ch:
		assert.Equal(t, 11, r.Hour)
		assert.Equal(t, "drink", r.Message)
		assert.Equal(t, time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC), r.At)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder was not delivered")
	}

	timers.fireCh <- now
	select {
	case r := <-notifier.ch:
		assert.Equal(t, 13, r.Hour, "the cursor moves past the fired occurrence")
	case <-time.After(2 * time.Second):
		t.Fatal("second reminder was not delivered")
	}

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestLocalSchedulerStopsWithoutEntries(t *testing.T) {
	s := NewLocalScheduler(nil, nil)
	granted, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (g *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

func TestComposer(t *testing.T) {
	ctx := context.Background()
	p := Progress{Name: "Ana", TotalLiters: 0.8, GoalLiters: 2.0}

	t.Run("Fixed", func(t *testing.T) {
		text := NewComposer(nil, nil).Compose(ctx, DefaultMessage, p)
		assert.True(t, strings.HasPrefix(text, DefaultMessage))
		assert.Contains(t, text, "0.8 / 2.0 L so far, 1.2 L to go.")
	})

	t.Run("GoalReached", func(t *testing.T) {
		text := NewComposer(nil, nil).Compose(ctx, "", Progress{TotalLiters: 2.4, GoalLiters: 2.0})
		assert.Contains(t, text, "Goal reached today (2.4 L)")
	})

	t.Run("Generated", func(t *testing.T) {
		gen := &stubGenerator{text: "  Ana, one more glass! 💧 \n"}
		text := NewComposer(gen, nil).Compose(ctx, DefaultMessage, p)
		assert.Equal(t, "Ana, one more glass! 💧", text)
		assert.Contains(t, gen.prompt, "1.2 L to go")
	})

	t.Run("GeneratorErrorFallsBack", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("quota")}
		text := NewComposer(gen, nil).Compose(ctx, DefaultMessage, p)
		assert.True(t, strings.HasPrefix(text, DefaultMessage))
	})

	t.Run("TooLongFallsBack", func(t *testing.T) {
		gen := &stubGenerator{text: strings.Repeat("a", maxComposedLength+1)}
		text := NewComposer(gen, nil).Compose(ctx, DefaultMessage, p)
		assert.True(t, strings.HasPrefix(text, DefaultMessage))
	})
}

type memRecorder struct {
	got []metrics.ExecutionMetric
}

func (r *memRecorder) Record(_ context.Context, m metrics.ExecutionMetric) error {
	r.got = append(r.got, m)
	return nil
}

func TestComposerRecordsModelCalls(t *testing.T) {
	ctx := context.Background()
	p := Progress{Name: "Ana", TotalLiters: 0.8, GoalLiters: 2.0}
	rec := &memRecorder{}

	NewComposer(nil, nil, WithRecorder(rec, "none")).Compose(ctx, DefaultMessage, p)
	assert.Empty(t, rec.got, "no model call, nothing recorded")

	NewComposer(&stubGenerator{text: "Drink up!"}, nil, WithRecorder(rec, "gemini-1.5-flash")).Compose(ctx, DefaultMessage, p)
	NewComposer(&stubGenerator{err: errors.New("quota")}, nil, WithRecorder(rec, "gemini-1.5-flash")).Compose(ctx, DefaultMessage, p)

	require.Len(t, rec.got, 2)
	assert.Equal(t, "reminder", rec.got[0].Component)
	assert.Equal(t, "gemini-1.5-flash", rec.got[0].Model)
	assert.False(t, rec.got[0].Fallback)
	assert.True(t, rec.got[1].Fallback)
}

package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"drinkup/internal/logging"

	"go.uber.org/zap"
)

// Reminder is one firing of a daily schedule entry.
type Reminder struct {
	Hour    int
	Minute  int
	Message string
	At      time.Time
}

// Notifier delivers a reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

type entry struct {
	hour, minute int
	message      string
}

// LocalScheduler keeps the daily schedule in memory and fires it from a
// single goroutine started by Run.
type LocalScheduler struct {
	mu       sync.Mutex
	entries  []entry
	notifier Notifier
	logger   *zap.Logger
	wake     chan struct{}

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewLocalScheduler creates a scheduler that delivers through n. A nil n
// means notifications are not permitted.
func NewLocalScheduler(n Notifier, logger *zap.Logger) *LocalScheduler {
	return &LocalScheduler{
		notifier: n,
		logger:   logging.OrNop(logger),
		wake:     make(chan struct{}, 1),
		now:      time.Now,
		after:    time.After,
	}
}

// RequestPermission grants permission when a delivery channel exists.
func (s *LocalScheduler) RequestPermission(context.Context) (bool, error) {
	return s.notifier != nil, nil
}

// CancelAll drops every scheduled entry.
func (s *LocalScheduler) CancelAll(context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	s.poke()
	return nil
}

// ScheduleDaily adds a reminder repeating at hour:minute local time.
func (s *LocalScheduler) ScheduleDaily(_ context.Context, hour, minute int, message string) error {
	if err := (Plan{Hours: []int{hour}, Minute: minute}).Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{hour: hour, minute: minute, message: message})
	s.mu.Unlock()
	s.poke()
	return nil
}

// Scheduled lists the time of day of every entry, earliest first.
func (s *LocalScheduler) Scheduled() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Duration, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, time.Duration(e.hour)*time.Hour+time.Duration(e.minute)*time.Minute)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Run fires reminders until ctx is cancelled.
func (s *LocalScheduler) Run(ctx context.Context) error {
	// cursor is the last instant already handled, so a fake or coarse clock
	// never fires the same occurrence twice.
	var cursor time.Time

	for {
		from := s.now()
		if from.Before(cursor) {
			from = cursor
		}

		next, due := s.nextDue(from)
		var timer <-chan time.Time
		if len(due) > 0 {
			timer = s.after(next.Sub(s.now()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			continue
		case <-timer:
			cursor = next
			for _, e := range due {
				s.deliver(ctx, Reminder{Hour: e.hour, Minute: e.minute, Message: e.message, At: next})
			}
		}
	}
}

func (s *LocalScheduler) deliver(ctx context.Context, r Reminder) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, r); err != nil {
		s.logger.Warn("failed to deliver reminder",
			zap.Int("hour", r.Hour), zap.Int("minute", r.Minute), zap.Error(err))
		return
	}
	s.logger.Debug("reminder delivered", zap.Time("at", r.At))
}

// nextDue returns the earliest occurrence strictly after from and every
// entry sharing it.
func (s *LocalScheduler) nextDue(from time.Time) (time.Time, []entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	var due []entry
	for _, e := range s.entries {
		at := NextOccurrence(from, e.hour, e.minute)
		switch {
		case next.IsZero() || at.Before(next):
			next = at
			due = []entry{e}
		case at.Equal(next):
			due = append(due, e)
		}
	}
	return next, due
}

func (s *LocalScheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// NextOccurrence returns the first hour:minute strictly after from, in
// from's location.
func NextOccurrence(from time.Time, hour, minute int) time.Time {
	y, m, d := from.Date()
	at := time.Date(y, m, d, hour, minute, 0, 0, from.Location())
	if !at.After(from) {
		at = time.Date(y, m, d+1, hour, minute, 0, 0, from.Location())
	}
	return at
}

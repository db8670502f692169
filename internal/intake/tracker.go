package intake

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"drinkup/internal/logging"
	"drinkup/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyDailyIntake = "@daily_intake"

// Clock supplies the wall-clock time used for day boundaries and event
// timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the local wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Result is what RecordIntake reports back to the front end.
type Result struct {
	State DailyState
	// GoalReached is true only on the call that moved the total from below
	// the goal to at-or-above it.
	GoalReached bool
}

// Tracker owns today's intake log. All methods are safe for concurrent use;
// each RecordIntake mutates and persists before the next one starts.
type Tracker struct {
	mu     sync.Mutex
	kv     storage.KV
	clock  Clock
	logger *zap.Logger
	goal   float64

	state DailyState
	// loaded is false until the stored log has been read successfully.
	// Until then nothing is written, so an unreadable log is never replaced.
	loaded bool
	// dirty is set when the last write failed; the next mutation rewrites the
	// whole state.
	dirty bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = logging.OrNop(l) }
}

// NewTracker creates a Tracker for the given daily goal in liters.
func NewTracker(kv storage.KV, goal float64, opts ...Option) (*Tracker, error) {
	if !validGoal(goal) {
		return nil, ErrInvalidGoal
	}
	t := &Tracker{
		kv:     kv,
		clock:  SystemClock,
		logger: zap.NewNop(),
		goal:   goal,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Goal returns the current daily goal.
func (t *Tracker) Goal() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goal
}

// SetGoal replaces the goal, e.g. after the user re-onboards.
func (t *Tracker) SetGoal(goal float64) error {
	if !validGoal(goal) {
		return ErrInvalidGoal
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.goal = goal
	return nil
}

// LoadToday reads the persisted log. A log from another day, a corrupt log
// or no log at all yields an empty state for today. When storage cannot be
// read the state is empty in memory only and the read is retried by the
// next call.
func (t *Tracker) LoadToday(ctx context.Context) DailyState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.load(ctx)
	t.rollover(ctx)
	return t.state.clone()
}

// Today returns the in-memory state, loading it first if needed.
func (t *Tracker) Today(ctx context.Context) DailyState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensureLoaded(ctx)
	t.rollover(ctx)
	return t.state.clone()
}

// RecordIntake appends a drink of the given liters and persists the log.
// Invalid amounts return ErrInvalidAmount and leave the state untouched.
// A failed write is logged, not returned: the in-memory state stays
// authoritative and the next call writes it again.
func (t *Tracker) RecordIntake(ctx context.Context, liters float64) (Result, error) {
	if !(liters > 0) || math.IsInf(liters, 0) {
		return Result{}, ErrInvalidAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensureLoaded(ctx)
	t.rollover(ctx)

	before := t.state.TotalLiters()
	t.state.Events = append(t.state.Events, Event{
		ID:     uuid.NewString(),
		At:     t.clock.Now(),
		Liters: liters,
	})
	after := t.state.TotalLiters()

	if t.loaded {
		t.persist(ctx)
	} else {
		t.logger.Warn("intake log unreadable, keeping drink in memory", zap.Int("pending", len(t.state.Events)))
	}

	crossed := !reached(before, t.goal) && reached(after, t.goal)
	if crossed {
		t.logger.Info("daily goal reached", zap.Float64("total", after), zap.Float64("goal", t.goal))
	}
	return Result{State: t.state.clone(), GoalReached: crossed}, nil
}

func (t *Tracker) ensureLoaded(ctx context.Context) {
	if !t.loaded {
		t.load(ctx)
	}
}

// load replaces the state with the stored log. Drinks recorded while the
// log was unreadable are appended to it once the read succeeds.
func (t *Tracker) load(ctx context.Context) {
	stored, err := t.read(ctx)
	if err != nil {
		t.logger.Warn("failed to read intake log, continuing in memory", zap.Error(err))
		if t.loaded {
			t.state = DailyState{}
			t.loaded = false
		}
		return
	}

	unsaved, wasLoaded := t.state, t.loaded
	t.state, t.loaded = stored, true
	t.rollover(ctx)
	if !wasLoaded && len(unsaved.Events) > 0 && unsaved.Date == t.state.Date {
		t.logger.Info("storing drinks recorded while the intake log was unreadable",
			zap.Int("events", len(unsaved.Events)))
		t.state.Events = append(t.state.Events, unsaved.Events...)
		t.persist(ctx)
	}
}

// rollover resets the state when the day changed since it was loaded.
func (t *Tracker) rollover(ctx context.Context) {
	today := t.clock.Now().Format(dateLayout)
	if t.state.Date == today {
		return
	}
	if t.state.Date != "" {
		t.logger.Info("new day, resetting intake log",
			zap.String("previous", t.state.Date),
			zap.Int("events", len(t.state.Events)))
	}
	t.state = DailyState{Date: today, Events: []Event{}}
	if t.loaded {
		t.persist(ctx)
	}
}

// read returns the stored log. Only a storage failure is an error; a
// missing or corrupt log reads as an empty state.
func (t *Tracker) read(ctx context.Context) (DailyState, error) {
	raw, ok, err := t.kv.Get(ctx, keyDailyIntake)
	if err != nil {
		return DailyState{}, err
	}
	if !ok {
		return DailyState{}, nil
	}

	var s DailyState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.logger.Warn("discarding unreadable intake log", zap.Error(err))
		return DailyState{}, nil
	}
	// Drop entries that could never have been recorded.
	kept := s.Events[:0]
	for _, e := range s.Events {
		if e.Liters > 0 && !math.IsInf(e.Liters, 0) {
			kept = append(kept, e)
		}
	}
	s.Events = kept
	return s, nil
}

func (t *Tracker) persist(ctx context.Context) {
	data, err := json.Marshal(t.state)
	if err != nil {
		t.logger.Error("failed to encode intake log", zap.Error(err))
		t.dirty = true
		return
	}
	if err := t.kv.Set(ctx, keyDailyIntake, string(data)); err != nil {
		t.logger.Warn("failed to persist intake log, will retry on next change",
			zap.Error(err), zap.Int("events", len(t.state.Events)))
		t.dirty = true
		return
	}
	if t.dirty {
		t.logger.Info("intake log persisted after earlier failure")
		t.dirty = false
	}
}

func validGoal(goal float64) bool {
	return goal > 0 && !math.IsInf(goal, 0)
}

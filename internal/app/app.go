package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"drinkup/internal/intake"
	"drinkup/internal/logging"
	"drinkup/internal/profile"
	"drinkup/internal/reminder"
	"drinkup/internal/storage"

	"go.uber.org/zap"
)

// ErrNotOnboarded means no complete profile is stored yet.
var ErrNotOnboarded = errors.New("user has not completed onboarding")

// Celebrator reacts to the daily goal being reached. It is called at most
// once per day, right after the intake that crossed the goal.
type Celebrator interface {
	Celebrate(ctx context.Context, s Status)
}

// CelebratorFunc adapts a function to Celebrator.
type CelebratorFunc func(ctx context.Context, s Status)

func (f CelebratorFunc) Celebrate(ctx context.Context, s Status) { f(ctx, s) }

// Status is a snapshot of the user's day.
type Status struct {
	Profile profile.Profile
	Goal    float64
	Today   intake.DailyState
	Ratio   float64
	Phase   intake.Phase
}

// Percent is the progress ratio as a whole percentage.
func (s Status) Percent() int {
	return int(math.Round(s.Ratio * 100))
}

// DrinkResult is returned by Drink.
type DrinkResult struct {
	Status      Status
	GoalReached bool
}

// App is the session controller shared by the front ends. It owns the
// profile and intake stores.
type App struct {
	mu         sync.Mutex
	kv         storage.KV
	profiles   *profile.Store
	tracker    *intake.Tracker
	clock      intake.Clock
	celebrator Celebrator
	logger     *zap.Logger
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the wall clock used for day boundaries.
func WithClock(c intake.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithCelebrator registers the goal-reached side effect.
func WithCelebrator(c Celebrator) Option {
	return func(a *App) { a.celebrator = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = logging.OrNop(l) }
}

// SetCelebrator registers c after construction, for front ends that need
// the App before they exist.
func (a *App) SetCelebrator(c Celebrator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.celebrator = c
}

// New creates an App on top of kv.
func New(kv storage.KV, opts ...Option) *App {
	a := &App{
		kv:     kv,
		clock:  intake.SystemClock,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.profiles = profile.NewStore(kv, a.logger.Named("profile"))
	return a
}

// Start loads the profile and today's log. It returns ErrNotOnboarded when
// the user must go through onboarding first.
func (a *App) Start(ctx context.Context) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.profiles.Load(ctx)
	if !ok {
		return Status{}, ErrNotOnboarded
	}
	if err := a.ensureTracker(profile.DailyGoal(p)); err != nil {
		return Status{}, err
	}

	today := a.tracker.LoadToday(ctx)
	return a.status(p, today), nil
}

// Onboard validates and saves p, then starts the session.
func (a *App) Onboard(ctx context.Context, p profile.Profile) (Status, error) {
	if err := a.profiles.Save(ctx, p); err != nil {
		return Status{}, err
	}
	a.logger.Info("onboarding complete")
	return a.Start(ctx)
}

// Reset forgets the profile. Today's intake log is kept.
func (a *App) Reset(ctx context.Context) error {
	return a.profiles.Reset(ctx)
}

// Drink records an intake of liters and fires the celebrator on the goal
// transition.
func (a *App) Drink(ctx context.Context, liters float64) (DrinkResult, error) {
	a.mu.Lock()
	p, ok := a.profiles.Load(ctx)
	if !ok {
		a.mu.Unlock()
		return DrinkResult{}, ErrNotOnboarded
	}
	if err := a.ensureTracker(profile.DailyGoal(p)); err != nil {
		a.mu.Unlock()
		return DrinkResult{}, err
	}

	res, err := a.tracker.RecordIntake(ctx, liters)
	if err != nil {
		a.mu.Unlock()
		return DrinkResult{}, fmt.Errorf("failed to record %.2f L: %w", liters, err)
	}
	out := DrinkResult{Status: a.status(p, res.State), GoalReached: res.GoalReached}
	celebrator := a.celebrator
	a.mu.Unlock()

	a.logger.Info("intake recorded",
		zap.Float64("liters", liters),
		zap.Float64("total", res.State.TotalLiters()),
		zap.Bool("goal_reached", res.GoalReached))

	if out.GoalReached && celebrator != nil {
		celebrator.Celebrate(ctx, out.Status)
	}
	return out, nil
}

// Status returns the current snapshot without recording anything.
func (a *App) Status(ctx context.Context) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.profiles.Load(ctx)
	if !ok {
		return Status{}, ErrNotOnboarded
	}
	if err := a.ensureTracker(profile.DailyGoal(p)); err != nil {
		return Status{}, err
	}
	return a.status(p, a.tracker.Today(ctx)), nil
}

// ConfigureReminders installs plan on s. It reports whether reminders are
// active.
func (a *App) ConfigureReminders(ctx context.Context, s reminder.Scheduler, plan reminder.Plan) (bool, error) {
	ok, err := reminder.Setup(ctx, s, plan)
	if err != nil {
		return false, err
	}
	if !ok {
		a.logger.Info("reminders disabled: notification permission denied")
		return false, nil
	}
	a.logger.Info("reminders scheduled", zap.Ints("hours", plan.Hours), zap.Int("minute", plan.Minute))
	return true, nil
}

// ensureTracker creates the tracker on first use and keeps its goal in sync
// with the stored profile. Callers hold a.mu.
func (a *App) ensureTracker(goal float64) error {
	if a.tracker == nil {
		t, err := intake.NewTracker(a.kv, goal,
			intake.WithClock(a.clock),
			intake.WithLogger(a.logger.Named("intake")))
		if err != nil {
			return err
		}
		a.tracker = t
		return nil
	}
	if a.tracker.Goal() != goal {
		return a.tracker.SetGoal(goal)
	}
	return nil
}

func (a *App) status(p profile.Profile, today intake.DailyState) Status {
	goal := a.tracker.Goal()
	// goal is always positive here, the tracker refuses anything else.
	ratio, _ := intake.ProgressRatio(today, goal)
	return Status{
		Profile: p,
		Goal:    goal,
		Today:   today,
		Ratio:   ratio,
		Phase:   today.Phase(goal),
	}
}

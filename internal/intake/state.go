package intake

import (
	"errors"
	"math"
	"time"
)

// DefaultServing is the volume of the "drink" button, in liters.
const DefaultServing = 0.2

// dateLayout is the calendar-day key. Dates are taken from the local wall
// clock of the injected Clock, not normalized to UTC.
const dateLayout = "2006-01-02"

// goalEpsilon absorbs float drift when summing servings like 0.1 or 0.2.
const goalEpsilon = 1e-9

var (
	// ErrInvalidAmount is returned for intake amounts that are not positive.
	ErrInvalidAmount = errors.New("intake amount must be positive")
	// ErrInvalidGoal is returned when a goal is not positive.
	ErrInvalidGoal = errors.New("daily goal must be positive")
)

// Event is one recorded drink.
type Event struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Liters float64   `json:"liters"`
}

// DailyState is today's append-only intake log.
type DailyState struct {
	Date   string  `json:"date"`
	Events []Event `json:"events"`
}

// TotalLiters is the sum of all events. It is not clamped to the goal.
func (s DailyState) TotalLiters() float64 {
	var total float64
	for _, e := range s.Events {
		total += e.Liters
	}
	return total
}

// Phase is where the day stands relative to the goal.
type Phase int

const (
	Empty Phase = iota
	Accumulating
	GoalMet
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "empty"
	case Accumulating:
		return "accumulating"
	case GoalMet:
		return "goal met"
	}
	return "unknown"
}

// Phase reports the state-machine position of s for the given goal.
func (s DailyState) Phase(goal float64) Phase {
	if len(s.Events) == 0 {
		return Empty
	}
	if reached(s.TotalLiters(), goal) {
		return GoalMet
	}
	return Accumulating
}

// ProgressRatio returns total/goal clamped to [0, 1].
func ProgressRatio(s DailyState, goal float64) (float64, error) {
	if !(goal > 0) || math.IsInf(goal, 0) {
		return 0, ErrInvalidGoal
	}
	return math.Min(s.TotalLiters()/goal, 1), nil
}

func reached(total, goal float64) bool {
	return total >= goal-goalEpsilon
}

func (s DailyState) clone() DailyState {
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return DailyState{Date: s.Date, Events: events}
}

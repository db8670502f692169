// Package reminder decides when to nudge the user to drink and hands the
// reminders to a delivery channel.
package reminder

import (
	"context"
	"fmt"
)

const (
	// DefaultMessage is the body of every scheduled reminder.
	DefaultMessage = "Time to drink water! 💧"
	// Title prefixes delivered reminders.
	Title = "DrinkUp reminder 💧"
)

// DefaultHours are the local hours at which reminders fire.
var DefaultHours = []int{9, 11, 13, 15, 17, 19, 21}

// Scheduler is the local notification contract.
type Scheduler interface {
	RequestPermission(ctx context.Context) (bool, error)
	CancelAll(ctx context.Context) error
	// ScheduleDaily registers a reminder repeating every day at hour:minute.
	ScheduleDaily(ctx context.Context, hour, minute int, message string) error
}

// Plan is the set of daily reminders to install.
type Plan struct {
	Hours   []int
	Minute  int
	Message string
}

// DefaultPlan returns the built-in schedule.
func DefaultPlan() Plan {
	hours := make([]int, len(DefaultHours))
	copy(hours, DefaultHours)
	return Plan{Hours: hours, Minute: 0, Message: DefaultMessage}
}

// Validate checks hours and minute ranges.
func (p Plan) Validate() error {
	for _, h := range p.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("reminder hour %d out of range", h)
		}
	}
	if p.Minute < 0 || p.Minute > 59 {
		return fmt.Errorf("reminder minute %d out of range", p.Minute)
	}
	return nil
}

// Setup replaces whatever is scheduled with p. It returns false without
// touching the schedule when permission is denied.
func Setup(ctx context.Context, s Scheduler, p Plan) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if p.Message == "" {
		p.Message = DefaultMessage
	}

	granted, err := s.RequestPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to request notification permission: %w", err)
	}
	if !granted {
		return false, nil
	}

	if err := s.CancelAll(ctx); err != nil {
		return false, fmt.Errorf("failed to cancel reminders: %w", err)
	}
	for _, h := range p.Hours {
		if err := s.ScheduleDaily(ctx, h, p.Minute, p.Message); err != nil {
			return false, fmt.Errorf("failed to schedule reminder at %02d:%02d: %w", h, p.Minute, err)
		}
	}
	return true, nil
}

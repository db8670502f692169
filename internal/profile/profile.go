package profile

import (
	"fmt"
	"math"
	"strings"
)

// Gender drives the base of the daily goal.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// ParseGender accepts the stored form as well as the Portuguese labels
// older data was saved with.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "masculino":
		return Male, nil
	case "female", "f", "feminino":
		return Female, nil
	}
	return "", fmt.Errorf("unknown gender %q", s)
}

func (g Gender) valid() bool {
	return g == Male || g == Female
}

// Profile is what the user enters during onboarding.
type Profile struct {
	Name   string
	Age    int
	Gender Gender
	// Active is true when the user practices sport.
	Active bool
}

// ValidationError names the first profile field that failed validation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile field: %s", e.Field)
}

// Validate reports the first invalid field, if any.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name"}
	}
	if p.Age < 0 {
		return &ValidationError{Field: "age"}
	}
	if !p.Gender.valid() {
		return &ValidationError{Field: "gender"}
	}
	return nil
}

// DailyGoal returns the daily liquid-intake target in liters.
func DailyGoal(p Profile) float64 {
	base := 2.0
	if p.Gender == Female {
		base = 1.6
	}

	switch {
	case p.Age >= 18 && p.Age <= 25:
		base += 0.5
	case p.Age > 25 && p.Age <= 40:
		base += 0.3
	case p.Age > 40:
		base += 0.2
	}

	if p.Active {
		base += 0.5
	}

	return math.Round(base*10) / 10
}

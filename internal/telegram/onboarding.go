package telegram

import (
	"strconv"
	"strings"

	"drinkup/internal/profile"
)

type onboardingStep string

const (
	stepName   onboardingStep = "name"
	stepAge    onboardingStep = "age"
	stepGender onboardingStep = "gender"
	stepSport  onboardingStep = "sport"
	stepDone   onboardingStep = "done"
)

// onboardingDraft is the conversation state of the onboarding form.
type onboardingDraft struct {
	Step   onboardingStep `json:"step"`
	Name   string         `json:"name,omitempty"`
	Age    int            `json:"age,omitempty"`
	Gender profile.Gender `json:"gender,omitempty"`
	Active bool           `json:"active,omitempty"`
}

func newOnboardingDraft() *onboardingDraft {
	return &onboardingDraft{Step: stepName}
}

// Replies for rejected answers.
const (
	problemEmptyName = "Please tell me your name."
	problemBadAge    = "Please enter a valid age (a whole number, 0 or more)."
	problemBadGender = "Please choose one of the options below."
	problemBadAnswer = "Please answer yes or no."
	problemFinished  = "Onboarding is already complete."
)

// apply consumes one answer and advances the draft. A non-empty result is
// the reason the answer was rejected, worded for the user.
func (d *onboardingDraft) apply(input string) string {
	input = strings.TrimSpace(input)

	switch d.Step {
	case stepName:
		if input == "" {
			return problemEmptyName
		}
		d.Name = input
		d.Step = stepAge
	case stepAge:
		age, err := strconv.Atoi(input)
		if err != nil || age < 0 {
			return problemBadAge
		}
		d.Age = age
		d.Step = stepGender
	case stepGender:
		g, err := profile.ParseGender(input)
		if err != nil {
			return problemBadGender
		}
		d.Gender = g
		d.Step = stepSport
	case stepSport:
		active, ok := parseYesNo(input)
		if !ok {
			return problemBadAnswer
		}
		d.Active = active
		d.Step = stepDone
	default:
		return problemFinished
	}
	return ""
}

func (d *onboardingDraft) done() bool {
	return d.Step == stepDone
}

func (d *onboardingDraft) toProfile() profile.Profile {
	return profile.Profile{Name: d.Name, Age: d.Age, Gender: d.Gender, Active: d.Active}
}

// question is the prompt for the current step.
func (d *onboardingDraft) question() string {
	switch d.Step {
	case stepName:
		return "👋 Welcome to DrinkUp! What's your name?"
	case stepAge:
		return "How old are you?"
	case stepGender:
		return "What's your sex?"
	case stepSport:
		return "Do you practice sport?"
	}
	return ""
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "y", "sim", "true":
		return true, true
	case "no", "n", "não", "nao", "false":
		return false, true
	}
	return false, false
}

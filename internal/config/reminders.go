package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReminderPlan is the on-disk shape of the reminder schedule.
//
//	hours: [9, 12, 15, 18, 21]
//	minute: 30
//	message: "Water break!"
type ReminderPlan struct {
	Hours   []int  `yaml:"hours"`
	Minute  int    `yaml:"minute"`
	Message string `yaml:"message"`
}

// LoadReminderPlan reads a reminder plan from a YAML file. Fields left empty
// in the file are reported as zero values; callers fill in their defaults.
func LoadReminderPlan(path string) (*ReminderPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reminder config %s: %w", path, err)
	}

	var plan ReminderPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse reminder config %s: %w", path, err)
	}

	for _, h := range plan.Hours {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("reminder config %s: hour %d out of range", path, h)
		}
	}
	if plan.Minute < 0 || plan.Minute > 59 {
		return nil, fmt.Errorf("reminder config %s: minute %d out of range", path, plan.Minute)
	}
	return &plan, nil
}

package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"drinkup/internal/llm"
	"drinkup/internal/logging"
	"drinkup/internal/metrics"

	"go.uber.org/zap"
)

const maxComposedLength = 280

// Progress is the user's standing when a reminder fires.
type Progress struct {
	Name        string
	TotalLiters float64
	GoalLiters  float64
}

// Remaining is the volume still to drink today, never negative.
func (p Progress) Remaining() float64 {
	if r := p.GoalLiters - p.TotalLiters; r > 0 {
		return r
	}
	return 0
}

// Recorder receives one metric per model call.
type Recorder interface {
	Record(ctx context.Context, m metrics.ExecutionMetric) error
}

// Composer turns a scheduled reminder into the text the user receives.
type Composer struct {
	gen      llm.TextGenerator
	model    string
	recorder Recorder
	logger   *zap.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithRecorder records every model call on r, labelled with model.
func WithRecorder(r Recorder, model string) ComposerOption {
	return func(c *Composer) {
		c.recorder = r
		c.model = model
	}
}

// NewComposer creates a Composer. gen may be nil, in which case the fixed
// message plus a progress line is used.
func NewComposer(gen llm.TextGenerator, logger *zap.Logger, opts ...ComposerOption) *Composer {
	c := &Composer{gen: gen, logger: logging.OrNop(logger)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose never fails: any generator error falls back to the fixed text.
func (c *Composer) Compose(ctx context.Context, message string, p Progress) string {
	fallback := fixedText(message, p)
	if c.gen == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Write one short, friendly reminder (max 2 sentences, one emoji) telling %s to drink water.
Today they drank %.1f L of a %.1f L goal, %.1f L to go.
Return only the reminder text.`, nameOrFriend(p.Name), p.TotalLiters, p.GoalLiters, p.Remaining())

	start := time.Now()
	text, err := c.gen.GenerateContent(ctx, prompt)
	text = strings.TrimSpace(text)
	usable := err == nil && text != "" && utf8.RuneCountInString(text) <= maxComposedLength
	c.record(ctx, time.Since(start), !usable)

	if err != nil {
		c.logger.Warn("reminder generation failed, using fixed text", zap.Error(err))
		return fallback
	}
	if !usable {
		return fallback
	}
	return text
}

func (c *Composer) record(ctx context.Context, latency time.Duration, fallback bool) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.Record(ctx, metrics.ExecutionMetric{
		Component: "reminder",
		Model:     c.model,
		Fallback:  fallback,
		LatencyMS: latency.Milliseconds(),
	})
	if err != nil {
		c.logger.Debug("failed to record reminder metric", zap.Error(err))
	}
}

func fixedText(message string, p Progress) string {
	if message == "" {
		message = DefaultMessage
	}
	if p.GoalLiters <= 0 {
		return message
	}
	if p.Remaining() == 0 {
		return fmt.Sprintf("%s\nGoal reached today (%.1f L). Keep it up!", message, p.TotalLiters)
	}
	return fmt.Sprintf("%s\n%.1f / %.1f L so far, %.1f L to go.", message, p.TotalLiters, p.GoalLiters, p.Remaining())
}

func nameOrFriend(name string) string {
	if name == "" {
		return "the user"
	}
	return name
}

package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"drinkup/internal/storage"
)

const keyOnboarding = "@onboarding"

// SessionRepository persists the in-progress onboarding conversation so a
// restart resumes it where the user left off.
type SessionRepository struct {
	kv storage.KV
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(kv storage.KV) *SessionRepository {
	return &SessionRepository{kv: kv}
}

// GetActive returns the current draft, or nil when none is in progress.
func (sr *SessionRepository) GetActive(ctx context.Context) (*onboardingDraft, error) {
	raw, ok, err := sr.kv.Get(ctx, keyOnboarding)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var d onboardingDraft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("failed to decode onboarding session: %w", err)
	}
	return &d, nil
}

// Save stores the draft.
func (sr *SessionRepository) Save(ctx context.Context, d *onboardingDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return sr.kv.Set(ctx, keyOnboarding, string(data))
}

// Delete removes the draft.
func (sr *SessionRepository) Delete(ctx context.Context) error {
	return sr.kv.Delete(ctx, keyOnboarding)
}

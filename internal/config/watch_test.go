package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hours: [9]\n"), 0644))

	pw, err := NewPlanWatcher(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *ReminderPlan, 4)
	done := make(chan error, 1)
	go func() { done <- pw.Run(ctx, func(p *ReminderPlan) { changes <- p }) }()

	// An invalid edit is skipped, the next valid one is delivered.
	require.NoError(t, os.WriteFile(path, []byte("hours: [25]\n"), 0644))
	time.Sleep(3 * planDebounce)
	require.NoError(t, os.WriteFile(path, []byte("hours: [8, 20]\nminute: 30\n"), 0644))

	select {
	case p := <-changes:
		assert.Equal(t, []int{8, 20}, p.Hours)
		assert.Equal(t, 30, p.Minute)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewPlanWatcherMissingDir(t *testing.T) {
	_, err := NewPlanWatcher(filepath.Join(t.TempDir(), "nope", "reminders.yaml"), nil)
	assert.Error(t, err)
}

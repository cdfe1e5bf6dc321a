// Package presence tracks which users were recently active. A user is
// online if they were seen within the window (2 minutes by default).
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

const DefaultWindow = 2 * time.Minute

type Tracker interface {
	Touch(ctx context.Context, username string) error
	Online(ctx context.Context) ([]string, error)
	IsOnline(ctx context.Context, username string) (bool, error)
}

// MemoryTracker is the in-process Tracker used when no redis is configured.
type MemoryTracker struct {
	mu       sync.Mutex
	window   time.Duration
	lastSeen map[string]time.Time
	now      func() time.Time
}

func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryTracker{
		window:   window,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (t *MemoryTracker) Touch(_ context.Context, username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[username] = t.now()
	return nil
}

func (t *MemoryTracker) Online(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	threshold := t.now().Add(-t.window)
	out := make([]string, 0, len(t.lastSeen))
	for name, seen := range t.lastSeen {
		if seen.Before(threshold) {
			delete(t.lastSeen, name) // self-cleaning
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (t *MemoryTracker) IsOnline(_ context.Context, username string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.lastSeen[username]
	return ok && !seen.Before(t.now().Add(-t.window)), nil
}

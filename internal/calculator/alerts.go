package calculator

import (
	"sync"
	"time"
)

type sentAlert struct {
	edge float64
	at   time.Time
}

// alertTracker holds back repeat alerts for the same contest side. A repeat
// goes out once the cooldown has passed or the edge grew by minIncrease.
type alertTracker struct {
	mu          sync.Mutex
	cooldown    time.Duration
	minIncrease float64
	sent        map[string]sentAlert
}

func newAlertTracker(cooldown time.Duration, minIncrease float64) *alertTracker {
	if cooldown <= 0 {
		return nil
	}
	return &alertTracker{
		cooldown:    cooldown,
		minIncrease: minIncrease,
		sent:        make(map[string]sentAlert),
	}
}

func (t *alertTracker) shouldSend(key string, edge float64, now time.Time) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.sent[key]
	if !ok || now.Sub(last.at) >= t.cooldown {
		return true
	}
	return t.minIncrease > 0 && edge-last.edge >= t.minIncrease
}

func (t *alertTracker) record(key string, edge float64, now time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.sent[key] = sentAlert{edge: edge, at: now}
	t.mu.Unlock()
}

// prune forgets alerts older than the cooldown.
func (t *alertTracker) prune(now time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	for k, v := range t.sent {
		if now.Sub(v.at) >= t.cooldown {
			delete(t.sent, k)
		}
	}
	t.mu.Unlock()
}

func (t *alertTracker) len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

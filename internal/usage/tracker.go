// Package usage tracks period-bucketed counters, primarily the number
// of live sends per UTC day for the daily cap.
package usage

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/store"
)

// KeySends is the counter key for live outreach sends.
const KeySends = "sends"

// Clock supplies the current time. Injected so tests can pin the day
// boundary.
type Clock func() time.Time

// Tracker counts events per key within the current UTC day.
type Tracker interface {
	// Count returns today's total for key.
	Count(ctx context.Context, key string) (int, error)
	// Record adds delta to today's total for key and returns the new total.
	Record(ctx context.Context, key string, delta int) (int, error)
}

// DayBucket formats t as the UTC day bucket used for counters.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// StoreTracker persists counters through the store so the daily cap
// survives process restarts.
type StoreTracker struct {
	store store.Store
	now   Clock
}

func NewStoreTracker(s store.Store, now Clock) *StoreTracker {
	if now == nil {
		now = time.Now
	}
	return &StoreTracker{store: s, now: now}
}

func (t *StoreTracker) Count(ctx context.Context, key string) (int, error) {
	n, err := t.store.GetCounter(ctx, key, DayBucket(t.now()))
	if err != nil {
		return 0, eris.Wrapf(err, "usage: count %s", key)
	}
	return n, nil
}

func (t *StoreTracker) Record(ctx context.Context, key string, delta int) (int, error) {
	n, err := t.store.IncrementCounter(ctx, key, DayBucket(t.now()), delta)
	if err != nil {
		return 0, eris.Wrapf(err, "usage: record %s", key)
	}
	return n, nil
}

// MemoryTracker is an in-process Tracker for tests and dry runs.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[string]int
	now    Clock
}

func NewMemoryTracker(now Clock) *MemoryTracker {
	if now == nil {
		now = time.Now
	}
	return &MemoryTracker{counts: make(map[string]int), now: now}
}

func (t *MemoryTracker) Count(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key+"/"+DayBucket(t.now())], nil
}

func (t *MemoryTracker) Record(_ context.Context, key string, delta int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key + "/" + DayBucket(t.now())
	t.counts[k] += delta
	return t.counts[k], nil
}

// Package quota tracks OCR calls against the monthly allowance.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// periodKey renders a calendar month as "2026-08".
func periodKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// InMemoryCounter counts OCR usage in process memory. Suitable for tests
// and single-instance kiosks; counts reset on restart.
type InMemoryCounter struct {
	mu   sync.Mutex
	used map[string]int64
}

func NewInMemoryCounter() *InMemoryCounter {
	return &InMemoryCounter{used: make(map[string]int64)}
}

// Increment counts one call against the month unless the ceiling is already
// reached. A rejected call does not move the counter, so retries at the
// limit leave the stored total at the ceiling.
func (c *InMemoryCounter) Increment(_ context.Context, year int, month time.Month, ceiling int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := periodKey(year, month)
	if c.used[key] >= ceiling {
		return c.used[key], false, nil
	}
	c.used[key]++
	return c.used[key], true, nil
}

// Used reports the recorded calls for a month without counting one.
func (c *InMemoryCounter) Used(_ context.Context, year int, month time.Month) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used[periodKey(year, month)], nil
}

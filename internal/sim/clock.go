// v2
// internal/sim/clock.go
package sim

import (
	"sync"
	"time"
)

// Clock is the simulation clock. One tick of the runtime advances it by one
// simulated minute, so a one-second real ticker yields the original pace of
// one simulated minute per real second. The clock can also be advanced
// manually, and crossing midnight rolls the simulated date forward
// naturally.
type Clock struct {
	mu      sync.Mutex
	start   time.Time
	elapsed int // simulated minutes since start
	running bool
}

// NewClock returns a stopped clock whose simulated time starts at the given
// time-of-day on today's date.
func NewClock(startOfDay time.Duration) *Clock {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return &Clock{start: midnight.Add(startOfDay)}
}

// Start lets ticks advance the clock.
func (c *Clock) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
}

// Pause freezes the clock; ticks become no-ops until Start.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Running reports whether ticks currently advance the clock.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Tick advances by one simulated minute when running and reports whether it
// advanced.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.elapsed++
	return true
}

// Advance moves the clock forward by n simulated minutes regardless of the
// running state.
func (c *Clock) Advance(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.elapsed += n
	c.mu.Unlock()
}

// Now returns the current simulated instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.elapsed) * time.Minute)
}

// Minutes returns the simulated minutes elapsed since the clock started.
func (c *Clock) Minutes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Package annotations provides a low-overhead annotation system for
// tracking join execution metrics and debugging information.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Join lifecycle
	JoinNested = "join/nested"
	JoinHash   = "join/hash"
	JoinMerge  = "join/merge"
	JoinRewind = "join/rewind"

	// Hash join phases
	HashBuild = "hash/build"
	HashProbe = "hash/probe"

	// Sort-merge pipeline stages
	MergeMaterialize = "merge/materialize"
	SortLevelOne     = "sort/level1"
	SortLevelTwo     = "sort/level2"
	PartitionRange   = "partition/range"
	MergeScan        = "merge/scan"

	// Table storage
	StoreLoad = "store/load"
	StoreScan = "store/scan"

	// Errors
	ErrorChild  = "error/child-stream"
	ErrorWorker = "error/worker"
)

// Event represents a single annotation event during join execution.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events during join execution.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event

	// Pre-allocated buffers to minimize allocations
	dataPool []map[string]interface{}
	poolIdx  int
	mu       sync.Mutex // Protects events, dataPool and poolIdx
}

// NewCollector creates a new annotation collector. A nil handler
// disables collection entirely.
func NewCollector(handler Handler) *Collector {
	const poolSize = 32
	c := &Collector{
		enabled:  handler != nil,
		handler:  handler,
		events:   make([]Event, 0, 64),
		dataPool: make([]map[string]interface{}, poolSize),
	}

	for i := range c.dataPool {
		c.dataPool[i] = make(map[string]interface{}, 8)
	}

	return c
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	return c.handler
}

// Enabled reports whether events are being recorded.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if c == nil || !c.enabled {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event whose duration started at start.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if c == nil || !c.enabled {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// GetDataMap returns a pooled map for event data.
// Thread-safe for concurrent access.
func (c *Collector) GetDataMap() map[string]interface{} {
	if c == nil {
		return make(map[string]interface{}, 4)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poolIdx >= len(c.dataPool) {
		// Fallback to allocation if pool exhausted
		return make(map[string]interface{}, 4)
	}

	m := c.dataPool[c.poolIdx]
	c.poolIdx++

	for k := range m {
		delete(m, k)
	}

	return m
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.poolIdx = 0
}

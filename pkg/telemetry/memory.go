package telemetry

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/correlation"
)

// Kinds of recorded telemetry.
const (
	KindEvent     = "event"
	KindCounter   = "counter"
	KindException = "exception"
)

// Record is one artifact captured by MemorySink.
type Record struct {
	At            time.Time
	Exception     *StructuredError
	Properties    map[string]string
	Kind          string
	Name          string
	CorrelationID string
	Delta         float64
}

// MemorySink records telemetry in memory, in arrival order.
// It is safe for concurrent use.
type MemorySink struct {
	records []Record
	mu      sync.RWMutex
}

// NewMemorySink creates an empty recorder.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) EmitEvent(ctx context.Context, name string, props map[string]string) {
	m.add(ctx, Record{Kind: KindEvent, Name: name, Properties: maps.Clone(props)})
}

func (m *MemorySink) IncrementCounter(ctx context.Context, name string, delta float64) {
	m.add(ctx, Record{Kind: KindCounter, Name: name, Delta: delta})
}

func (m *MemorySink) EmitException(ctx context.Context, exc *StructuredError) {
	if exc == nil {
		return
	}
	m.add(ctx, Record{Kind: KindException, Name: exc.Type, Exception: exc, Properties: maps.Clone(exc.Properties)})
}

func (m *MemorySink) add(ctx context.Context, r Record) {
	r.At = time.Now()
	r.CorrelationID, _ = correlation.FromContext(ctx)

	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (m *MemorySink) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// Events returns recorded events, optionally filtered by name.
func (m *MemorySink) Events(names ...string) []Record {
	return m.filter(KindEvent, names)
}

// Counters returns recorded counter increments, optionally filtered by name.
func (m *MemorySink) Counters(names ...string) []Record {
	return m.filter(KindCounter, names)
}

// Exceptions returns recorded exception records.
func (m *MemorySink) Exceptions() []Record {
	return m.filter(KindException, nil)
}

// Total sums all increments of the named counter.
func (m *MemorySink) Total(name string) float64 {
	var sum float64
	for _, r := range m.Counters(name) {
		sum += r.Delta
	}
	return sum
}

// Reset drops all records.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}

func (m *MemorySink) filter(kind string, names []string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.Kind != kind {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, r.Name) {
			continue
		}
		out = append(out, r)
	}
	return out
}

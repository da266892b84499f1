// Package metrics accumulates per-run outcome counters (success, skip,
// fail, requests issued) and emits them as one structured summary event when
// a command finishes, so every log file ends with a machine-readable tally.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Common counter names shared across commands.
const (
	Success  = "success"
	Skipped  = "skipped"
	Failed   = "failed"
	Requests = "requests"
	Jobs     = "jobs"
	Tasks    = "tasks"
)

// Recorder accumulates dimensions, counters, and properties for a single
// summary flush. Counters are safe for concurrent use so fan-out workers can
// record directly.
type Recorder struct {
	mu         sync.Mutex
	command    string
	started    time.Time
	dimensions map[string]string
	counters   map[string]float64
	properties map[string]interface{}
	flushed    bool
}

// New creates a Recorder for the given command name.
func New(command string) *Recorder {
	return &Recorder{
		command:    command,
		started:    time.Now(),
		dimensions: make(map[string]string),
		counters:   make(map[string]float64),
		properties: make(map[string]interface{}),
	}
}

// Dimension adds a key-value pair identifying the run (task id, date).
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dimensions[key] = value
	return r
}

// Metric sets a named value, replacing any previous value.
func (r *Recorder) Metric(name string, value float64) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] = value
	return r
}

// Add increments a named counter by n.
func (r *Recorder) Add(name string, n int) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += float64(n)
	return r
}

// Count increments a named counter by one.
func (r *Recorder) Count(name string) *Recorder {
	return r.Add(name, 1)
}

// Property adds a non-counter field to the summary.
func (r *Recorder) Property(key string, value interface{}) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[key] = value
	return r
}

// Value returns the current value of a counter.
func (r *Recorder) Value(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Flush emits the summary event. Subsequent calls are no-ops.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flushed {
		return
	}
	r.flushed = true

	evt := log.Info().Str("command", r.command).Dur("elapsed", time.Since(r.started))

	if len(r.dimensions) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(r.dimensions) {
			d = d.Str(k, r.dimensions[k])
		}
		evt = evt.Dict("dimensions", d)
	}

	if len(r.counters) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(r.counters) {
			d = d.Float64(k, r.counters[k])
		}
		evt = evt.Dict("counters", d)
	}

	for k, v := range r.properties {
		evt = evt.Interface(k, v)
	}

	evt.Msg("Run summary")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package passes

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler accumulates per-pass CPU timings and counters across a frame,
// adapted from app.Profiler: same scope map + insertion-order slice, same
// stats-string rendering.
type Profiler struct {
	scopes     map[string]time.Duration
	startTimes map[string]time.Time
	counts     map[string]int
	order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes:     make(map[string]time.Duration),
		startTimes: make(map[string]time.Time),
		counts:     make(map[string]int),
		order:      make([]string, 0),
	}
}

// BeginScope records the start time of a named pass, preserving first-seen
// order for stable reporting.
func (p *Profiler) BeginScope(name string) {
	p.startTimes[name] = time.Now()
	for _, n := range p.order {
		if n == name {
			return
		}
	}
	p.order = append(p.order, name)
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.startTimes[name]; ok {
		p.scopes[name] = time.Since(start)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.counts[name] = count
}

// Reset clears durations but keeps scope order stable across frames.
func (p *Profiler) Reset() {
	for k := range p.scopes {
		p.scopes[k] = 0
	}
}

func (p *Profiler) Scope(name string) time.Duration {
	return p.scopes[name]
}

func (p *Profiler) Count(name string) int {
	return p.counts[name]
}

func (p *Profiler) StatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-20s: %.3f ms\n", name, ms)
	}

	sb.WriteString("\nCounters:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-20s: %d\n", k, p.counts[k])
	}

	return sb.String()
}

// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package health

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats tracks self-monitoring counters for redaction runs and the relay.
type Stats struct {
	startTime time.Time

	Runs                 atomic.Int64
	EventsProcessed      atomic.Int64
	EventsRemoved        atomic.Int64
	LinesProcessed       atomic.Int64
	ValuesRedacted       atomic.Int64
	TokensDiscovered     atomic.Int64
	PseudonymExhaustions atomic.Int64
	RequestsReceived     atomic.Int64
	RequestsForwarded    atomic.Int64
	ForwardErrors        atomic.Int64
	ConfigReloads        atomic.Int64
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// Uptime returns time since the stats were created.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds        float64
	Goroutines           int
	MemoryRSSBytes       uint64
	Runs                 int64
	EventsProcessed      int64
	EventsRemoved        int64
	LinesProcessed       int64
	ValuesRedacted       int64
	TokensDiscovered     int64
	PseudonymExhaustions int64
	RequestsReceived     int64
	RequestsForwarded    int64
	ForwardErrors        int64
	ConfigReloads        int64
}

// Snapshot reads every counter plus the process gauges.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:        s.Uptime().Seconds(),
		Goroutines:           runtime.NumGoroutine(),
		MemoryRSSBytes:       residentMemory(),
		Runs:                 s.Runs.Load(),
		EventsProcessed:      s.EventsProcessed.Load(),
		EventsRemoved:        s.EventsRemoved.Load(),
		LinesProcessed:       s.LinesProcessed.Load(),
		ValuesRedacted:       s.ValuesRedacted.Load(),
		TokensDiscovered:     s.TokensDiscovered.Load(),
		PseudonymExhaustions: s.PseudonymExhaustions.Load(),
		RequestsReceived:     s.RequestsReceived.Load(),
		RequestsForwarded:    s.RequestsForwarded.Load(),
		ForwardErrors:        s.ForwardErrors.Load(),
		ConfigReloads:        s.ConfigReloads.Load(),
	}
}

// residentMemory reads the process RSS, falling back to the Go runtime's
// view when the platform does not expose it.
func residentMemory() uint64 {
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem.RSS > 0 {
			return mem.RSS
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}

// metric is one exposed series. value reads it from a snapshot.
type metric struct {
	name  string
	kind  string
	help  string
	value func(Snapshot) float64
}

var metrics = []metric{
	{"veil_uptime_seconds", "gauge", "Uptime in seconds", func(s Snapshot) float64 { return s.UptimeSeconds }},
	{"veil_goroutines", "gauge", "Number of goroutines", func(s Snapshot) float64 { return float64(s.Goroutines) }},
	{"veil_memory_rss_bytes", "gauge", "Resident memory in bytes", func(s Snapshot) float64 { return float64(s.MemoryRSSBytes) }},
	{"veil_runs_total", "counter", "Redaction runs", func(s Snapshot) float64 { return float64(s.Runs) }},
	{"veil_events_processed_total", "counter", "Events processed", func(s Snapshot) float64 { return float64(s.EventsProcessed) }},
	{"veil_events_removed_total", "counter", "Events removed by type", func(s Snapshot) float64 { return float64(s.EventsRemoved) }},
	{"veil_lines_processed_total", "counter", "Text lines processed", func(s Snapshot) float64 { return float64(s.LinesProcessed) }},
	{"veil_values_redacted_total", "counter", "Values replaced", func(s Snapshot) float64 { return float64(s.ValuesRedacted) }},
	{"veil_tokens_discovered_total", "counter", "Distinct tokens discovered", func(s Snapshot) float64 { return float64(s.TokensDiscovered) }},
	{"veil_pseudonym_exhaustions_total", "counter", "Times a pseudonym template ran out of values", func(s Snapshot) float64 { return float64(s.PseudonymExhaustions) }},
	{"veil_requests_received_total", "counter", "Relay requests received", func(s Snapshot) float64 { return float64(s.RequestsReceived) }},
	{"veil_requests_forwarded_total", "counter", "Relay requests forwarded upstream", func(s Snapshot) float64 { return float64(s.RequestsForwarded) }},
	{"veil_forward_errors_total", "counter", "Failed upstream forwards", func(s Snapshot) float64 { return float64(s.ForwardErrors) }},
	{"veil_config_reloads_total", "counter", "Configuration reloads", func(s Snapshot) float64 { return float64(s.ConfigReloads) }},
}

// PrometheusMetrics renders the counters in the Prometheus text format.
func (s *Stats) PrometheusMetrics() string {
	snap := s.Snapshot()
	var b strings.Builder
	for _, m := range metrics {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %s\n",
			m.name, m.help, m.name, m.kind, m.name,
			strconv.FormatFloat(m.value(snap), 'g', -1, 64))
	}
	return b.String()
}

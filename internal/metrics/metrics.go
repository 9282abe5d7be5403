/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package metrics aggregates pipeline outcomes. A Collector is owned by
// whoever creates it; there is no process-wide instance.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
)

// Outcome describes one finished query
type Outcome struct {
	// Kind is empty for a successful query
	Kind    apperr.Kind
	Intent  analyzer.Intent
	Latency time.Duration
	// Confidence is only counted when Intent is set
	Confidence float64
}

// Snapshot is a consistent copy of the counters
type Snapshot struct {
	TotalQueries   int64              `json:"total_queries"`
	Succeeded      int64              `json:"succeeded"`
	Failed         int64              `json:"failed"`
	InFlight       int64              `json:"in_flight"`
	SuccessRate    float64            `json:"success_rate"`
	FailuresByKind map[string]int64   `json:"failures_by_kind"`
	Intents        map[string]int64   `json:"intents"`
	AvgLatencyMS   float64            `json:"avg_latency_ms"`
	AvgConfidence  float64            `json:"avg_confidence"`
	StageAvgMS     map[string]float64 `json:"stage_avg_ms"`
	Since          time.Time          `json:"since"`
	UptimeSeconds  float64            `json:"uptime_seconds"`
}

type stageStat struct {
	total time.Duration
	count int64
}

// Collector tracks query metrics
type Collector struct {
	inFlight atomic.Int64

	mu              sync.RWMutex
	since           time.Time
	succeeded       int64
	failed          int64
	failuresByKind  map[apperr.Kind]int64
	intents         map[analyzer.Intent]int64
	totalLatency    time.Duration
	confidenceSum   float64
	confidenceCount int64
	stages          map[string]*stageStat
}

// New creates an empty collector
func New() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.since = time.Now()
	c.succeeded = 0
	c.failed = 0
	c.failuresByKind = make(map[apperr.Kind]int64)
	c.intents = make(map[analyzer.Intent]int64)
	c.totalLatency = 0
	c.confidenceSum = 0
	c.confidenceCount = 0
	c.stages = make(map[string]*stageStat)
}

// Started marks a query as in flight; every call must be paired with Record
func (c *Collector) Started() {
	c.inFlight.Add(1)
}

// Record counts a finished query
func (c *Collector) Record(o Outcome) {
	c.inFlight.Add(-1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if o.Kind == "" {
		c.succeeded++
	} else {
		c.failed++
		c.failuresByKind[o.Kind]++
	}
	c.totalLatency += o.Latency
	if o.Intent != "" {
		c.intents[o.Intent]++
		c.confidenceSum += o.Confidence
		c.confidenceCount++
	}
}

// RecordStage adds the time spent reaching a pipeline state
func (c *Collector) RecordStage(stage string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stages[stage]
	if !ok {
		s = &stageStat{}
		c.stages[stage] = s
	}
	s.total += d
	s.count++
}

// Snapshot returns a copy of the current metrics
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.succeeded + c.failed
	snap := Snapshot{
		TotalQueries:   total,
		Succeeded:      c.succeeded,
		Failed:         c.failed,
		InFlight:       c.inFlight.Load(),
		FailuresByKind: make(map[string]int64, len(c.failuresByKind)),
		Intents:        make(map[string]int64, len(c.intents)),
		StageAvgMS:     make(map[string]float64, len(c.stages)),
		Since:          c.since,
		UptimeSeconds:  time.Since(c.since).Seconds(),
	}
	for k, v := range c.failuresByKind {
		snap.FailuresByKind[string(k)] = v
	}
	for k, v := range c.intents {
		snap.Intents[string(k)] = v
	}
	for k, s := range c.stages {
		snap.StageAvgMS[k] = milliseconds(s.total) / float64(s.count)
	}
	if total > 0 {
		snap.SuccessRate = float64(c.succeeded) / float64(total)
		snap.AvgLatencyMS = milliseconds(c.totalLatency) / float64(total)
	}
	if c.confidenceCount > 0 {
		snap.AvgConfidence = c.confidenceSum / float64(c.confidenceCount)
	}
	return snap
}

// Reset clears all counters except queries still in flight
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

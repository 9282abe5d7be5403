/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
)

func TestRecord(t *testing.T) {
	c := New()

	c.Started()
	c.Record(Outcome{Intent: analyzer.IntentCount, Confidence: 0.75, Latency: 100 * time.Millisecond})
	c.Started()
	c.Record(Outcome{Kind: apperr.ExecutionError, Intent: analyzer.IntentSum, Confidence: 0.25, Latency: 300 * time.Millisecond})
	c.Started()
	c.Record(Outcome{Kind: apperr.InputRejected, Latency: 200 * time.Millisecond})

	s := c.Snapshot()
	if s.TotalQueries != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("counters = %d/%d/%d", s.TotalQueries, s.Succeeded, s.Failed)
	}
	if s.InFlight != 0 {
		t.Errorf("InFlight = %d", s.InFlight)
	}
	if s.FailuresByKind["ExecutionError"] != 1 || s.FailuresByKind["InputRejected"] != 1 {
		t.Errorf("FailuresByKind = %v", s.FailuresByKind)
	}
	if s.Intents["AGGREGATION_COUNT"] != 1 || len(s.Intents) != 2 {
		t.Errorf("Intents = %v", s.Intents)
	}
	if s.AvgLatencyMS != 200 {
		t.Errorf("AvgLatencyMS = %v, want 200", s.AvgLatencyMS)
	}
	if s.AvgConfidence != 0.5 {
		t.Errorf("AvgConfidence = %v, want 0.5", s.AvgConfidence)
	}
}

func TestRecordStage(t *testing.T) {
	c := New()
	c.RecordStage("ANALYZED", 2*time.Millisecond)
	c.RecordStage("ANALYZED", 4*time.Millisecond)

	if got := c.Snapshot().StageAvgMS["ANALYZED"]; got != 3 {
		t.Errorf("stage average = %v, want 3", got)
	}
}

func TestReset(t *testing.T) {
	c := New()
	c.Started()
	c.Record(Outcome{Intent: analyzer.IntentCount, Confidence: 1})
	c.Started() // still running across the reset

	before := c.Snapshot().Since
	time.Sleep(time.Millisecond)
	c.Reset()

	s := c.Snapshot()
	if s.TotalQueries != 0 || len(s.Intents) != 0 || s.AvgConfidence != 0 {
		t.Errorf("snapshot after reset = %+v", s)
	}
	if s.InFlight != 1 {
		t.Errorf("InFlight = %d, want 1", s.InFlight)
	}
	if !s.Since.After(before) {
		t.Error("Since not moved by reset")
	}
}

func TestConcurrentRecordsSumConsistently(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Started()
			if i%5 == 0 {
				c.Record(Outcome{Kind: apperr.QueryTimeout})
				return
			}
			c.Record(Outcome{Intent: analyzer.IntentRetrieval, Confidence: 0.8})
		}(i)
	}
	wg.Wait()

	s := c.Snapshot()
	if s.TotalQueries != 50 || s.Succeeded != 40 || s.Failed != 10 {
		t.Errorf("counters = %d/%d/%d", s.TotalQueries, s.Succeeded, s.Failed)
	}
	if s.Succeeded+s.Failed != s.TotalQueries {
		t.Error("succeeded + failed != total")
	}
}

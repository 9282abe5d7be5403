/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package orchestrator

import (
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
)

// State is a step of the query lifecycle
type State string

const (
	StateReceived       State = "RECEIVED"
	StateValidatedInput State = "VALIDATED_INPUT"
	StateAnalyzed       State = "ANALYZED"
	StateSchemaMatched  State = "SCHEMA_MATCHED"
	StateSQLGenerated   State = "SQL_GENERATED"
	StateSQLValidated   State = "SQL_VALIDATED"
	StateExecuted       State = "EXECUTED"
	StateFormatted      State = "FORMATTED"
	StateComplete       State = "COMPLETE"
	StateFailed         State = "FAILED"
)

// States lists the forward path in order
var States = []State{
	StateReceived,
	StateValidatedInput,
	StateAnalyzed,
	StateSchemaMatched,
	StateSQLGenerated,
	StateSQLValidated,
	StateExecuted,
	StateFormatted,
	StateComplete,
}

var stateOrder = func() map[State]int {
	m := make(map[State]int, len(States))
	for i, s := range States {
		m[s] = i
	}
	return m
}()

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// lifecycle tracks one query through the state machine. It is owned by a
// single goroutine.
type lifecycle struct {
	id       string
	database string
	state    State
	started  time.Time
	entered  time.Time
	failKind apperr.Kind

	// nil for explanations, which are not counted as queries
	metrics *metrics.Collector
	// trace records every state entered, for tests and debug logs
	trace []State
}

func newLifecycle(id, database string, collector *metrics.Collector) *lifecycle {
	now := time.Now()
	l := &lifecycle{
		id:       id,
		database: database,
		state:    StateReceived,
		started:  now,
		entered:  now,
		metrics:  collector,
		trace:    []State{StateReceived},
	}
	if collector != nil {
		collector.Started()
	}
	return l
}

// advance moves forward to next and attributes the time spent getting
// there to next. Moving backwards or out of a terminal state is a bug.
func (l *lifecycle) advance(next State) {
	if l.state.Terminal() || stateOrder[next] <= stateOrder[l.state] {
		logging.Error("query_state_invalid", "query_id", l.id, "from", string(l.state), "to", string(next))
		return
	}
	l.enter(next)
}

// fail moves to FAILED from any non-terminal state
func (l *lifecycle) fail(kind apperr.Kind) {
	if l.state.Terminal() {
		return
	}
	l.failKind = kind
	l.enter(StateFailed)
}

func (l *lifecycle) enter(next State) {
	now := time.Now()
	d := now.Sub(l.entered)
	if l.metrics != nil {
		l.metrics.RecordStage(string(next), d)
	}
	logging.Debug("query_state",
		"query_id", l.id,
		"database", l.database,
		"from", string(l.state),
		"to", string(next),
		"duration_ms", d.Milliseconds())
	l.state = next
	l.entered = now
	l.trace = append(l.trace, next)
}

func (l *lifecycle) elapsed() time.Duration {
	return time.Since(l.started)
}

/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package orchestrator drives a question through analysis, schema
// matching, translation, validation, execution and formatting, and turns
// every failure into a user facing query error.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/executor"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/history"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/llm"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/matcher"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/translator"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/validator"
)

// Deps overrides collaborators New would otherwise build from the
// configuration. Zero fields are built.
type Deps struct {
	Manager   *database.Manager
	Generator translator.Generator
	Metrics   *metrics.Collector
	History   *history.Store
	// Now is the clock relative dates resolve against
	Now func() time.Time
}

// Request is one question
type Request struct {
	Question string
	// Database is the target; empty selects the default database
	Database string
	Format   formatter.Format
	// WithPlan asks Explain for the database's plan of the statement
	WithPlan bool
}

// settings is everything Reconfigure replaces
type settings struct {
	analyzer       *analyzer.Analyzer
	matcher        *matcher.Matcher
	validator      *validator.Validator
	limits         config.LimitsConfig
	rejectBelow    float64
	maxAttempts    int
	maxDisplayRows int
	explanations   bool
}

func newSettings(cfg *config.Config, now func() time.Time) *settings {
	maxAttempts := cfg.Translator.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &settings{
		analyzer: analyzer.New(analyzer.Options{
			BusinessTerms:     cfg.Analyzer.BusinessTerms,
			UnknownConfidence: cfg.Analyzer.UnknownConfidence,
			Now:               now,
		}),
		matcher: matcher.New(matcher.Options{
			TopK:           cfg.Matcher.TopK,
			RelevanceFloor: cfg.Matcher.RelevanceFloor,
		}),
		validator:      validator.New(cfg.Validator.SystemTables),
		limits:         cfg.Limits,
		rejectBelow:    cfg.Analyzer.RejectBelow,
		maxAttempts:    maxAttempts,
		maxDisplayRows: cfg.Limits.MaxDisplayRows,
		explanations:   cfg.Translator.ExplanationsEnabled(),
	}
}

// Orchestrator is safe for concurrent use. Queries share only the schema
// cache, the connection pools and the metrics collector.
type Orchestrator struct {
	manager    *database.Manager
	cache      *schema.Cache
	translator *translator.Translator
	executor   *executor.Executor
	metrics    *metrics.Collector
	history    *history.Store
	now        func() time.Time

	mu       sync.RWMutex
	settings *settings

	// background schema refreshes; none start once closed is set
	refreshMu sync.Mutex
	closed    bool
	refreshes sync.WaitGroup
}

// New wires the pipeline from a validated configuration
func New(cfg *config.Config, deps Deps) *Orchestrator {
	if deps.Manager == nil {
		deps.Manager = database.NewManager(cfg.Databases, cfg.DefaultDatabase)
	}
	if deps.Generator == nil {
		deps.Generator = llm.NewFromConfig(cfg.LLM)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.History == nil && cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			logging.Warn("history_unavailable", "path", cfg.History.Path, "error", err)
		} else {
			deps.History = store
		}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o := &Orchestrator{
		manager:    deps.Manager,
		translator: translator.New(deps.Generator),
		metrics:    deps.Metrics,
		history:    deps.History,
		now:        deps.Now,
		settings:   newSettings(cfg, deps.Now),
	}
	o.cache = schema.NewCache(o.manager, schema.Options{
		Retry: schema.RetryPolicy{
			MaxAttempts:     cfg.Schema.DiscoveryAttempts,
			InitialInterval: cfg.Schema.BackoffInitialDuration(),
			MaxInterval:     cfg.Schema.BackoffMaxDuration(),
		},
		DiscoveryTimeout: discoveryTimeout(cfg.Databases),
	})
	o.executor = executor.New(o.manager, o.refreshInBackground)
	return o
}

// discoveryTimeout is the longest configured discovery timeout
func discoveryTimeout(databases []config.DatabaseConfig) time.Duration {
	var longest time.Duration
	for i := range databases {
		if d := databases[i].DiscoveryTimeoutDuration(); d > longest {
			longest = d
		}
	}
	return longest
}

func (o *Orchestrator) current() *settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// Reconfigure applies a new configuration. Queries already running keep
// the settings they started with. Databases whose connection settings
// changed lose their cached schema.
func (o *Orchestrator) Reconfigure(cfg *config.Config) {
	next := newSettings(cfg, o.now)
	o.mu.Lock()
	o.settings = next
	o.mu.Unlock()

	stale := o.manager.Reconfigure(cfg.Databases, cfg.DefaultDatabase)
	for _, name := range stale {
		o.cache.Forget(name)
	}
	logging.Info("orchestrator_reconfigured", "databases", o.manager.Names(), "invalidated", stale)
}

// Warmup discovers the schema of every registered database. Failures are
// logged; the database is discovered again on first use.
func (o *Orchestrator) Warmup(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.manager.Names() {
		name := name
		g.Go(func() error {
			if _, err := o.cache.Discover(gctx, name); err != nil {
				logging.Warn("schema_warmup_failed", "database", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// refreshInBackground rediscovers a schema the executor believes is stale
func (o *Orchestrator) refreshInBackground(name string) {
	o.refreshMu.Lock()
	if o.closed {
		o.refreshMu.Unlock()
		logging.Debug("schema_auto_refresh_skipped", "database", name, "reason", "closing")
		return
	}
	o.refreshes.Add(1)
	o.refreshMu.Unlock()

	go func() {
		defer o.refreshes.Done()
		if _, err := o.cache.Refresh(context.Background(), name); err != nil {
			logging.Warn("schema_auto_refresh_failed", "database", name, "error", err)
			return
		}
		logging.Info("schema_auto_refreshed", "database", name)
	}()
}

// Close waits for background refreshes and releases pools and history.
// Calls after the first do nothing.
func (o *Orchestrator) Close() {
	o.refreshMu.Lock()
	if o.closed {
		o.refreshMu.Unlock()
		return
	}
	o.closed = true
	o.refreshMu.Unlock()

	o.refreshes.Wait()
	o.manager.Close()
	if o.history != nil {
		if err := o.history.Close(); err != nil {
			logging.Warn("history_close_failed", "error", err)
		}
	}
}

// Formatter returns a formatter using the configured display cap
func (o *Orchestrator) Formatter(format formatter.Format) *formatter.Formatter {
	return formatter.New(format, o.current().maxDisplayRows)
}

// History returns the query history, or nil when it is disabled
func (o *Orchestrator) History() *history.Store {
	return o.history
}

// Executions returns how many statements were submitted to a database
func (o *Orchestrator) Executions() int64 {
	return o.executor.Calls()
}

// prepared is a question carried as far as a validated statement
type prepared struct {
	question    string
	analysis    *analyzer.AnalyzedQuery
	selection   *matcher.Selection
	translation *translator.Result
	outcome     *validator.Outcome
}

func (p *prepared) sql() string {
	if p.translation == nil {
		return ""
	}
	return p.translation.SQL
}

func (p *prepared) rules() []string {
	if p.outcome == nil {
		return nil
	}
	return p.outcome.Rules()
}

// resolveDatabase applies the default and checks the identifier
func (o *Orchestrator) resolveDatabase(name string) (string, error) {
	if name == "" {
		name = o.manager.Default()
		if name == "" {
			return "", reject("No database is configured", "Add a database to the configuration file")
		}
	}
	return name, checkDatabase(name, o.manager.Names())
}

// prepare runs every stage up to SQL_VALIDATED. The database has already
// been resolved.
func (o *Orchestrator) prepare(ctx context.Context, run *lifecycle, s *settings, question string) (*prepared, error) {
	p := &prepared{}

	q, err := checkQuestion(question)
	if err != nil {
		return p, err
	}
	p.question = q
	run.advance(StateValidatedInput)

	p.analysis = s.analyzer.Analyze(q)
	if p.analysis.Intent == analyzer.IntentUnknown && p.analysis.Confidence < s.rejectBelow {
		return p, reject("Question doesn't appear to be a data query",
			"Please ask a question about your data",
			"Examples: 'What are our top customers?' or 'Show me sales this month'")
	}
	run.advance(StateAnalyzed)

	graph, err := o.cache.Discover(ctx, run.database)
	if err != nil {
		return p, err
	}
	p.selection, err = s.matcher.Match(p.analysis, graph)
	if err != nil {
		return p, err
	}
	run.advance(StateSchemaMatched)

	dbConfig, _ := o.manager.Config(run.database)
	in := translator.Input{
		Analysis:  p.analysis,
		Selection: p.selection,
		Graph:     graph,
		Dialect:   dbConfig.Driver,
	}
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		p.translation, err = o.translator.Translate(ctx, in, attempt)
		if err == nil {
			break
		}
		if !apperr.KindOf(err).Retryable() || ctx.Err() != nil {
			return p, err
		}
		logging.Warn("translation_attempt_failed",
			"query_id", run.id,
			"attempt", attempt+1,
			"max_attempts", s.maxAttempts,
			"error", err)
	}
	if err != nil {
		return p, apperr.Wrapf(err, apperr.TranslationError,
			"no usable statement after %d attempt(s)", s.maxAttempts)
	}
	run.advance(StateSQLGenerated)

	p.outcome = s.validator.Validate(p.translation.SQL, p.selection.TableNames(), validator.Limits{
		DefaultRows: s.limits.DefaultRows,
		MaxRows:     s.limits.MaxRows,
		Timeout:     dbConfig.QueryTimeoutDuration(),
	})
	if !p.outcome.Passed {
		return p, p.outcome.Err()
	}
	run.advance(StateSQLValidated)
	return p, nil
}

// AnalyzeAndExecute answers a question. A non-nil error is always a
// *query.Error.
func (o *Orchestrator) AnalyzeAndExecute(ctx context.Context, req Request) (*query.Result, error) {
	s := o.current()
	db, dbErr := o.resolveDatabase(req.Database)
	run := newLifecycle(uuid.NewString(), db, o.metrics)
	if dbErr != nil {
		return nil, o.fail(run, &prepared{question: req.Question}, dbErr)
	}

	p, err := o.prepare(ctx, run, s, req.Question)
	if err != nil {
		return nil, o.fail(run, p, err)
	}

	res, err := o.executor.Execute(ctx, db, p.outcome)
	if err != nil {
		return nil, o.fail(run, p, err)
	}
	run.advance(StateExecuted)

	result := &query.Result{
		ID:         run.id,
		Database:   db,
		Question:   p.question,
		SQL:        p.outcome.Statement,
		Columns:    res.Columns,
		Rows:       res.Rows,
		RowCount:   len(res.Rows),
		Truncated:  res.Truncated,
		Duration:   res.Duration,
		DurationMS: res.Duration.Milliseconds(),
		Intent:     p.analysis.Intent,
		Confidence: p.translation.Confidence,
		Tables:     p.translation.Tables,
		Note:       p.selection.Note,
	}
	result.Explanation = o.describe(ctx, run, s, p, result.RowCount)
	result.Text = formatter.New(req.Format, s.maxDisplayRows).RenderResult(result)
	run.advance(StateFormatted)

	run.advance(StateComplete)
	o.metrics.Record(metrics.Outcome{
		Intent:     result.Intent,
		Latency:    run.elapsed(),
		Confidence: result.Confidence,
	})
	o.remember(history.Entry{
		ID:         run.id,
		Database:   db,
		Question:   p.question,
		Intent:     string(result.Intent),
		SQL:        result.SQL,
		RowCount:   result.RowCount,
		DurationMS: run.elapsed().Milliseconds(),
	})
	logging.Info("query_complete",
		"query_id", run.id,
		"database", db,
		"intent", string(result.Intent),
		"rows", result.RowCount,
		"confidence", result.Confidence,
		"duration_ms", run.elapsed().Milliseconds())
	return result, nil
}

// describe puts a statement into words. Generation failures never fail
// the query; the fixed fallback text is used instead.
func (o *Orchestrator) describe(ctx context.Context, run *lifecycle, s *settings, p *prepared, rowCount int) string {
	if !s.explanations {
		return translator.FallbackDescription(p.question)
	}
	text, err := o.translator.Describe(ctx, translator.DescribeInput{
		Question: p.question,
		SQL:      p.outcome.Statement,
		Tables:   p.translation.Tables,
		RowCount: rowCount,
	})
	if err != nil {
		logging.Warn("explanation_failed", "query_id", run.id, "error", err)
		return translator.FallbackDescription(p.question)
	}
	return text
}

// fail ends a query, counts it and converts err for the caller
func (o *Orchestrator) fail(run *lifecycle, p *prepared, err error) error {
	qe := toQueryError(err, failure{id: run.id, database: run.database, sql: p.sql(), rules: p.rules()})
	run.fail(qe.Kind)

	outcome := metrics.Outcome{Kind: qe.Kind, Latency: run.elapsed()}
	if p.analysis != nil {
		outcome.Intent = p.analysis.Intent
		outcome.Confidence = p.analysis.Confidence
	}
	if run.metrics != nil {
		run.metrics.Record(outcome)

		o.remember(history.Entry{
			ID:         run.id,
			Database:   run.database,
			Question:   p.question,
			Intent:     string(outcome.Intent),
			SQL:        p.sql(),
			DurationMS: run.elapsed().Milliseconds(),
			ErrorKind:  string(qe.Kind),
		})
	}

	logging.Info("query_failed",
		"query_id", run.id,
		"database", run.database,
		"kind", string(qe.Kind),
		"rules", p.rules(),
		"error", err,
		"duration_ms", run.elapsed().Milliseconds())
	return qe
}

// remember appends to the history; failures never affect the query
func (o *Orchestrator) remember(e history.Entry) {
	if o.history == nil || e.Question == "" {
		return
	}
	if err := o.history.Record(e); err != nil {
		logging.Warn("history_write_failed", "query_id", e.ID, "error", err)
	}
}

// Explain translates and validates a question without running it. With
// WithPlan the database's plan for the statement is attached.
func (o *Orchestrator) Explain(ctx context.Context, req Request) (*query.Explanation, error) {
	s := o.current()
	db, dbErr := o.resolveDatabase(req.Database)
	run := newLifecycle(uuid.NewString(), db, nil)
	if dbErr != nil {
		return nil, o.fail(run, &prepared{}, dbErr)
	}

	p, err := o.prepare(ctx, run, s, req.Question)
	if err != nil {
		return nil, o.fail(run, p, err)
	}

	x := &query.Explanation{
		ID:         run.id,
		Database:   db,
		Question:   p.question,
		SQL:        p.outcome.Statement,
		Intent:     p.analysis.Intent,
		Confidence: p.translation.Confidence,
		Tables:     p.translation.Tables,
		Limit:      p.outcome.Limit,
		TimeoutMS:  p.outcome.Timeout.Milliseconds(),
		Note:       p.selection.Note,
	}
	for _, r := range p.selection.JoinPath {
		x.JoinPath = append(x.JoinPath, r.SourceTable+"."+r.SourceColumn+" = "+r.TargetTable+"."+r.TargetColumn)
	}

	if req.WithPlan {
		plan, err := o.executor.Plan(ctx, db, p.outcome)
		if err != nil {
			return nil, o.fail(run, p, err)
		}
		x.PlanColumns = plan.Columns
		x.Plan = plan.Rows
	}

	x.Description = o.describe(ctx, run, s, p, -1)
	x.Text = formatter.New(req.Format, s.maxDisplayRows).RenderExplanation(x)
	logging.Debug("query_explained", "query_id", run.id, "database", db, "with_plan", req.WithPlan)
	return x, nil
}

// ValidateSQL checks a caller-supplied statement against every safety rule
// without running it. The statement may reference any table of the
// database. Validation is not counted in the metrics. A non-nil error is
// always a *query.Error; a rejected statement is not an error.
func (o *Orchestrator) ValidateSQL(ctx context.Context, database, sql string, format formatter.Format) (*query.Validation, error) {
	s := o.current()
	db, err := o.resolveDatabase(database)
	if err != nil {
		return nil, toQueryError(err, failure{database: database})
	}
	if strings.TrimSpace(sql) == "" {
		return nil, toQueryError(reject("Statement is empty", "Provide a SQL statement to validate"), failure{database: db})
	}
	graph, err := o.cache.Discover(ctx, db)
	if err != nil {
		return nil, toQueryError(err, failure{database: db, sql: sql})
	}

	dbConfig, _ := o.manager.Config(db)
	outcome := s.validator.Validate(sql, graph.TableNames(), validator.Limits{
		DefaultRows: s.limits.DefaultRows,
		MaxRows:     s.limits.MaxRows,
		Timeout:     dbConfig.QueryTimeoutDuration(),
	})

	v := &query.Validation{
		Database: db,
		SQL:      sql,
		Valid:    outcome.Passed,
	}
	if outcome.Passed {
		v.Statement = outcome.Statement
		v.Limit = outcome.Limit
		v.TimeoutMS = outcome.Timeout.Milliseconds()
	}
	for _, violation := range outcome.Violations {
		v.Violations = append(v.Violations, query.Violation{
			Rule:    string(violation.Rule),
			Kind:    violation.Kind,
			Message: violation.Message,
		})
	}
	v.Text = formatter.New(format, s.maxDisplayRows).RenderValidation(v)
	logging.Debug("sql_validated", "database", db, "valid", v.Valid, "rules", outcome.Rules())
	return v, nil
}

// Schema returns the cached schema of a database, discovering it first
// if needed. A non-nil error is always a *query.Error.
func (o *Orchestrator) Schema(ctx context.Context, name string) (*schema.Graph, error) {
	db, err := o.resolveDatabase(name)
	if err != nil {
		return nil, toQueryError(err, failure{database: name})
	}
	g, err := o.cache.Discover(ctx, db)
	if err != nil {
		return nil, toQueryError(err, failure{database: db})
	}
	return g, nil
}

// RefreshSchema rediscovers a schema. Concurrent refreshes of the same
// database share one discovery.
func (o *Orchestrator) RefreshSchema(ctx context.Context, name string) (*schema.Graph, error) {
	db, err := o.resolveDatabase(name)
	if err != nil {
		return nil, toQueryError(err, failure{database: name})
	}
	g, err := o.cache.Refresh(ctx, db)
	if err != nil {
		return nil, toQueryError(err, failure{database: db})
	}
	return g, nil
}

// Databases lists the registered databases
func (o *Orchestrator) Databases() []database.Info {
	return o.manager.Describe()
}

// Metrics returns a snapshot of the query counters
func (o *Orchestrator) Metrics() metrics.Snapshot {
	return o.metrics.Snapshot()
}

// ResetMetrics clears the counters; queries in flight are still counted
// when they finish
func (o *Orchestrator) ResetMetrics() {
	o.metrics.Reset()
	logging.Info("metrics_reset")
}

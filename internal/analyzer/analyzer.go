/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package analyzer extracts keywords, entities, business terms and a
// classified intent from an English question.
package analyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Intent is the closed set of data operations a question can request
type Intent string

const (
	IntentRetrieval    Intent = "RETRIEVAL"
	IntentCount        Intent = "AGGREGATION_COUNT"
	IntentSum          Intent = "AGGREGATION_SUM"
	IntentAvg          Intent = "AGGREGATION_AVG"
	IntentComparison   Intent = "COMPARISON"
	IntentRanking      Intent = "RANKING"
	IntentTimeFiltered Intent = "TIME_FILTERED"
	IntentUnknown      Intent = "UNKNOWN"
)

// minimumPatternStrength is the weakest pattern match that still yields
// a classified intent
const minimumPatternStrength = 0.5

// Intents lists every intent in classification priority order. Ties in
// pattern strength go to the earlier entry.
var Intents = []Intent{
	IntentCount,
	IntentSum,
	IntentAvg,
	IntentRanking,
	IntentComparison,
	IntentTimeFiltered,
	IntentRetrieval,
	IntentUnknown,
}

// IsAggregation reports whether the intent computes a single value
func (i Intent) IsAggregation() bool {
	return i == IntentCount || i == IntentSum || i == IntentAvg
}

// EntityKind tells how an entity was recognised
type EntityKind string

const (
	EntityProperNoun   EntityKind = "proper_noun"
	EntityNumber       EntityKind = "number"
	EntityQuoted       EntityKind = "quoted"
	EntityDate         EntityKind = "date"
	EntityBusinessTerm EntityKind = "business_term"
)

// Entity is a span of the question worth matching against the schema
type Entity struct {
	Text string     `json:"text"`
	Kind EntityKind `json:"kind"`
	// Term is the canonical business term, when one applies
	Term string `json:"term,omitempty"`
	// Candidates are table or column names the entity may refer to
	Candidates []string   `json:"candidates,omitempty"`
	Value      float64    `json:"value,omitempty"`
	Range      *TimeRange `json:"range,omitempty"`
}

// Aggregation is an aggregate function implied by a phrase
type Aggregation struct {
	Phrase   string `json:"phrase"`
	Function string `json:"function"`
}

// Complexity is a coarse rating of how involved a question is
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// AnalyzedQuery is the immutable result of analysing one question
type AnalyzedQuery struct {
	Question     string        `json:"question"`
	Normalized   string        `json:"normalized"`
	Keywords     []string      `json:"keywords"`
	Entities     []Entity      `json:"entities"`
	Terms        []string      `json:"terms,omitempty"`
	Intent       Intent        `json:"intent"`
	Confidence   float64       `json:"confidence"`
	Limit        int           `json:"limit,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	TimeRange    *TimeRange    `json:"time_range,omitempty"`
	Complexity   Complexity    `json:"complexity"`
}

// Options configures an Analyzer
type Options struct {
	// BusinessTerms extends the default canonical term to synonym mapping
	BusinessTerms map[string][]string
	// UnknownConfidence caps the confidence of UNKNOWN classifications
	UnknownConfidence float64
	// Now is the clock relative dates resolve against
	Now func() time.Time
}

// Analyzer is safe for concurrent use; it holds no per-question state
type Analyzer struct {
	terms        map[string][]string
	bySynonym    map[string]string
	phrases      []phrase
	unknownFloor float64
	now          func() time.Time
}

type phrase struct {
	text string
	term string
}

// New builds an analyzer from the default term map merged with opts
func New(opts Options) *Analyzer {
	a := &Analyzer{
		terms:        mergeTerms(DefaultBusinessTerms(), opts.BusinessTerms),
		bySynonym:    make(map[string]string),
		unknownFloor: opts.UnknownConfidence,
		now:          opts.Now,
	}
	if a.unknownFloor <= 0 || a.unknownFloor > 1 {
		a.unknownFloor = 0.3
	}
	if a.now == nil {
		a.now = time.Now
	}

	canon := make([]string, 0, len(a.terms))
	for term := range a.terms {
		canon = append(canon, term)
	}
	sort.Strings(canon)
	for _, term := range canon {
		a.index(term, term)
		for _, syn := range a.terms[term] {
			a.index(syn, term)
		}
	}
	// longest phrases first so "order item" wins over "order"
	sort.SliceStable(a.phrases, func(i, j int) bool {
		return len(a.phrases[i].text) > len(a.phrases[j].text)
	})
	return a
}

func (a *Analyzer) index(surface, term string) {
	surface = strings.ToLower(strings.TrimSpace(surface))
	if surface == "" {
		return
	}
	if strings.Contains(surface, " ") {
		a.phrases = append(a.phrases, phrase{text: surface, term: term})
		return
	}
	if _, taken := a.bySynonym[Stem(surface)]; !taken {
		a.bySynonym[Stem(surface)] = term
	}
}

// Terms returns the effective business term map
func (a *Analyzer) Terms() map[string][]string {
	out := make(map[string][]string, len(a.terms))
	for k, v := range a.terms {
		out[k] = append([]string(nil), v...)
	}
	return out
}

var (
	quotedPattern     = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
	numberPattern     = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	topNPattern       = regexp.MustCompile(`\b(?:top|bottom|first|last|best|worst)\s+(\d+|[a-z]+)\b`)
	spaceRun          = regexp.MustCompile(`\s+`)
)

// Analyze runs every extraction step over question
func (a *Analyzer) Analyze(question string) *AnalyzedQuery {
	normalized := strings.ToLower(strings.TrimSpace(spaceRun.ReplaceAllString(question, " ")))
	q := &AnalyzedQuery{
		Question:   question,
		Normalized: normalized,
	}

	tokens := Tokenize(normalized)
	q.Keywords = keywords(tokens)

	var dateSpans [][]int
	q.TimeRange, dateSpans = a.timeEntities(q, normalized)
	q.Entities = append(q.Entities, quotedEntities(question)...)
	q.Entities = append(q.Entities, properNouns(question)...)
	q.Entities = append(q.Entities, numberEntities(normalized, dateSpans)...)

	recognised := a.businessTerms(q, normalized)
	q.Aggregations = aggregations(normalized)
	q.Limit = topN(normalized)

	strength := 0.0
	q.Intent, strength = classify(normalized, q.TimeRange != nil)

	coverage := 0.0
	if len(q.Keywords) > 0 {
		coverage = float64(recognised) / float64(len(q.Keywords))
	}
	q.Confidence = a.confidence(q, strength, coverage)
	q.Complexity = complexity(q, normalized)
	return q
}

// confidence combines pattern strength with business term coverage
func (a *Analyzer) confidence(q *AnalyzedQuery, strength, coverage float64) float64 {
	if q.Intent == IntentUnknown {
		if len(q.Keywords) == 0 {
			return 0
		}
		return round2(minFloat(a.unknownFloor, 0.1+0.2*coverage))
	}
	return round2(minFloat(1, 0.5+0.3*strength+0.2*coverage))
}

// businessTerms records canonical terms and returns how many keywords
// were recognised
func (a *Analyzer) businessTerms(q *AnalyzedQuery, normalized string) int {
	seen := make(map[string]bool)
	add := func(surface, term string) {
		if !seen[term] {
			seen[term] = true
			q.Terms = append(q.Terms, term)
		}
		q.Entities = append(q.Entities, Entity{
			Text:       surface,
			Kind:       EntityBusinessTerm,
			Term:       term,
			Candidates: append([]string{term}, a.terms[term]...),
		})
	}

	covered := make(map[string]bool)
	for _, p := range a.phrases {
		if containsWord(normalized, p.text) {
			add(p.text, p.term)
			for _, w := range strings.Fields(p.text) {
				covered[w] = true
			}
		}
	}

	recognised := 0
	for _, kw := range q.Keywords {
		if covered[kw] {
			recognised++
			continue
		}
		if term, ok := a.bySynonym[Stem(kw)]; ok {
			add(kw, term)
			recognised++
		}
	}
	return recognised
}

// Tokenize lower-cases text and splits it on anything that is not a
// letter, digit or underscore
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
}

// keywords drops stop-words, filler, numbers and very short tokens,
// keeping first-occurrence order
func keywords(tokens []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 3 || stopWords[tok] || isNumeric(tok) || seen[tok] {
			continue
		}
		if _, spelled := spelledNumbers[tok]; spelled {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func quotedEntities(question string) []Entity {
	var out []Entity
	for _, m := range quotedPattern.FindAllStringSubmatch(question, -1) {
		text := m[1]
		if text == "" {
			text = m[2]
		}
		out = append(out, Entity{Text: text, Kind: EntityQuoted})
	}
	return out
}

// properNouns returns capitalised words that are not at the start of the
// question and are not ordinary vocabulary
func properNouns(question string) []Entity {
	var out []Entity
	seen := make(map[string]bool)
	for _, loc := range properNounPattern.FindAllStringIndex(question, -1) {
		word := question[loc[0]:loc[1]]
		if strings.TrimSpace(question[:loc[0]]) == "" {
			continue
		}
		lower := strings.ToLower(word)
		if stopWords[lower] || monthNames[lower] != 0 || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, Entity{Text: word, Kind: EntityProperNoun})
	}
	return out
}

func numberEntities(normalized string, skip [][]int) []Entity {
	var out []Entity
	for _, loc := range numberPattern.FindAllStringIndex(normalized, -1) {
		if inSpans(loc, skip) {
			continue
		}
		text := normalized[loc[0]:loc[1]]
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			continue
		}
		out = append(out, Entity{Text: text, Kind: EntityNumber, Value: v})
	}
	for _, tok := range Tokenize(normalized) {
		if v, ok := spelledNumbers[tok]; ok {
			out = append(out, Entity{Text: tok, Kind: EntityNumber, Value: float64(v)})
		}
	}
	return out
}

// topN returns N from "top N", "bottom five" and similar, or 0
func topN(normalized string) int {
	for _, m := range topNPattern.FindAllStringSubmatch(normalized, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
		if n := spelledNumbers[m[1]]; n > 0 {
			return n
		}
	}
	return 0
}

func aggregations(normalized string) []Aggregation {
	var out []Aggregation
	seen := make(map[string]bool)
	for _, p := range aggregationPhrases {
		if containsWord(normalized, p.Phrase) && !seen[p.Function] {
			seen[p.Function] = true
			out = append(out, p)
		}
	}
	return out
}

func complexity(q *AnalyzedQuery, normalized string) Complexity {
	score := len(q.Terms)
	if q.TimeRange != nil {
		score++
	}
	if len(q.Aggregations) > 0 {
		score++
	}
	for _, p := range comparisonPhrases {
		if containsWord(normalized, p) {
			score++
			break
		}
	}
	if len(strings.Fields(normalized)) > 15 {
		score++
	}

	switch {
	case score <= 2:
		return ComplexitySimple
	case score <= 4:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}

// Stem reduces an English plural to its singular form, enough to match
// "categories" with "category" and "orders" with "order"
func Stem(word string) string {
	w := strings.ToLower(word)
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "xes") ||
		strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") &&
		!strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:len(w)-1]
	}
	return w
}

// containsWord reports whether phrase occurs in text on word boundaries
func containsWord(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func inSpans(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] >= s[0] && loc[1] <= s[1] {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

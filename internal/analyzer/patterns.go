/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

var stopWords = toSet(
	"a", "about", "all", "also", "am", "an", "and", "any", "are", "as", "at",
	"be", "been", "by", "can", "could", "did", "display", "do", "does", "done",
	"each", "every", "find", "for", "from", "get", "give", "got", "had", "has",
	"have", "having", "he", "hello", "her", "hey", "hi", "him", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "just", "know", "last", "let", "like",
	"list", "many", "me", "much", "my", "need", "of", "off", "ok", "okay", "on",
	"or", "our", "ours", "out", "please", "past", "previous", "really", "she", "should", "show",
	"so", "some", "tell", "than", "thank", "thanks", "that", "the", "their",
	"them", "then", "there", "these", "they", "this", "those", "to", "today",
	"top", "up", "us",
	"very", "want", "was", "we", "were", "what", "when", "where", "which",
	"who", "whom", "why", "will", "with", "would", "yes", "yesterday", "you",
	"your",
)

var spelledNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "hundred": 100,
}

var aggregationPhrases = []Aggregation{
	{Phrase: "how many", Function: "COUNT"},
	{Phrase: "number of", Function: "COUNT"},
	{Phrase: "count", Function: "COUNT"},
	{Phrase: "total", Function: "SUM"},
	{Phrase: "sum", Function: "SUM"},
	{Phrase: "average", Function: "AVG"},
	{Phrase: "avg", Function: "AVG"},
	{Phrase: "mean", Function: "AVG"},
	{Phrase: "maximum", Function: "MAX"},
	{Phrase: "highest", Function: "MAX"},
	{Phrase: "max", Function: "MAX"},
	{Phrase: "minimum", Function: "MIN"},
	{Phrase: "lowest", Function: "MIN"},
	{Phrase: "min", Function: "MIN"},
}

var comparisonPhrases = []string{
	"greater than", "more than", "less than", "fewer than", "at least",
	"at most", "above", "below", "between", "compare", "versus", "vs",
}

// DefaultBusinessTerms maps canonical terms to their common synonyms
func DefaultBusinessTerms() map[string][]string {
	return map[string][]string{
		"customer":  {"client", "user", "account", "buyer", "patron"},
		"order":     {"purchase", "transaction", "order item"},
		"revenue":   {"sale", "income", "earning", "turnover"},
		"product":   {"item", "sku", "good", "merchandise"},
		"employee":  {"staff", "worker", "personnel", "rep", "salesperson"},
		"amount":    {"price", "cost", "value", "total"},
		"date":      {"time", "period", "day"},
		"region":    {"area", "territory", "location", "country", "city"},
		"supplier":  {"vendor", "provider"},
		"category":  {"type", "class", "group", "segment"},
		"inventory": {"stock", "warehouse"},
	}
}

// mergeTerms adds extra synonyms, and extra canonical terms, to base
func mergeTerms(base, extra map[string][]string) map[string][]string {
	for term, syns := range extra {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		have := toSet(base[term]...)
		for _, s := range syns {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" && !have[s] {
				have[s] = true
				base[term] = append(base[term], s)
			}
		}
		if _, ok := base[term]; !ok {
			base[term] = nil
		}
	}
	return base
}

type intentPattern struct {
	intent Intent
	re     *regexp.Regexp
	weight float64
}

func pattern(intent Intent, expr string, weight float64) intentPattern {
	return intentPattern{intent: intent, re: regexp.MustCompile(`\b(?:` + expr + `)\b`), weight: weight}
}

var intentPatterns = []intentPattern{
	pattern(IntentCount, `how many`, 1.0),
	pattern(IntentCount, `number of|count of`, 0.9),
	pattern(IntentCount, `count|counts`, 0.8),

	pattern(IntentSum, `sum of`, 1.0),
	pattern(IntentSum, `sum|total|totals|combined`, 0.8),

	pattern(IntentAvg, `average|avg`, 1.0),
	pattern(IntentAvg, `mean|typical`, 0.8),

	pattern(IntentRanking, `(?:top|bottom) (?:\d+|`+spelledAlternation()+`)`, 1.0),
	pattern(IntentRanking, `rank|ranked|ranking`, 0.9),
	pattern(IntentRanking, `top|highest|lowest|largest|smallest|biggest`, 0.8),
	pattern(IntentRanking, `best|worst|most|least`, 0.6),

	pattern(IntentComparison, `compare|compared|comparison|versus|vs`, 1.0),
	pattern(IntentComparison, `greater than|more than|less than|fewer than|difference between`, 0.9),
	pattern(IntentComparison, `at least|at most|above|below|between`, 0.6),

	pattern(IntentTimeFiltered, `since|before|after|during`, 0.6),

	pattern(IntentRetrieval, `list|show|display|give me|find`, 0.8),
	pattern(IntentRetrieval, `what are|which|who|get|fetch|retrieve`, 0.6),
	pattern(IntentRetrieval, `all`, 0.5),
}

func spelledAlternation() string {
	words := make([]string, 0, len(spelledNumbers))
	for w := range spelledNumbers {
		words = append(words, w)
	}
	sort.Strings(words)
	return strings.Join(words, "|")
}

// classify scores every intent by its strongest matching pattern, plus a
// small bonus per extra match, and returns the best one
func classify(normalized string, hasTimeExpression bool) (Intent, float64) {
	best := make(map[Intent]float64)
	hits := make(map[Intent]int)
	for _, p := range intentPatterns {
		if !p.re.MatchString(normalized) {
			continue
		}
		hits[p.intent]++
		if p.weight > best[p.intent] {
			best[p.intent] = p.weight
		}
	}
	if hasTimeExpression {
		hits[IntentTimeFiltered]++
		if best[IntentTimeFiltered] < 0.8 {
			best[IntentTimeFiltered] = 0.8
		}
	}

	chosen, strength := IntentUnknown, 0.0
	for _, intent := range Intents {
		score, ok := best[intent]
		if !ok {
			continue
		}
		score = minFloat(1, score+0.1*float64(hits[intent]-1))
		if score > strength {
			chosen, strength = intent, score
		}
	}
	if strength < minimumPatternStrength {
		return IntentUnknown, 0
	}
	return chosen, strength
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

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
	"strconv"
	"time"
)

// TimeRange is a half-open interval [From, To) a question refers to
type TimeRange struct {
	Expression string    `json:"expression"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

var (
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDatePattern    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	longDatePattern  = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2}),?\s+(\d{4})\b`)
	yearPattern      = regexp.MustCompile(`\b(?:in|during|for|of|since) ((?:19|20)\d{2})\b`)
	dayPattern       = regexp.MustCompile(`\b(today|yesterday)\b`)
	periodPattern    = regexp.MustCompile(`\b(this|current|last|previous|past) (week|month|quarter|year)\b`)
	lastNUnitPattern = regexp.MustCompile(`\b(?:last|past|previous) (\d+|[a-z]+) (days?|weeks?|months?|years?)\b`)
)

type timeMatch struct {
	span []int
	r    TimeRange
}

// timeEntities finds explicit and relative date expressions. It returns
// the earliest one as the question's time range along with the spans
// covered by dates, so their digits are not also read as numbers.
func (a *Analyzer) timeEntities(q *AnalyzedQuery, normalized string) (*TimeRange, [][]int) {
	now := a.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var found []timeMatch
	add := func(loc []int, from, to time.Time) {
		found = append(found, timeMatch{
			span: loc,
			r:    TimeRange{Expression: normalized[loc[0]:loc[1]], From: from, To: to},
		})
	}

	for _, m := range isoDatePattern.FindAllStringSubmatchIndex(normalized, -1) {
		if d, ok := makeDate(normalized, m[2:4], m[4:6], m[6:8], today.Location()); ok {
			add(m[:2], d, d.AddDate(0, 0, 1))
		}
	}
	for _, m := range usDatePattern.FindAllStringSubmatchIndex(normalized, -1) {
		if d, ok := makeDate(normalized, m[6:8], m[2:4], m[4:6], today.Location()); ok {
			add(m[:2], d, d.AddDate(0, 0, 1))
		}
	}
	for _, m := range longDatePattern.FindAllStringSubmatchIndex(normalized, -1) {
		month := monthNames[normalized[m[2]:m[3]]]
		day, _ := strconv.Atoi(normalized[m[4]:m[5]])
		year, _ := strconv.Atoi(normalized[m[6]:m[7]])
		if d, ok := validDate(year, month, day, today.Location()); ok {
			add(m[:2], d, d.AddDate(0, 0, 1))
		}
	}
	for _, m := range yearPattern.FindAllStringSubmatchIndex(normalized, -1) {
		year, _ := strconv.Atoi(normalized[m[2]:m[3]])
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, today.Location())
		add(m[2:4], from, from.AddDate(1, 0, 0))
	}
	for _, m := range dayPattern.FindAllStringSubmatchIndex(normalized, -1) {
		if normalized[m[2]:m[3]] == "today" {
			add(m[:2], today, today.AddDate(0, 0, 1))
		} else {
			add(m[:2], today.AddDate(0, 0, -1), today)
		}
	}
	for _, m := range periodPattern.FindAllStringSubmatchIndex(normalized, -1) {
		previous := normalized[m[2]:m[3]] != "this" && normalized[m[2]:m[3]] != "current"
		from, to := period(today, normalized[m[4]:m[5]], previous)
		add(m[:2], from, to)
	}
	for _, m := range lastNUnitPattern.FindAllStringSubmatchIndex(normalized, -1) {
		n, err := strconv.Atoi(normalized[m[2]:m[3]])
		if err != nil {
			n = spelledNumbers[normalized[m[2]:m[3]]]
		}
		if n <= 0 {
			continue
		}
		end := today.AddDate(0, 0, 1)
		var from time.Time
		switch normalized[m[4] : m[4]+3] {
		case "day":
			from = end.AddDate(0, 0, -n)
		case "wee":
			from = end.AddDate(0, 0, -7*n)
		case "mon":
			from = end.AddDate(0, -n, 0)
		default:
			from = end.AddDate(-n, 0, 0)
		}
		add(m[:2], from, end)
	}

	if len(found) == 0 {
		return nil, nil
	}

	// overlapping matches keep the widest span
	// starting at each position
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].span[0] != found[j].span[0] {
			return found[i].span[0] < found[j].span[0]
		}
		return found[i].span[1] > found[j].span[1]
	})

	var spans [][]int
	for _, f := range found {
		if inSpans(f.span, spans) {
			continue
		}
		spans = append(spans, f.span)
		r := f.r
		q.Entities = append(q.Entities, Entity{Text: r.Expression, Kind: EntityDate, Range: &r})
	}
	first := found[0].r
	return &first, spans
}

// period returns the calendar week, month, quarter or year containing
// today, or the one before it
func period(today time.Time, unit string, previous bool) (time.Time, time.Time) {
	var from time.Time
	var step func(time.Time, int) time.Time
	switch unit {
	case "week":
		offset := (int(today.Weekday()) + 6) % 7 // weeks start on Monday
		from = today.AddDate(0, 0, -offset)
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }
	case "month":
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }
	case "quarter":
		first := time.Month((int(today.Month())-1)/3*3 + 1)
		from = time.Date(today.Year(), first, 1, 0, 0, 0, 0, today.Location())
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 3*n, 0) }
	default:
		from = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
		step = func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) }
	}
	if previous {
		from = step(from, -1)
	}
	return from, step(from, 1)
}

func makeDate(s string, y, m, d []int, loc *time.Location) (time.Time, bool) {
	year, _ := strconv.Atoi(s[y[0]:y[1]])
	month, _ := strconv.Atoi(s[m[0]:m[1]])
	day, _ := strconv.Atoi(s[d[0]:d[1]])
	return validDate(year, month, day, loc)
}

func validDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalises Feb 30 into March
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit reports on the workspace audit trail: operation counts,
// search history, and a PRISMA-style screening flow assembled from
// search and filter events.
package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/pm-tools/internal/store"
)

// Summary counts audit events by operation.
type Summary struct {
	TotalEvents int
	ByOp        map[string]int
}

// Summarize reads the workspace audit trail and tallies events per op.
// Events without an op field count under "unknown".
func Summarize(ws *store.Workspace) (Summary, error) {
	events, err := ws.Events()
	if err != nil {
		return Summary{}, err
	}
	s := Summary{ByOp: make(map[string]int)}
	for _, e := range events {
		op, _ := e["op"].(string)
		if op == "" {
			op = "unknown"
		}
		s.ByOp[op]++
		s.TotalEvents++
	}
	return s, nil
}

// SearchEvent is one recorded search.
type SearchEvent struct {
	Query  string
	Count  int
	TS     string
	Cached bool
}

// Searches lists recorded search operations in trail order.
func Searches(ws *store.Workspace) ([]SearchEvent, error) {
	events, err := ws.Events()
	if err != nil {
		return nil, err
	}
	var out []SearchEvent
	for _, e := range events {
		if op, _ := e["op"].(string); op != "search" {
			continue
		}
		se := SearchEvent{}
		se.Query, _ = e["query"].(string)
		se.TS, _ = e["ts"].(string)
		se.Cached, _ = e["cached"].(bool)
		se.Count = intField(e, "count")
		out = append(out, se)
	}
	return out, nil
}

// FilterEvent is one recorded screening step.
type FilterEvent struct {
	Input    int
	Output   int
	Excluded int
	Criteria map[string]any
	TS       string
}

// Filters lists recorded filter operations in trail order.
func Filters(ws *store.Workspace) ([]FilterEvent, error) {
	events, err := ws.Events()
	if err != nil {
		return nil, err
	}
	var out []FilterEvent
	for _, e := range events {
		if op, _ := e["op"].(string); op != "filter" {
			continue
		}
		fe := FilterEvent{
			Input:    intField(e, "input"),
			Output:   intField(e, "output"),
			Excluded: intField(e, "excluded"),
		}
		fe.TS, _ = e["ts"].(string)
		fe.Criteria, _ = e["criteria"].(map[string]any)
		out = append(out, fe)
	}
	return out, nil
}

// intField reads a numeric event field. JSON round-trip turns ints into
// float64, so both are accepted.
func intField(e map[string]any, key string) int {
	switch v := e[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// FormatSummary renders the operation summary for display.
func FormatSummary(s Summary) string {
	var b strings.Builder
	b.WriteString("Audit Trail Summary\n")
	b.WriteString("===================\n\n")
	if s.TotalEvents == 0 {
		b.WriteString("No operations recorded.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Total operations: %d\n\n", s.TotalEvents)
	ops := make([]string, 0, len(s.ByOp))
	for op := range s.ByOp {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Fprintf(&b, "  %-12s %5d\n", op, s.ByOp[op])
	}
	return b.String()
}

// FormatSearches renders the search history for display.
func FormatSearches(searches []SearchEvent) string {
	var b strings.Builder
	b.WriteString("Search History\n")
	b.WriteString("==============\n\n")
	if len(searches) == 0 {
		b.WriteString("No searches recorded.\n")
		return b.String()
	}
	for _, s := range searches {
		day := s.TS
		if len(day) > 10 {
			day = day[:10]
		}
		marker := ""
		if s.Cached {
			marker = " (cached)"
		}
		fmt.Fprintf(&b, "  [%s] %q -> %d PMIDs%s\n", day, s.Query, s.Count, marker)
	}
	return b.String()
}

// FormatPRISMA renders a PRISMA-style flow: records identified through
// searches, then each screening step with its exclusion count.
func FormatPRISMA(searches []SearchEvent, filters []FilterEvent) string {
	var b strings.Builder
	b.WriteString("PRISMA Flow\n")
	b.WriteString("===========\n\n")

	identified := 0
	for _, s := range searches {
		if !s.Cached {
			identified += s.Count
		}
	}
	fmt.Fprintf(&b, "Identified via search: %d records (%d searches)\n", identified, len(searches))
	if len(filters) == 0 {
		b.WriteString("No screening steps recorded.\n")
		return b.String()
	}
	for i, f := range filters {
		crit := formatCriteria(f.Criteria)
		fmt.Fprintf(&b, "Screening step %d: %d -> %d (excluded %d)%s\n",
			i+1, f.Input, f.Output, f.Excluded, crit)
	}
	last := filters[len(filters)-1]
	fmt.Fprintf(&b, "\nIncluded after screening: %d records\n", last.Output)
	return b.String()
}

func formatCriteria(criteria map[string]any) string {
	if len(criteria) == 0 {
		return ""
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, criteria[k]))
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

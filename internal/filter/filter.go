// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter screens JSONL article records by field criteria. All
// criteria combine with AND; matching lines pass through byte-identical.
// Each screening run appends a PRISMA event (input, output, excluded,
// criteria) to the audit trail.
package filter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

const maxLine = 8 * 1024 * 1024

// Criteria holds the raw filter options as given on the command line.
// Zero values mean "not filtered on".
type Criteria struct {
	// Year filters by publication year: "2024", "2020-2024", "2020-", "-2024".
	Year string

	// Journal matches a journal substring, case-insensitive.
	Journal string

	// JournalExact matches the journal title exactly.
	JournalExact string

	// Author matches an author substring, case-insensitive.
	Author string

	// Title matches a title substring, case-insensitive.
	Title string

	// PMIDs restricts to a comma-separated PMID set.
	PMIDs string

	// MinAuthors requires at least this many authors.
	MinAuthors int

	// HasAbstract requires a non-empty abstract.
	HasAbstract bool

	// HasDOI requires a DOI.
	HasDOI bool
}

var yearRangeRe = regexp.MustCompile(`^[0-9]*-?[0-9]*$`)

// Predicate is a compiled Criteria.
type Predicate struct {
	c       Criteria
	yearMin int
	yearMax int
	hasYear bool
	pmidSet map[string]bool
}

// Compile validates the criteria and returns a matcher. An invalid year
// expression is an operational error.
func (c Criteria) Compile() (*Predicate, error) {
	p := &Predicate{c: c, yearMin: -1, yearMax: -1}

	if c.Year != "" {
		min, max, err := parseYearRange(c.Year)
		if err != nil {
			return nil, err
		}
		p.yearMin, p.yearMax, p.hasYear = min, max, true
	}
	if c.PMIDs != "" {
		p.pmidSet = make(map[string]bool)
		for _, pmid := range strings.Split(c.PMIDs, ",") {
			if s := strings.TrimSpace(pmid); s != "" {
				p.pmidSet[s] = true
			}
		}
	}
	return p, nil
}

// parseYearRange parses "2024", "2020-2024", "2020-", or "-2024" into an
// inclusive (min, max) pair; -1 leaves that bound open.
func parseYearRange(s string) (int, int, error) {
	if s == "" || s == "-" || !strings.ContainsAny(s, "0123456789") || !yearRangeRe.MatchString(s) {
		return 0, 0, fmt.Errorf("invalid year format %q", s)
	}
	if !strings.Contains(s, "-") {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year format %q", s)
		}
		return v, v, nil
	}
	parts := strings.SplitN(s, "-", 2)
	min, max := -1, -1
	if parts[0] != "" {
		v, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year format %q", s)
		}
		min = v
	}
	if parts[1] != "" {
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year format %q", s)
		}
		max = v
	}
	return min, max, nil
}

// Matches reports whether the record passes every criterion.
func (p *Predicate) Matches(a types.Article) bool {
	if p.pmidSet != nil && !p.pmidSet[a.PMID] {
		return false
	}
	if p.hasYear && !p.matchesYear(a) {
		return false
	}
	if p.c.Journal != "" && !strings.Contains(strings.ToLower(a.Journal), strings.ToLower(p.c.Journal)) {
		return false
	}
	if p.c.JournalExact != "" && a.Journal != p.c.JournalExact {
		return false
	}
	if p.c.Author != "" && !matchesAuthor(a.Authors, p.c.Author) {
		return false
	}
	if p.c.Title != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(p.c.Title)) {
		return false
	}
	if p.c.MinAuthors > 0 && len(a.Authors) < p.c.MinAuthors {
		return false
	}
	if p.c.HasAbstract && a.Abstract == "" {
		return false
	}
	if p.c.HasDOI && a.DOI == "" {
		return false
	}
	return true
}

func (p *Predicate) matchesYear(a types.Article) bool {
	year := a.Year.Int()
	if year == 0 {
		return false
	}
	if p.yearMin >= 0 && year < p.yearMin {
		return false
	}
	if p.yearMax >= 0 && year > p.yearMax {
		return false
	}
	return true
}

func matchesAuthor(authors []string, pattern string) bool {
	pattern = strings.ToLower(pattern)
	for _, author := range authors {
		if strings.Contains(strings.ToLower(author), pattern) {
			return true
		}
	}
	return false
}

// Result counts one screening run.
type Result struct {
	Input  int
	Output int
}

// Apply streams JSONL from r to w, passing through the lines that match.
// Matching lines are emitted byte-identical to their input form. The
// screening counts are appended to the workspace audit trail.
func Apply(r io.Reader, w io.Writer, pred *Predicate, ws *store.Workspace, diag io.Writer) (Result, error) {
	if diag == nil {
		diag = io.Discard
	}
	var res Result
	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var a types.Article
		if err := json.Unmarshal(line, &a); err != nil {
			fmt.Fprintf(diag, "warning: line %d: skipping malformed JSON: %v\n", lineNo, err)
			continue
		}
		res.Input++
		if !pred.Matches(a) {
			continue
		}
		bw.Write(line)
		bw.WriteByte('\n')
		res.Output++
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading JSONL stream: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return res, err
	}

	ws.Audit(map[string]any{
		"op":       "filter",
		"input":    res.Input,
		"output":   res.Output,
		"excluded": res.Input - res.Output,
		"criteria": pred.criteriaMap(),
	})
	return res, nil
}

// criteriaMap records the active criteria for PRISMA traceability.
func (p *Predicate) criteriaMap() map[string]any {
	m := make(map[string]any)
	if p.c.Year != "" {
		m["year"] = p.c.Year
	}
	if p.c.Journal != "" {
		m["journal"] = p.c.Journal
	}
	if p.c.JournalExact != "" {
		m["journal_exact"] = p.c.JournalExact
	}
	if p.c.Author != "" {
		m["author"] = p.c.Author
	}
	if p.c.Title != "" {
		m["title"] = p.c.Title
	}
	if p.c.PMIDs != "" {
		m["pmid"] = p.c.PMIDs
	}
	if p.c.MinAuthors > 0 {
		m["min_authors"] = p.c.MinAuthors
	}
	if p.c.HasAbstract {
		m["has_abstract"] = true
	}
	if p.c.HasDOI {
		m["has_doi"] = true
	}
	return m
}

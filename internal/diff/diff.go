// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package diff indexes JSONL record collections by PMID and computes
// added, removed, and changed sets between two of them.
//
// Both collections are materialized as hash maps before classification
// begins; the comparison itself is a hash join, O(|old| + |new|) with the
// per-key cost bounded by the fixed field count. Within one input stream
// the last occurrence of a duplicate PMID wins.
package diff

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/pdiddy/pm-tools/pkg/types"
)

// maxLine bounds one JSONL line; abstracts make lines long but not huge.
const maxLine = 8 * 1024 * 1024

// Collection is an immutable pmid → record mapping built from one JSONL
// stream. Raw lines are retained so diff records can embed the original
// JSON without re-encoding.
type Collection struct {
	Records map[string]types.Article
	Raw     map[string]json.RawMessage
}

// Load builds a Collection in a single pass over a JSONL stream. Lines
// that fail to parse or lack a pmid are skipped with a diagnostic, never
// fatal. Duplicate pmids resolve last-wins.
func Load(r io.Reader, diag io.Writer) (*Collection, error) {
	if diag == nil {
		diag = io.Discard
	}
	c := &Collection{
		Records: make(map[string]types.Article),
		Raw:     make(map[string]json.RawMessage),
	}

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
		if a.PMID == "" {
			fmt.Fprintf(diag, "warning: line %d: skipping record without pmid\n", lineNo)
			continue
		}
		c.Records[a.PMID] = a
		c.Raw[a.PMID] = json.RawMessage(append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL stream: %w", err)
	}
	return c, nil
}

// Len returns the number of records in the collection.
func (c *Collection) Len() int { return len(c.Records) }

// FieldChange records one field that differs between the two versions of a
// record. Old and New hold the canonical string form of each side; a side
// that lacks the field holds "".
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Change is one record present in both collections with differing fields.
type Change struct {
	PMID   string
	Fields []FieldChange
}

// Report is the full classification of two collections. It is an explicit
// result value: the engine keeps no state between invocations.
type Report struct {
	Added     []string
	Removed   []string
	Changed   []Change
	Unchanged int
}

// HasDifferences reports whether any category is non-empty.
func (r *Report) HasDifferences() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Changed) > 0
}

// Compare classifies every key of old and new. Keys in the returned report
// are sorted (numeric PMIDs numerically) so output is reproducible.
func Compare(old, new *Collection, cfg types.DiffConfig) *Report {
	ignore := make(map[string]bool, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = true
	}

	rep := &Report{}
	for _, pmid := range sortedKeys(old.Records) {
		newRec, ok := new.Records[pmid]
		if !ok {
			rep.Removed = append(rep.Removed, pmid)
			continue
		}
		fields := changedFields(old.Records[pmid], newRec, ignore)
		if len(fields) == 0 {
			rep.Unchanged++
			continue
		}
		rep.Changed = append(rep.Changed, Change{PMID: pmid, Fields: fields})
	}
	for _, pmid := range sortedKeys(new.Records) {
		if _, ok := old.Records[pmid]; !ok {
			rep.Added = append(rep.Added, pmid)
		}
	}
	return rep
}

// HasDifference is the quiet mode: it short-circuits on the first
// difference of any kind, so its cost is bounded by the position of that
// difference rather than the collection sizes.
func HasDifference(old, new *Collection, cfg types.DiffConfig) bool {
	if old.Len() != new.Len() {
		return true
	}
	ignore := make(map[string]bool, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = true
	}
	// Equal sizes: any added key implies a removed one, so scanning old
	// alone covers all three categories.
	for pmid, oldRec := range old.Records {
		newRec, ok := new.Records[pmid]
		if !ok {
			return true
		}
		if len(changedFields(oldRec, newRec, ignore)) > 0 {
			return true
		}
	}
	return false
}

// changedFields compares the fixed field set of two records and returns
// the differing fields in canonical order.
func changedFields(old, new types.Article, ignore map[string]bool) []FieldChange {
	var out []FieldChange
	for _, name := range types.FieldOrder {
		if ignore[name] {
			continue
		}
		oldVal := fieldValue(old, name)
		newVal := fieldValue(new, name)
		if oldVal != newVal {
			out = append(out, FieldChange{Field: name, Old: oldVal, New: newVal})
		}
	}
	return out
}

// fieldValue renders one field as a canonical comparison string. Sequence
// fields use their compact JSON form so exact sequence equality holds.
func fieldValue(a types.Article, name string) string {
	switch name {
	case "pmid":
		return a.PMID
	case "title":
		return a.Title
	case "authors":
		if len(a.Authors) == 0 {
			return ""
		}
		b, _ := json.Marshal(a.Authors)
		return string(b)
	case "journal":
		return a.Journal
	case "year":
		return string(a.Year)
	case "date":
		return a.Date
	case "doi":
		return a.DOI
	case "pmcid":
		return a.PMCID
	case "abstract":
		return a.Abstract
	case "abstract_sections":
		if len(a.AbstractSections) == 0 {
			return ""
		}
		b, _ := json.Marshal(a.AbstractSections)
		return string(b)
	}
	return ""
}

// sortedKeys orders PMIDs numerically when both are all digits, falling
// back to lexicographic order for synthetic keys.
func sortedKeys(m map[string]types.Article) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return pmidLess(keys[i], keys[j]) })
	return keys
}

func pmidLess(a, b string) bool {
	if isNumeric(a) && isNumeric(b) {
		if len(a) != len(b) {
			return len(a) < len(b)
		}
	}
	return a < b
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

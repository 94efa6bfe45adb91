// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

func compile(t *testing.T, c Criteria) *Predicate {
	t.Helper()
	p, err := c.Compile()
	if err != nil {
		t.Fatalf("Compile(%+v): %v", c, err)
	}
	return p
}

func TestParseYearRange(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		wantErr  bool
	}{
		{in: "2024", min: 2024, max: 2024},
		{in: "2020-2024", min: 2020, max: 2024},
		{in: "2020-", min: 2020, max: -1},
		{in: "-2024", min: -1, max: 2024},
		{in: "", wantErr: true},
		{in: "-", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "2020-2021-2022", wantErr: true},
		{in: "20a4", wantErr: true},
	}
	for _, tt := range tests {
		min, max, err := parseYearRange(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseYearRange(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseYearRange(%q): %v", tt.in, err)
			continue
		}
		if min != tt.min || max != tt.max {
			t.Errorf("parseYearRange(%q) = (%d, %d), want (%d, %d)", tt.in, min, max, tt.min, tt.max)
		}
	}
}

func TestMatches(t *testing.T) {
	article := types.Article{
		PMID:     "1",
		Title:    "CRISPR-based therapy outcomes",
		Authors:  []string{"Smith Jane", "Doe John", "Lee Ana"},
		Journal:  "Nature Medicine",
		Year:     "2021",
		DOI:      "10.1/x",
		Abstract: "Some text.",
	}

	tests := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"no criteria matches", Criteria{}, true},
		{"year exact", Criteria{Year: "2021"}, true},
		{"year exact miss", Criteria{Year: "2020"}, false},
		{"year range", Criteria{Year: "2019-2022"}, true},
		{"year open start", Criteria{Year: "-2020"}, false},
		{"year open end", Criteria{Year: "2021-"}, true},
		{"journal substring case-insensitive", Criteria{Journal: "nature"}, true},
		{"journal substring miss", Criteria{Journal: "science"}, false},
		{"journal exact", Criteria{JournalExact: "Nature Medicine"}, true},
		{"journal exact case-sensitive", Criteria{JournalExact: "nature medicine"}, false},
		{"author substring", Criteria{Author: "smith"}, true},
		{"author miss", Criteria{Author: "garcia"}, false},
		{"title substring", Criteria{Title: "crispr"}, true},
		{"pmid set hit", Criteria{PMIDs: "1,2,3"}, true},
		{"pmid set miss", Criteria{PMIDs: "4,5"}, false},
		{"min authors met", Criteria{MinAuthors: 3}, true},
		{"min authors unmet", Criteria{MinAuthors: 4}, false},
		{"has abstract", Criteria{HasAbstract: true}, true},
		{"has doi", Criteria{HasDOI: true}, true},
		{"criteria combine with AND", Criteria{Year: "2021", Journal: "nature", Author: "doe"}, true},
		{"one failing criterion fails", Criteria{Year: "2021", Journal: "science"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compile(t, tt.c).Matches(article); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesMissingFields(t *testing.T) {
	bare := types.Article{PMID: "9"}

	if compile(t, Criteria{Year: "2020"}).Matches(bare) {
		t.Error("record without year should not match a year filter")
	}
	if compile(t, Criteria{HasAbstract: true}).Matches(bare) {
		t.Error("record without abstract should not match --has-abstract")
	}
	if compile(t, Criteria{HasDOI: true}).Matches(bare) {
		t.Error("record without doi should not match --has-doi")
	}
}

func TestCompileRejectsBadYear(t *testing.T) {
	if _, err := (Criteria{Year: "twenty"}).Compile(); err == nil {
		t.Error("expected error for malformed year")
	}
}

func TestApply(t *testing.T) {
	input := `{"pmid":"1","title":"A","year":"2020"}
{"pmid":"2","title":"B","year":"2021"}
not json
{"pmid":"3","title":"C","year":"2022"}
`
	pred := compile(t, Criteria{Year: "2021-"})

	var out, diag bytes.Buffer
	res, err := Apply(strings.NewReader(input), &out, pred, nil, &diag)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Input != 3 || res.Output != 2 {
		t.Errorf("result = %+v, want input 3, output 2", res)
	}

	want := `{"pmid":"2","title":"B","year":"2021"}` + "\n" +
		`{"pmid":"3","title":"C","year":"2022"}` + "\n"
	if out.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", out.String(), want)
	}
	if !strings.Contains(diag.String(), "line 3") {
		t.Errorf("diag = %q, want warning for line 3", diag.String())
	}
}

func TestApplyPreservesLineBytes(t *testing.T) {
	// Lines pass through exactly as read, including unusual spacing and
	// key order.
	line := `{"title":"Weird  spacing","pmid":"1"}`
	pred := compile(t, Criteria{})

	var out bytes.Buffer
	if _, err := Apply(strings.NewReader(line+"\n"), &out, pred, nil, io.Discard); err != nil {
		t.Fatal(err)
	}
	if out.String() != line+"\n" {
		t.Errorf("output = %q, want byte-identical line", out.String())
	}
}

func TestApplyWritesAuditEvent(t *testing.T) {
	ws, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	input := `{"pmid":"1","year":"2020"}
{"pmid":"2","year":"1999"}
`
	pred := compile(t, Criteria{Year: "2000-"})
	var out bytes.Buffer
	if _, err := Apply(strings.NewReader(input), &out, pred, ws, io.Discard); err != nil {
		t.Fatal(err)
	}

	events, err := ws.Events()
	if err != nil {
		t.Fatal(err)
	}
	last := events[len(events)-1]
	if last["op"] != "filter" {
		t.Fatalf("last event = %v", last)
	}
	if last["input"] != float64(2) || last["output"] != float64(1) || last["excluded"] != float64(1) {
		t.Errorf("counts = %v", last)
	}
	criteria, ok := last["criteria"].(map[string]any)
	if !ok || criteria["year"] != "2000-" {
		t.Errorf("criteria = %v", last["criteria"])
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package diff

import (
	"bytes"
	"io"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/pdiddy/pm-tools/pkg/types"
)

func load(t *testing.T, jsonl string) *Collection {
	t.Helper()
	c, err := Load(strings.NewReader(jsonl), io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoad(t *testing.T) {
	c := load(t, `{"pmid":"1","title":"A"}
{"pmid":"2","title":"B","year":"2020"}
`)
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if c.Records["2"].Year != "2020" {
		t.Errorf("record 2 year = %q", c.Records["2"].Year)
	}
	if string(c.Raw["1"]) != `{"pmid":"1","title":"A"}` {
		t.Errorf("raw line not retained: %s", c.Raw["1"])
	}
}

func TestLoadSkipsBadLines(t *testing.T) {
	var diag bytes.Buffer
	c, err := Load(strings.NewReader(`{"pmid":"1"}
not json at all
{"title":"no pmid"}

{"pmid":"2"}
`), &diag)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2 (bad lines skipped)", c.Len())
	}
	msgs := diag.String()
	if !strings.Contains(msgs, "line 2") || !strings.Contains(msgs, "line 3") {
		t.Errorf("diagnostics = %q, want warnings for lines 2 and 3", msgs)
	}
}

func TestLoadDuplicateLastWins(t *testing.T) {
	c := load(t, `{"pmid":"1","title":"First"}
{"pmid":"1","title":"Second"}
`)
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if c.Records["1"].Title != "Second" {
		t.Errorf("title = %q, want Second (last occurrence wins)", c.Records["1"].Title)
	}
}

func TestLoadLegacyIntegerYear(t *testing.T) {
	c := load(t, `{"pmid":"1","year":2019}`+"\n")
	if got := string(c.Records["1"].Year); got != "2019" {
		t.Errorf("year = %q, want 2019", got)
	}
}

func TestCompare(t *testing.T) {
	old := load(t, `{"pmid":"1","title":"A"}
{"pmid":"3","title":"C"}
`)
	new := load(t, `{"pmid":"1","title":"B"}
{"pmid":"2","title":"New"}
`)

	rep := Compare(old, new, types.DiffConfig{})
	if !reflect.DeepEqual(rep.Added, []string{"2"}) {
		t.Errorf("Added = %v, want [2]", rep.Added)
	}
	if !reflect.DeepEqual(rep.Removed, []string{"3"}) {
		t.Errorf("Removed = %v, want [3]", rep.Removed)
	}
	if len(rep.Changed) != 1 || rep.Changed[0].PMID != "1" {
		t.Fatalf("Changed = %+v, want one change for pmid 1", rep.Changed)
	}
	fc := rep.Changed[0].Fields
	if len(fc) != 1 || fc[0].Field != "title" || fc[0].Old != "A" || fc[0].New != "B" {
		t.Errorf("field changes = %+v", fc)
	}
	if !rep.HasDifferences() {
		t.Error("HasDifferences = false")
	}
}

func TestCompareSelfIsEmpty(t *testing.T) {
	c := load(t, `{"pmid":"1","title":"A","authors":["X Y"]}
{"pmid":"2","year":"2020"}
`)
	rep := Compare(c, c, types.DiffConfig{})
	if rep.HasDifferences() {
		t.Errorf("self-diff has differences: %+v", rep)
	}
	if rep.Unchanged != 2 {
		t.Errorf("Unchanged = %d, want 2", rep.Unchanged)
	}
}

func TestCompareSymmetry(t *testing.T) {
	a := load(t, `{"pmid":"1","title":"A"}
{"pmid":"2"}
`)
	b := load(t, `{"pmid":"2"}
{"pmid":"3"}
`)
	ab := Compare(a, b, types.DiffConfig{})
	ba := Compare(b, a, types.DiffConfig{})
	if !reflect.DeepEqual(ab.Added, ba.Removed) || !reflect.DeepEqual(ab.Removed, ba.Added) {
		t.Errorf("asymmetric: ab=%+v ba=%+v", ab, ba)
	}
}

func TestCompareSequenceFields(t *testing.T) {
	old := load(t, `{"pmid":"1","authors":["Smith J","Doe J"]}`+"\n")
	new := load(t, `{"pmid":"1","authors":["Smith J"]}`+"\n")

	rep := Compare(old, new, types.DiffConfig{})
	if len(rep.Changed) != 1 {
		t.Fatalf("Changed = %+v", rep.Changed)
	}
	fc := rep.Changed[0].Fields[0]
	if fc.Field != "authors" {
		t.Errorf("field = %q, want authors", fc.Field)
	}
	if fc.Old != `["Smith J","Doe J"]` || fc.New != `["Smith J"]` {
		t.Errorf("values = %q -> %q", fc.Old, fc.New)
	}
}

func TestCompareIgnoreFields(t *testing.T) {
	old := load(t, `{"pmid":"1","title":"A","year":"2019"}`+"\n")
	new := load(t, `{"pmid":"1","title":"B","year":"2020"}`+"\n")

	rep := Compare(old, new, types.DiffConfig{IgnoreFields: []string{"title", "year"}})
	if rep.HasDifferences() {
		t.Errorf("expected no differences with ignored fields, got %+v", rep)
	}
}

func TestCompareSortsNumerically(t *testing.T) {
	old := load(t, `{"pmid":"9"}
{"pmid":"10"}
{"pmid":"100"}
`)
	new := load(t, "")
	rep := Compare(old, new, types.DiffConfig{})
	if !reflect.DeepEqual(rep.Removed, []string{"9", "10", "100"}) {
		t.Errorf("Removed = %v, want numeric order", rep.Removed)
	}
}

func TestHasDifference(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		cfg      types.DiffConfig
		want     bool
	}{
		{
			name: "identical",
			old:  `{"pmid":"1","title":"A"}` + "\n",
			new:  `{"pmid":"1","title":"A"}` + "\n",
			want: false,
		},
		{
			name: "size mismatch",
			old:  `{"pmid":"1"}` + "\n",
			new:  `{"pmid":"1"}` + "\n" + `{"pmid":"2"}` + "\n",
			want: true,
		},
		{
			name: "same size different keys",
			old:  `{"pmid":"1"}` + "\n",
			new:  `{"pmid":"2"}` + "\n",
			want: true,
		},
		{
			name: "field change",
			old:  `{"pmid":"1","title":"A"}` + "\n",
			new:  `{"pmid":"1","title":"B"}` + "\n",
			want: true,
		},
		{
			name: "change in ignored field only",
			old:  `{"pmid":"1","title":"A"}` + "\n",
			new:  `{"pmid":"1","title":"B"}` + "\n",
			cfg:  types.DiffConfig{IgnoreFields: []string{"title"}},
			want: false,
		},
		{
			name: "both empty",
			old:  "",
			new:  "",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasDifference(load(t, tt.old), load(t, tt.new), tt.cfg)
			if got != tt.want {
				t.Errorf("HasDifference = %v, want %v", got, tt.want)
			}
		})
	}
}

// Quiet mode must agree with the full classification on arbitrary pairs.
func TestHasDifferenceMatchesCompare(t *testing.T) {
	docs := []string{
		"",
		`{"pmid":"1"}` + "\n",
		`{"pmid":"1","title":"A"}` + "\n",
		`{"pmid":"1","title":"A"}` + "\n" + `{"pmid":"2"}` + "\n",
		`{"pmid":"2"}` + "\n" + `{"pmid":"3","year":"2020"}` + "\n",
	}
	for i, a := range docs {
		for j, b := range docs {
			ca, cb := load(t, a), load(t, b)
			quiet := HasDifference(ca, cb, types.DiffConfig{})
			full := Compare(ca, cb, types.DiffConfig{}).HasDifferences()
			if quiet != full {
				t.Errorf("docs[%d] vs docs[%d]: quiet=%v full=%v", i, j, quiet, full)
			}
		}
	}
}

func TestPmidLess(t *testing.T) {
	keys := []string{"unknown-2", "100", "9", "unknown-1", "10"}
	sort.Slice(keys, func(i, j int) bool { return pmidLess(keys[i], keys[j]) })
	want := []string{"9", "10", "100", "unknown-1", "unknown-2"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("sorted = %v, want %v", keys, want)
	}
}

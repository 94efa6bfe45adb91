// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package diff

import (
	"encoding/json"
	"fmt"
	"io"
)

// FormatSummary writes counts per category plus up to maxExamples example
// differences.
func FormatSummary(w io.Writer, rep *Report, maxExamples int) {
	if maxExamples <= 0 {
		maxExamples = 10
	}
	fmt.Fprintf(w, "added: %d  removed: %d  changed: %d  unchanged: %d\n",
		len(rep.Added), len(rep.Removed), len(rep.Changed), rep.Unchanged)

	shown := 0
	for _, pmid := range rep.Removed {
		if shown >= maxExamples {
			break
		}
		fmt.Fprintf(w, "- %s\n", pmid)
		shown++
	}
	for _, ch := range rep.Changed {
		if shown >= maxExamples {
			break
		}
		fmt.Fprintf(w, "~ %s", ch.PMID)
		for i, fc := range ch.Fields {
			if i == 0 {
				fmt.Fprint(w, " (")
			} else {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%s: %q -> %q", fc.Field, fc.Old, fc.New)
		}
		if len(ch.Fields) > 0 {
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w)
		shown++
	}
	for _, pmid := range rep.Added {
		if shown >= maxExamples {
			break
		}
		fmt.Fprintf(w, "+ %s\n", pmid)
		shown++
	}

	total := len(rep.Added) + len(rep.Removed) + len(rep.Changed)
	if total > shown {
		fmt.Fprintf(w, "... %d more differences\n", total-shown)
	}
}

// Keys returns the bare key list for one category: "added", "removed", or
// "changed".
func (r *Report) Keys(category string) ([]string, error) {
	switch category {
	case "added":
		return r.Added, nil
	case "removed":
		return r.Removed, nil
	case "changed":
		keys := make([]string, len(r.Changed))
		for i, ch := range r.Changed {
			keys[i] = ch.PMID
		}
		return keys, nil
	}
	return nil, fmt.Errorf("unknown diff category %q (want added, removed, or changed)", category)
}

// jsonlRecord is one streamed difference record. Articles are embedded as
// the raw JSON lines they were loaded from.
type jsonlRecord struct {
	PMID          string          `json:"pmid"`
	Status        string          `json:"status"`
	Article       json.RawMessage `json:"article,omitempty"`
	Old           json.RawMessage `json:"old,omitempty"`
	New           json.RawMessage `json:"new,omitempty"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
}

// WriteJSONL streams one JSON difference record per line in removed,
// changed, added order.
func WriteJSONL(w io.Writer, rep *Report, old, new *Collection) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, pmid := range rep.Removed {
		rec := jsonlRecord{PMID: pmid, Status: "removed", Article: old.Raw[pmid]}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding diff record: %w", err)
		}
	}
	for _, ch := range rep.Changed {
		fields := make([]string, len(ch.Fields))
		for i, fc := range ch.Fields {
			fields[i] = fc.Field
		}
		rec := jsonlRecord{
			PMID:          ch.PMID,
			Status:        "changed",
			Old:           old.Raw[ch.PMID],
			New:           new.Raw[ch.PMID],
			ChangedFields: fields,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding diff record: %w", err)
		}
	}
	for _, pmid := range rep.Added {
		rec := jsonlRecord{PMID: pmid, Status: "added", Article: new.Raw[pmid]}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding diff record: %w", err)
		}
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Article holds the normalized fields of one PubMed citation record.
// Optional fields are left zero-valued when the source XML carries no
// derivable value; encoding omits them entirely rather than emitting
// empty strings or empty arrays.
type Article struct {
	// PMID is the PubMed identifier and the unique key within a collection.
	// Records with no detectable PMID carry a synthetic "unknown-<n>" key.
	PMID string `json:"pmid" yaml:"pmid"`

	// Title is the article title with inline markup flattened to text.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors lists "LastName ForeName" strings in document order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Journal is the full journal title.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Year is the 4-digit publication year, taken from PubDate/Year or
	// recovered from MedlineDate.
	Year Year `json:"year,omitempty" yaml:"year,omitempty"`

	// Date is the best ISO date derivable from the PubDate fields:
	// "2006", "2006-01", or "2006-01-02".
	Date string `json:"date,omitempty" yaml:"date,omitempty"`

	// DOI is the selected digital object identifier, at most one per record.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// PMCID is the PubMed Central identifier when present.
	PMCID string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`

	// Abstract is the concatenation of all AbstractText segments.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AbstractSections holds labeled abstract segments. Populated only
	// when at least one AbstractText carries a Label attribute.
	AbstractSections []AbstractSection `json:"abstract_sections,omitempty" yaml:"abstract_sections,omitempty"`
}

// AbstractSection is one labeled segment of a structured abstract.
type AbstractSection struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Year is a 4-digit publication year. It decodes from either a JSON
// string or a JSON number: older JSONL files in the wild carry the year
// as a bare integer.
type Year string

// UnmarshalJSON accepts both "2019" and 2019.
func (y *Year) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty year value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year is neither string nor integer: %w", err)
	}
	*y = Year(strconv.Itoa(n))
	return nil
}

// MarshalJSON always emits the year as a string.
func (y Year) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(y))
}

// Int returns the year as an integer, or 0 when unset or non-numeric.
func (y Year) Int() int {
	n, err := strconv.Atoi(string(y))
	if err != nil {
		return 0
	}
	return n
}

// FieldOrder is the canonical key order for encoded records. Diff output
// reports changed fields in this order.
var FieldOrder = []string{
	"pmid", "title", "authors", "journal", "year", "date",
	"doi", "pmcid", "abstract", "abstract_sections",
}

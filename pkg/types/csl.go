// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/json"

// CSLItem is the recognized subset of a CSL-JSON citation as returned by
// the NCBI Citation Exporter.
type CSLItem struct {
	PMID           string    `json:"PMID"`
	Title          string    `json:"title"`
	ContainerTitle string    `json:"container-title"`
	Volume         string    `json:"volume"`
	Issue          string    `json:"issue"`
	Page           string    `json:"page"`
	Author         []CSLName `json:"author"`
	Issued         *CSLDate  `json:"issued"`
}

// CSLName is one contributor name.
type CSLName struct {
	Family string `json:"family"`
	Given  string `json:"given"`
}

// CSLDate is a CSL date-parts value, e.g. [[2024, 3, 15]].
type CSLDate struct {
	DateParts [][]json.Number `json:"date-parts"`
}

// Year returns the year component as a string, or "".
func (d *CSLDate) Year() string {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return ""
	}
	return d.DateParts[0][0].String()
}

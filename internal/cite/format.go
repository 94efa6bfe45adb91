// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/pm-tools/pkg/types"
)

// FormatCitation renders a CSL-JSON citation as a human-readable string
// in "apa" (default) or "vancouver" style.
func FormatCitation(raw json.RawMessage, style string) (string, error) {
	var item types.CSLItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return "", fmt.Errorf("parsing CSL item: %w", err)
	}
	if style == "vancouver" {
		return formatVancouver(item), nil
	}
	return formatAPA(item), nil
}

// formatVancouver: Author1 AB, Author2 CD. Title. Journal. Year;Vol(Issue):Pages.
func formatVancouver(item types.CSLItem) string {
	var authors []string
	for _, a := range item.Author {
		initials := ""
		for _, r := range strings.Fields(a.Given) {
			initials += string([]rune(r)[0])
		}
		authors = append(authors, strings.TrimSpace(a.Family+" "+initials))
	}

	var parts []string
	if len(authors) > 0 {
		parts = append(parts, strings.Join(authors, ", ")+".")
	}
	if item.Title != "" {
		parts = append(parts, item.Title+".")
	}
	if item.ContainerTitle != "" {
		journal := item.ContainerTitle + "."
		if year := item.Issued.Year(); year != "" {
			journal = item.ContainerTitle + ". " + year
		}
		if item.Volume != "" {
			journal += ";" + item.Volume
		}
		if item.Issue != "" {
			journal += "(" + item.Issue + ")"
		}
		if item.Page != "" {
			journal += ":" + item.Page
		}
		journal += "."
		parts = append(parts, journal)
	}
	return strings.Join(parts, " ")
}

// formatAPA: Author, A. B., & Author, C. D. (Year). Title. Journal, Vol(Issue), Pages.
func formatAPA(item types.CSLItem) string {
	var authors []string
	for _, a := range item.Author {
		var initials []string
		for _, r := range strings.Fields(a.Given) {
			initials = append(initials, string([]rune(r)[0]))
		}
		if len(initials) > 0 {
			authors = append(authors, a.Family+", "+strings.Join(initials, ". ")+".")
		} else {
			authors = append(authors, a.Family)
		}
	}

	var authorStr string
	switch {
	case len(authors) > 1:
		authorStr = strings.Join(authors[:len(authors)-1], ", ") + ", & " + authors[len(authors)-1]
	case len(authors) == 1:
		authorStr = authors[0]
	}

	var parts []string
	if authorStr != "" {
		parts = append(parts, authorStr)
	}
	if year := item.Issued.Year(); year != "" {
		parts = append(parts, "("+year+").")
	} else {
		parts = append(parts, "(n.d.).")
	}
	if item.Title != "" {
		parts = append(parts, item.Title+".")
	}
	if item.ContainerTitle != "" {
		ref := "*" + item.ContainerTitle + "*"
		if item.Volume != "" {
			ref += ", *" + item.Volume + "*"
		}
		if item.Issue != "" {
			ref += "(" + item.Issue + ")"
		}
		if item.Page != "" {
			ref += ", " + item.Page
		}
		ref += "."
		parts = append(parts, ref)
	}
	return strings.Join(parts, " ")
}

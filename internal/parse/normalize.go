// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/pm-tools/pkg/types"
)

// monthNums maps month names and abbreviations to two-digit numbers.
var monthNums = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// seasonMonths maps seasons to their quarter start month.
var seasonMonths = map[string]string{
	"spring": "03", "summer": "06", "fall": "09", "autumn": "09", "winter": "12",
}

// Normalize applies the per-field fallback and selection policies to raw
// extracted values. key is the splitter-assigned block key, used when the
// block itself carries no PMID.
func Normalize(raw Raw, key string) types.Article {
	a := types.Article{PMID: raw.PMID}
	if a.PMID == "" {
		a.PMID = key
	}

	a.Title = raw.Title
	a.Journal = raw.Journal

	year := raw.Year
	if year == "" {
		year = firstYear(raw.MedlineDate)
	}
	a.Year = types.Year(year)
	a.Date = buildDate(year, raw.Month, raw.Day, raw.Season, raw.MedlineDate)

	a.DOI = selectDOI(raw.IDs)
	a.PMCID = selectID(raw.IDs, "pmc")
	a.Authors = normalizeAuthors(raw.Authors)
	a.Abstract, a.AbstractSections = normalizeAbstract(raw.Segments)
	return a
}

// firstYear returns the first run of exactly four decimal digits in s,
// or "" when none exists. Longer digit runs are not split.
func firstYear(s string) string {
	start := -1
	for i := 0; i <= len(s); i++ {
		digit := i < len(s) && s[i] >= '0' && s[i] <= '9'
		if digit {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start == 4 {
				return s[start:i]
			}
			start = -1
		}
	}
	return ""
}

// selectDOI picks the DOI from the identifier candidates: the first entry
// typed exactly "doi", or failing that the first entry whose text carries
// the "10." DOI prefix.
func selectDOI(ids []RawID) string {
	for _, id := range ids {
		if id.Type == "doi" && id.Text != "" {
			return id.Text
		}
	}
	for _, id := range ids {
		if strings.HasPrefix(id.Text, "10.") {
			return id.Text
		}
	}
	return ""
}

// selectID returns the first identifier text with the given type.
func selectID(ids []RawID, idType string) string {
	for _, id := range ids {
		if id.Type == idType && id.Text != "" {
			return id.Text
		}
	}
	return ""
}

// normalizeAuthors joins each entry's LastName and ForeName with a single
// space, drops entries that come out empty, and preserves order.
func normalizeAuthors(authors []RawAuthor) []string {
	var out []string
	for _, a := range authors {
		name := a.LastName
		if a.ForeName != "" {
			if name != "" {
				name += " " + a.ForeName
			} else {
				name = a.ForeName
			}
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// normalizeAbstract joins the non-empty segments with single spaces and
// collects labeled segments into sections.
func normalizeAbstract(segments []RawSegment) (string, []types.AbstractSection) {
	var parts []string
	var sections []types.AbstractSection
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
		if seg.Label != "" {
			sections = append(sections, types.AbstractSection{Label: seg.Label, Text: seg.Text})
		}
	}
	return strings.Join(parts, " "), sections
}

// buildDate derives the best ISO date from the structured PubDate fields,
// preferring MedlineDate when present: "2006", "2006-01", or "2006-01-02".
func buildDate(year, month, day, season, medlineDate string) string {
	if year == "" {
		return ""
	}
	if medlineDate != "" {
		return parseMedlineDate(medlineDate)
	}
	if season != "" {
		if m, ok := seasonMonths[strings.ToLower(strings.TrimSpace(season))]; ok {
			return year + "-" + m
		}
		return year
	}
	if month != "" {
		m := monthNum(month)
		if m == "" {
			m = month
		}
		if day != "" {
			if d, err := strconv.Atoi(day); err == nil {
				return fmt.Sprintf("%s-%s-%02d", year, m, d)
			}
		}
		return year + "-" + m
	}
	return year
}

// monthNum converts a month name or number to a two-digit string, or ""
// when unrecognized.
func monthNum(month string) string {
	m := strings.ToLower(strings.TrimSpace(month))
	if len(m) >= 3 {
		if n, ok := monthNums[m[:3]]; ok {
			return n
		}
	}
	if len(m) > 0 && isDigits(m) {
		if len(m) == 1 {
			return "0" + m
		}
		return m
	}
	return ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseMedlineDate recovers the best ISO date from a free-text MedlineDate
// such as "2019 Jan-Feb" or "1976-1977 Winter".
func parseMedlineDate(md string) string {
	year := firstYear(md)
	if year == "" {
		return ""
	}

	rest := md[strings.Index(md, year)+len(year):]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i == 0 || i >= len(rest) {
		return year
	}
	j := i
	for j < len(rest) && isAlpha(rest[j]) {
		j++
	}
	if j-i < 3 {
		return year
	}
	// Month names longer than three letters ("January") still key on the
	// three-letter prefix.
	j = i + 3
	m := monthNums[strings.ToLower(rest[i:j])]
	if m == "" {
		return year
	}

	// Optional day after the month.
	k := j
	for k < len(rest) && (rest[k] == ' ' || rest[k] == '\t') {
		k++
	}
	d := k
	for d < len(rest) && rest[d] >= '0' && rest[d] <= '9' && d-k < 2 {
		d++
	}
	if d > k {
		if n, err := strconv.Atoi(rest[k:d]); err == nil {
			return fmt.Sprintf("%s-%s-%02d", year, m, n)
		}
	}
	return year + "-" + m
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

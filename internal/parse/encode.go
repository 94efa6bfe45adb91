// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"

	"github.com/pdiddy/pm-tools/pkg/types"
)

// EncodeLine serializes one normalized record as a single line of compact
// JSON with the canonical key order: pmid, title, authors, journal, year,
// date, doi, pmcid, abstract, abstract_sections. Fields with no value
// produce no key at all, and the escape set is fixed (backslash, quote,
// newline, carriage return, tab; everything else raw), so encoding the
// same record always yields identical bytes. The returned line has no
// trailing newline.
func EncodeLine(a types.Article) []byte {
	var b bytes.Buffer
	b.WriteByte('{')

	writeStringField(&b, "pmid", a.PMID)
	if a.Title != "" {
		b.WriteByte(',')
		writeStringField(&b, "title", a.Title)
	}
	if len(a.Authors) > 0 {
		b.WriteByte(',')
		writeKey(&b, "authors")
		b.WriteByte('[')
		for i, author := range a.Authors {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(&b, author)
		}
		b.WriteByte(']')
	}
	if a.Journal != "" {
		b.WriteByte(',')
		writeStringField(&b, "journal", a.Journal)
	}
	if a.Year != "" {
		b.WriteByte(',')
		writeStringField(&b, "year", string(a.Year))
	}
	if a.Date != "" {
		b.WriteByte(',')
		writeStringField(&b, "date", a.Date)
	}
	if a.DOI != "" {
		b.WriteByte(',')
		writeStringField(&b, "doi", a.DOI)
	}
	if a.PMCID != "" {
		b.WriteByte(',')
		writeStringField(&b, "pmcid", a.PMCID)
	}
	if a.Abstract != "" {
		b.WriteByte(',')
		writeStringField(&b, "abstract", a.Abstract)
	}
	if len(a.AbstractSections) > 0 {
		b.WriteByte(',')
		writeKey(&b, "abstract_sections")
		b.WriteByte('[')
		for i, s := range a.AbstractSections {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('{')
			writeStringField(&b, "label", s.Label)
			b.WriteByte(',')
			writeStringField(&b, "text", s.Text)
			b.WriteByte('}')
		}
		b.WriteByte(']')
	}

	b.WriteByte('}')
	return b.Bytes()
}

func writeKey(b *bytes.Buffer, key string) {
	b.WriteByte('"')
	b.WriteString(key)
	b.WriteString(`":`)
}

func writeStringField(b *bytes.Buffer, key, value string) {
	writeKey(b, key)
	writeString(b, value)
}

// writeString writes a JSON string escaping only backslash, double quote,
// newline, carriage return, and horizontal tab. Non-ASCII passes through
// unescaped.
func writeString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

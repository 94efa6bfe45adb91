// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Raw holds the field values extracted from one article block before any
// fallback or selection policy is applied. Missing elements leave zero
// values; extraction never fails on absence.
type Raw struct {
	PMID        string
	Title       string
	Journal     string
	Year        string
	Month       string
	Day         string
	Season      string
	MedlineDate string
	Authors     []RawAuthor
	IDs         []RawID
	Segments    []RawSegment
}

// RawAuthor is one AuthorList entry.
type RawAuthor struct {
	LastName string
	ForeName string
}

// RawID is one ArticleId entry with its IdType attribute.
type RawID struct {
	Type string
	Text string
}

// RawSegment is one AbstractText segment with its optional Label attribute.
type RawSegment struct {
	Label string
	Text  string
}

// flatText decodes an element to its flattened text content. Inline markup
// such as <i> or <sup> inside titles and abstracts is stripped, keeping the
// nested character data.
type flatText string

func (t *flatText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	s, err := collectText(d)
	if err != nil {
		return err
	}
	*t = flatText(s)
	return nil
}

// collectText consumes tokens through the matching end element and returns
// the concatenated, trimmed character data.
func collectText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch tt := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return strings.TrimSpace(b.String()), nil
			}
		case xml.CharData:
			b.Write(tt)
		}
	}
}

type xmlSegment struct {
	Label string
	Text  string
}

func (s *xmlSegment) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			s.Label = attr.Value
		}
	}
	text, err := collectText(d)
	if err != nil {
		return err
	}
	s.Text = text
	return nil
}

type xmlArticleID struct {
	Type string
	Text string
}

func (a *xmlArticleID) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "IdType" {
			a.Type = attr.Value
		}
	}
	text, err := collectText(d)
	if err != nil {
		return err
	}
	a.Text = text
	return nil
}

type xmlAuthor struct {
	LastName flatText `xml:"LastName"`
	ForeName flatText `xml:"ForeName"`
}

// xmlArticle mirrors the recognized subset of a PubmedArticle element.
type xmlArticle struct {
	XMLName  xml.Name `xml:"PubmedArticle"`
	Citation struct {
		PMID    flatText `xml:"PMID"`
		Article struct {
			Title   flatText `xml:"ArticleTitle"`
			Journal struct {
				Title flatText `xml:"Title"`
				Issue struct {
					PubDate struct {
						Year        flatText `xml:"Year"`
						Month       flatText `xml:"Month"`
						Day         flatText `xml:"Day"`
						Season      flatText `xml:"Season"`
						MedlineDate flatText `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Authors  []xmlAuthor  `xml:"AuthorList>Author"`
			Segments []xmlSegment `xml:"Abstract>AbstractText"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	IDs []xmlArticleID `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// Extract decodes one article block into its raw field values.
func Extract(block []byte) (Raw, error) {
	d := xml.NewDecoder(bytes.NewReader(block))
	// PubMed exports occasionally carry entities outside the XML core set.
	d.Strict = false

	var xa xmlArticle
	if err := d.Decode(&xa); err != nil {
		return Raw{}, fmt.Errorf("decoding article block: %w", err)
	}

	art := xa.Citation.Article
	raw := Raw{
		PMID:        string(xa.Citation.PMID),
		Title:       string(art.Title),
		Journal:     string(art.Journal.Title),
		Year:        string(art.Journal.Issue.PubDate.Year),
		Month:       string(art.Journal.Issue.PubDate.Month),
		Day:         string(art.Journal.Issue.PubDate.Day),
		Season:      string(art.Journal.Issue.PubDate.Season),
		MedlineDate: string(art.Journal.Issue.PubDate.MedlineDate),
	}

	for _, a := range art.Authors {
		raw.Authors = append(raw.Authors, RawAuthor{
			LastName: string(a.LastName),
			ForeName: string(a.ForeName),
		})
	}
	for _, seg := range art.Segments {
		raw.Segments = append(raw.Segments, RawSegment{Label: seg.Label, Text: seg.Text})
	}
	for _, id := range xa.IDs {
		raw.IDs = append(raw.IDs, RawID{Type: id.Type, Text: id.Text})
	}
	return raw, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download retrieves full-text PDFs for parsed records. Sources
// are resolved through PubMed Central's OA service first and Unpaywall
// second; PMC tgz packages are unpacked in memory to find the article PDF.
package download

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pdiddy/pm-tools/internal/httputil"
)

// API endpoints, declared as vars so tests can substitute httptest servers.
var (
	IDConvURL    = "https://pmc.ncbi.nlm.nih.gov/tools/idconv/api/v1/articles/"
	PMCOAURL     = "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi"
	UnpaywallURL = "https://api.unpaywall.org/v2/"
)

// maxPDFMemberSize guards tgz unpacking against decompression bombs.
const maxPDFMemberSize = 200 * 1024 * 1024

// IDRecord is one row from the NCBI ID converter.
type IDRecord struct {
	PMID  string `json:"pmid"`
	PMCID string `json:"pmcid"`
	DOI   string `json:"doi"`
}

// ConvertPMIDs maps PMIDs to DOI/PMCID via the NCBI ID converter.
func ConvertPMIDs(ctx context.Context, client *httputil.Client, pmids []string, email string, batchSize int) ([]IDRecord, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	if email == "" {
		email = "user@example.com"
	}

	var records []IDRecord
	for i := 0; i < len(pmids); i += batchSize {
		end := i + batchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		reqURL := fmt.Sprintf("%s?ids=%s&format=json&tool=pm-tools&email=%s",
			IDConvURL, strings.Join(pmids[i:end], ","), url.QueryEscape(email))

		resp, err := client.Get(ctx, reqURL)
		if err != nil {
			return nil, fmt.Errorf("id converter request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading id converter response: %w", err)
		}
		if resp.StatusCode != 200 {
			return nil, fmt.Errorf("id converter returned HTTP %d", resp.StatusCode)
		}

		var payload struct {
			Records []IDRecord `json:"records"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("parsing id converter response: %w", err)
		}
		records = append(records, payload.Records...)
	}
	return records, nil
}

// PMCResult is one OA service hit: a URL and its format, "pdf" or "tgz".
type PMCResult struct {
	URL    string
	Format string
}

// PMCLookup queries the PMC OA service for a full-text link, preferring
// pdf over tgz. It returns (nil, nil) when no link is available; lookup
// failures are soft so source resolution can continue.
func PMCLookup(ctx context.Context, client *httputil.Client, pmcid string) (*PMCResult, error) {
	reqURL := fmt.Sprintf("%s?id=%s", PMCOAURL, url.QueryEscape(pmcid))
	resp, err := client.Get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("pmc oa request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("pmc oa returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading pmc oa response: %w", err)
	}
	if bytes.Contains(body, []byte("<error")) {
		return nil, nil
	}

	var oa struct {
		Links []struct {
			Format string `xml:"format,attr"`
			Href   string `xml:"href,attr"`
		} `xml:"records>record>link"`
	}
	if err := xml.Unmarshal(body, &oa); err != nil {
		return nil, fmt.Errorf("parsing pmc oa response: %w", err)
	}

	var pdfHref, tgzHref string
	for _, link := range oa.Links {
		href := link.Href
		if href == "" {
			continue
		}
		// The OA service hands out ftp:// URLs that are also served
		// over HTTPS.
		href = strings.Replace(href, "ftp://", "https://", 1)
		switch link.Format {
		case "pdf":
			pdfHref = href
		case "tgz":
			tgzHref = href
		}
	}
	if pdfHref != "" {
		return &PMCResult{URL: pdfHref, Format: "pdf"}, nil
	}
	if tgzHref != "" {
		return &PMCResult{URL: tgzHref, Format: "tgz"}, nil
	}
	return nil, nil
}

// UnpaywallLookup returns the best open-access PDF URL for a DOI, or ""
// when the work is not open access.
func UnpaywallLookup(ctx context.Context, client *httputil.Client, doi, email string) (string, error) {
	reqURL := fmt.Sprintf("%s%s?email=%s", UnpaywallURL, url.PathEscape(doi), url.QueryEscape(email))
	resp, err := client.Get(ctx, reqURL)
	if err != nil {
		return "", fmt.Errorf("unpaywall request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("unpaywall returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		IsOA    bool `json:"is_oa"`
		BestLoc *struct {
			URLForPDF string `json:"url_for_pdf"`
		} `json:"best_oa_location"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("parsing unpaywall response: %w", err)
	}
	if !payload.IsOA || payload.BestLoc == nil {
		return "", nil
	}
	return payload.BestLoc.URLForPDF, nil
}

// extractPDFFromTgz finds the article PDF inside a PMC tar.gz package.
// Members above maxPDFMemberSize are skipped. When several PDFs are
// present the one whose name contains the PMCID wins, then the largest
// (main article over supplements). Returns nil when no suitable PDF
// exists.
func extractPDFFromTgz(content []byte, pmcid string) []byte {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil
	}
	defer gz.Close()

	type member struct {
		name string
		size int64
		data []byte
	}
	var pdfs []member

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		name := strings.ToLower(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(name, ".pdf") {
			continue
		}
		if hdr.Size <= 0 || hdr.Size > maxPDFMemberSize {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxPDFMemberSize))
		if err != nil {
			continue
		}
		pdfs = append(pdfs, member{name: name, size: hdr.Size, data: data})
	}
	if len(pdfs) == 0 {
		return nil
	}

	if pmcid != "" {
		needle := strings.ToLower(pmcid)
		var matching []member
		for _, m := range pdfs {
			if strings.Contains(m.name, needle) {
				matching = append(matching, m)
			}
		}
		if len(matching) > 0 {
			pdfs = matching
		}
	}

	best := pdfs[0]
	for _, m := range pdfs[1:] {
		if m.size > best.size {
			best = m
		}
	}
	return best.data
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/pkg/types"
)

// Source is a resolved download location for one article.
type Source struct {
	PMID   string
	Via    string // "pmc" or "unpaywall"; "" when nothing was found
	URL    string
	Format string // "pdf" or "tgz"
	PMCID  string
	DOI    string
}

// FindSources resolves a download URL for each article. PMC open access
// is tried first, Unpaywall second; either side can be disabled through
// cfg. Articles with no available source are returned with an empty URL
// so callers can report them.
func FindSources(ctx context.Context, client *httputil.Client, articles []types.Article, cfg types.DownloadConfig, email string, diag io.Writer) ([]Source, error) {
	pmids := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.PMID != "" {
			pmids = append(pmids, a.PMID)
		}
	}

	// Articles may already carry DOI/PMCID from parsing; the converter
	// fills whichever side is missing.
	ids := make(map[string]IDRecord, len(articles))
	for _, a := range articles {
		ids[a.PMID] = IDRecord{PMID: a.PMID, PMCID: a.PMCID, DOI: a.DOI}
	}
	var missing []string
	for _, a := range articles {
		if a.PMCID == "" || a.DOI == "" {
			missing = append(missing, a.PMID)
		}
	}
	if len(missing) > 0 {
		records, err := ConvertPMIDs(ctx, client, missing, email, 0)
		if err != nil {
			fmt.Fprintf(diag, "warning: id conversion failed: %v\n", err)
		}
		for _, rec := range records {
			cur := ids[rec.PMID]
			if cur.PMCID == "" {
				cur.PMCID = rec.PMCID
			}
			if cur.DOI == "" {
				cur.DOI = rec.DOI
			}
			cur.PMID = rec.PMID
			ids[rec.PMID] = cur
		}
	}

	sources := make([]Source, 0, len(pmids))
	for _, pmid := range pmids {
		rec := ids[pmid]
		src := Source{PMID: pmid, PMCID: rec.PMCID, DOI: rec.DOI}

		if rec.PMCID != "" && !cfg.UnpaywallOnly {
			result, err := PMCLookup(ctx, client, rec.PMCID)
			if err != nil {
				fmt.Fprintf(diag, "warning: PMC lookup for %s: %v\n", rec.PMCID, err)
			} else if result != nil {
				src.Via = "pmc"
				src.URL = result.URL
				src.Format = result.Format
			}
		}
		if src.URL == "" && rec.DOI != "" && !cfg.PMCOnly {
			pdfURL, err := UnpaywallLookup(ctx, client, rec.DOI, email)
			if err != nil {
				fmt.Fprintf(diag, "warning: Unpaywall lookup for %s: %v\n", rec.DOI, err)
			} else if pdfURL != "" {
				src.Via = "unpaywall"
				src.URL = pdfURL
				src.Format = "pdf"
			}
		}
		sources = append(sources, src)
	}
	return sources, nil
}

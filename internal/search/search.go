// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the NCBI ESearch endpoint and returns PMIDs.
// Results are cached in the workspace keyed by a digest of the query, and
// every search is recorded in the audit trail.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

// ESearchURL is the E-utilities search endpoint. Declared as a var so
// tests can substitute an httptest server.
var ESearchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"

var whitespace = regexp.MustCompile(`\s+`)

// cachePayload is the JSON shape stored in the search cache category.
type cachePayload struct {
	Query      string   `json:"query"`
	MaxResults int      `json:"max_results"`
	PMIDs      []string `json:"pmids"`
	Count      int      `json:"count"`
	Timestamp  string   `json:"timestamp"`
}

// eSearchResult is the recognized subset of the ESearch XML response.
type eSearchResult struct {
	IDs []string `xml:"IdList>Id"`
}

// Search returns the PMIDs matching a PubMed query. A cached result is
// reused unless refresh is set; fresh results are audited before they are
// cached, so the audit trail stays the source of truth if a write fails.
func Search(ctx context.Context, client *httputil.Client, ws *store.Workspace, query string, cfg types.EutilsConfig, refresh bool, diag io.Writer) ([]string, error) {
	if diag == nil {
		diag = io.Discard
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	max := cfg.MaxResults
	if max <= 0 {
		max = 10000
	}
	key := cacheKey(query, max)

	if !refresh {
		if cached, ok := ws.CacheRead("search", key); ok {
			var payload cachePayload
			if err := json.Unmarshal([]byte(cached), &payload); err == nil {
				ts := payload.Timestamp
				if len(ts) > 10 {
					ts = ts[:10]
				}
				fmt.Fprintf(diag, "pm-tools: using cached search from %s. Use --refresh to update.\n", ts)
				ws.Audit(map[string]any{
					"op": "search", "db": "pubmed", "query": query, "max": max,
					"count": len(payload.PMIDs), "cached": true, "original_ts": payload.Timestamp,
				})
				return payload.PMIDs, nil
			}
		}
	}

	reqURL := fmt.Sprintf("%s?db=pubmed&term=%s&retmax=%d&retmode=xml",
		ESearchURL, url.QueryEscape(query), max)
	if cfg.APIKey != "" {
		reqURL += "&api_key=" + url.QueryEscape(cfg.APIKey)
	}

	resp, err := client.Get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("esearch request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("esearch returned HTTP %d", resp.StatusCode)
	}

	var result eSearchResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}

	pmids := make([]string, 0, len(result.IDs))
	for _, id := range result.IDs {
		if s := strings.TrimSpace(id); s != "" {
			pmids = append(pmids, s)
		}
	}

	ws.Audit(map[string]any{
		"op": "search", "db": "pubmed", "query": query, "max": max,
		"count": len(pmids), "cached": false, "refreshed": refresh,
	})

	payload, err := json.Marshal(cachePayload{
		Query:      query,
		MaxResults: max,
		PMIDs:      pmids,
		Count:      len(pmids),
		Timestamp:  store.Timestamp(),
	})
	if err == nil {
		ws.CacheWrite("search", key, string(payload))
	}

	return pmids, nil
}

// cacheKey digests the whitespace-normalized query and result cap so the
// same logical search hits the same cache row.
func cacheKey(query string, max int) string {
	normalized := whitespace.ReplaceAllString(strings.TrimSpace(query), " ")
	keyData, _ := json.Marshal(map[string]any{"query": normalized, "max": max})
	return fmt.Sprintf("%x.json", sha256.Sum256(keyData))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cite fetches CSL-JSON citations from the NCBI Citation Exporter.
// Citations are cached per PMID; only the uncached remainder of a request
// goes to the API.
package cite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

// APIBaseURL is the Citation Exporter endpoint. Declared as a var so tests
// can substitute an httptest server.
var APIBaseURL = "https://pmc.ncbi.nlm.nih.gov/api/ctxp/v1/pubmed/"

// Cite returns CSL-JSON citations for the given PMIDs. Input is
// deduplicated preserving order; a batch that fails is skipped with a
// diagnostic rather than failing the run.
func Cite(ctx context.Context, client *httputil.Client, ws *store.Workspace, pmids []string, cfg types.EutilsConfig, refresh bool, diag io.Writer) ([]json.RawMessage, error) {
	if diag == nil {
		diag = io.Discard
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var unique []string
	for _, p := range pmids {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}

	cached := make(map[string]json.RawMessage)
	var uncached []string
	if !refresh {
		for _, pmid := range unique {
			if data, ok := ws.CacheRead("cite", pmid+".json"); ok {
				cached[pmid] = json.RawMessage(data)
			} else {
				uncached = append(uncached, pmid)
			}
		}
	} else {
		uncached = unique
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	fetched := make(map[string]json.RawMessage)
	var flat []json.RawMessage
	batches := 0
	for i := 0; i < len(uncached); i += batchSize {
		end := i + batchSize
		if end > len(uncached) {
			end = len(uncached)
		}
		batch := uncached[i:end]
		batches++
		fmt.Fprintf(diag, "Fetching citation batch %d (%d PMIDs)...\n", batches, len(batch))

		items, err := fetchBatch(ctx, client, batch)
		if err != nil {
			fmt.Fprintf(diag, "warning: citation batch %d failed, skipping: %v\n", batches, err)
			continue
		}
		for _, item := range items {
			flat = append(flat, item)
			pmid := itemPMID(item)
			if pmid == "" {
				continue
			}
			fetched[pmid] = item
			ws.CacheWrite("cite", pmid+".json", string(item))
		}
	}

	ws.Audit(map[string]any{
		"op": "cite", "requested": len(unique), "cached": len(cached),
		"fetched": len(fetched), "refreshed": refresh,
	})

	// No cache involved: return the API's own order.
	if len(cached) == 0 {
		return flat, nil
	}

	// Reassemble cached and fetched items in the original request order.
	var out []json.RawMessage
	for _, pmid := range unique {
		if item, ok := cached[pmid]; ok {
			out = append(out, item)
		} else if item, ok := fetched[pmid]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// fetchBatch requests one batch of citations. The API returns either a
// JSON array or a single object.
func fetchBatch(ctx context.Context, client *httputil.Client, pmids []string) ([]json.RawMessage, error) {
	reqURL := fmt.Sprintf("%s?format=csl&id=%s", APIBaseURL, strings.Join(pmids, ","))
	resp, err := client.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("citation exporter returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("parsing citation list: %w", err)
		}
		return items, nil
	}
	var item json.RawMessage
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("parsing citation: %w", err)
	}
	return []json.RawMessage{item}, nil
}

func itemPMID(item json.RawMessage) string {
	var probe struct {
		PMID string `json:"PMID"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return ""
	}
	return probe.PMID
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves PubMed citation XML from the EFetch endpoint.
// Requests are batched, rate limited by the shared client, and merged
// into a single PubmedArticleSet document.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

// EFetchURL is the E-utilities fetch endpoint. Declared as a var so tests
// can substitute an httptest server.
var EFetchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

const (
	xmlHeader  = "<?xml version=\"1.0\" ?>\n"
	xmlDoctype = "<!DOCTYPE PubmedArticleSet PUBLIC \"-//NLM//DTD PubMedArticle, 1st January 2024//EN\"\n" +
		" \"https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd\">\n"

	setOpen  = "<PubmedArticleSet"
	setClose = "</PubmedArticleSet>"
)

// Fetch returns the PubMed XML for the given PMIDs as one document.
// Empty identifiers are dropped; an empty list yields an empty string.
func Fetch(ctx context.Context, client *httputil.Client, ws *store.Workspace, pmids []string, cfg types.EutilsConfig, refresh bool, diag io.Writer) (string, error) {
	if diag == nil {
		diag = io.Discard
	}

	clean := make([]string, 0, len(pmids))
	for _, p := range pmids {
		if s := strings.TrimSpace(p); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return "", nil
	}

	key := cacheKey(clean)
	if !refresh {
		if cached, ok := ws.CacheRead("fetch", key); ok {
			fmt.Fprintf(diag, "pm-tools: using cached fetch. Use --refresh to update.\n")
			ws.Audit(map[string]any{"op": "fetch", "requested": len(clean), "cached": true})
			return cached, nil
		}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var responses []string
	batches := 0
	for i := 0; i < len(clean); i += batchSize {
		end := i + batchSize
		if end > len(clean) {
			end = len(clean)
		}
		batch := clean[i:end]
		batches++
		fmt.Fprintf(diag, "Fetching batch %d (%d PMIDs)...\n", batches, len(batch))

		reqURL := fmt.Sprintf("%s?db=pubmed&id=%s&rettype=abstract&retmode=xml",
			EFetchURL, strings.Join(batch, ","))
		if cfg.APIKey != "" {
			reqURL += "&api_key=" + cfg.APIKey
		}

		resp, err := client.Get(ctx, reqURL)
		if err != nil {
			return "", fmt.Errorf("efetch request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("reading efetch response: %w", err)
		}
		if resp.StatusCode != 200 {
			return "", fmt.Errorf("efetch returned HTTP %d", resp.StatusCode)
		}
		responses = append(responses, string(body))
	}

	merged := mergeResponses(responses)

	ws.Audit(map[string]any{
		"op": "fetch", "requested": len(clean), "batches": batches, "cached": false,
	})
	if merged != "" {
		ws.CacheWrite("fetch", key, merged)
	}
	return merged, nil
}

// mergeResponses combines per-batch XML documents into one. Each response
// is a complete document with its own declaration and PubmedArticleSet
// root; the article fragments are spliced into a single envelope.
func mergeResponses(responses []string) string {
	if len(responses) == 0 {
		return ""
	}
	if len(responses) == 1 {
		return responses[0]
	}

	var fragments []string
	for _, resp := range responses {
		inner, ok := innerArticleSet(resp)
		if !ok {
			continue
		}
		if inner = strings.TrimSpace(inner); inner != "" {
			fragments = append(fragments, inner)
		}
	}
	if len(fragments) == 0 {
		return ""
	}
	return xmlHeader + xmlDoctype + "<PubmedArticleSet>\n" +
		strings.Join(fragments, "\n") + "\n</PubmedArticleSet>"
}

// innerArticleSet returns the content between the PubmedArticleSet open
// and close tags.
func innerArticleSet(doc string) (string, bool) {
	start := strings.Index(doc, setOpen)
	if start < 0 {
		return "", false
	}
	gt := strings.IndexByte(doc[start:], '>')
	if gt < 0 {
		return "", false
	}
	start += gt + 1
	end := strings.LastIndex(doc, setClose)
	if end < start {
		return "", false
	}
	return doc[start:end], true
}

// cacheKey digests the PMID list.
func cacheKey(pmids []string) string {
	return fmt.Sprintf("%x.xml", sha256.Sum256([]byte(strings.Join(pmids, ","))))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

// RetryDelay is the pause between download attempts on 503/429. A var so
// tests can shorten it.
var RetryDelay = 5 * time.Second

const downloadRetries = 3

// Stats summarizes one download run.
type Stats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// DownloadPDFs fetches each resolved source into cfg.OutputDir as
// <pmid>.pdf. Existing files are skipped unless cfg.Overwrite is set.
// Fetched bytes must parse as PDF before they are written; anything else
// counts as a failure. Per-source failures do not abort the run.
func DownloadPDFs(ctx context.Context, client *httputil.Client, sources []Source, cfg types.DownloadConfig, ws *store.Workspace, diag io.Writer) (Stats, error) {
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = "pdfs"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("creating output directory: %w", err)
	}

	var stats Stats
	for _, src := range sources {
		if src.URL == "" {
			fmt.Fprintf(diag, "no source: %s\n", src.PMID)
			stats.Failed++
			continue
		}

		dest := filepath.Join(outDir, src.PMID+".pdf")
		if !cfg.Overwrite {
			if _, err := os.Stat(dest); err == nil {
				fmt.Fprintf(diag, "exists:    %s\n", dest)
				stats.Skipped++
				continue
			}
		}

		data, err := fetchWithRetry(ctx, client, src.URL)
		if err != nil {
			fmt.Fprintf(diag, "failed:    %s (%v)\n", src.PMID, err)
			stats.Failed++
			continue
		}
		if src.Format == "tgz" {
			data = extractPDFFromTgz(data, src.PMCID)
			if data == nil {
				fmt.Fprintf(diag, "failed:    %s (no PDF in PMC package)\n", src.PMID)
				stats.Failed++
				continue
			}
		}
		if err := verifyPDF(data); err != nil {
			fmt.Fprintf(diag, "failed:    %s (%v)\n", src.PMID, err)
			stats.Failed++
			continue
		}

		if err := os.WriteFile(dest, data, 0o644); err != nil {
			fmt.Fprintf(diag, "failed:    %s (%v)\n", src.PMID, err)
			stats.Failed++
			continue
		}
		fmt.Fprintf(diag, "saved:     %s (%s, %d bytes)\n", dest, src.Via, len(data))
		stats.Downloaded++
	}

	if ws != nil {
		ws.Audit(map[string]any{
			"op":         "download",
			"requested":  len(sources),
			"downloaded": stats.Downloaded,
			"skipped":    stats.Skipped,
			"failed":     stats.Failed,
		})
	}
	return stats, nil
}

// fetchWithRetry downloads a URL, retrying on 503 and 429 with a fixed
// pause. The client's own backoff already covers 429 once; publishers'
// OA mirrors also throw intermittent 503s.
func fetchWithRetry(ctx context.Context, client *httputil.Client, rawURL string) ([]byte, error) {
	var lastStatus int
	for attempt := 0; attempt < downloadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := client.Get(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == 503 || resp.StatusCode == 429 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastStatus = resp.StatusCode
			continue
		}
		if resp.StatusCode != 200 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("HTTP %d after %d attempts", lastStatus, downloadRetries)
}

// verifyPDF checks that data parses as a PDF document.
func verifyPDF(data []byte) error {
	if _, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("not a valid PDF: %w", err)
	}
	return nil
}

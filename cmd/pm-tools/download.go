// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/download"
	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download [file]",
	Short: "Download open-access PDFs for JSONL records",
	Long: `Download reads JSONL records, resolves a full-text source per PMID
through PMC open access and Unpaywall, and saves <pmid>.pdf files.
Downloads are verified to parse as PDF before being written; PMC tgz
packages are unpacked in memory to find the article PDF. Existing files
are skipped unless --overwrite is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("out", "pdfs", "output directory for PDFs")
	downloadCmd.Flags().Bool("overwrite", false, "replace existing files")
	downloadCmd.Flags().Bool("pmc-only", false, "use only PMC open access sources")
	downloadCmd.Flags().Bool("unpaywall-only", false, "use only Unpaywall sources")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg := types.DownloadConfig{}
	cfg.OutputDir, _ = cmd.Flags().GetString("out")
	cfg.Overwrite, _ = cmd.Flags().GetBool("overwrite")
	cfg.PMCOnly, _ = cmd.Flags().GetBool("pmc-only")
	cfg.UnpaywallOnly, _ = cmd.Flags().GetBool("unpaywall-only")
	if cfg.PMCOnly && cfg.UnpaywallOnly {
		return fmt.Errorf("--pmc-only and --unpaywall-only are mutually exclusive")
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}
	articles, err := readArticles(in)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		return fmt.Errorf("no records to download")
	}

	eutils := eutilsConfig()
	email := secretDefault("unpaywall-email", eutils.Email)
	if email == "" {
		email = "user@example.com"
	}

	ws, err := store.Find()
	if err != nil {
		return err
	}
	defer ws.Close()

	client := httputil.NewClient(eutils)
	ctx := cmd.Context()

	sources, err := download.FindSources(ctx, client, articles, cfg, email, os.Stderr)
	if err != nil {
		return err
	}
	stats, err := download.DownloadPDFs(ctx, client, sources, cfg, ws, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Downloaded %d, skipped %d, failed %d\n",
		stats.Downloaded, stats.Skipped, stats.Failed)
	if stats.Failed > 0 && stats.Downloaded == 0 && stats.Skipped == 0 {
		return fmt.Errorf("all %d download(s) failed", stats.Failed)
	}
	return nil
}

// readArticles parses JSONL records, skipping malformed lines with a
// warning the way parse and diff do.
func readArticles(r io.Reader) ([]types.Article, error) {
	const maxLine = 8 * 1024 * 1024
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var articles []types.Article
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var a types.Article
		if err := json.Unmarshal(line, &a); err != nil {
			fmt.Fprintf(os.Stderr, "warning: line %d: invalid JSON, skipping\n", lineNo)
			continue
		}
		if a.PMID == "" {
			fmt.Fprintf(os.Stderr, "warning: line %d: record has no pmid, skipping\n", lineNo)
			continue
		}
		articles = append(articles, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return articles, nil
}

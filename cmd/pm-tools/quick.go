// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/fetch"
	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/parse"
	"github.com/pdiddy/pm-tools/internal/search"
	"github.com/pdiddy/pm-tools/internal/store"
	"github.com/pdiddy/pm-tools/pkg/types"
)

var quickCmd = &cobra.Command{
	Use:   "quick <query terms...>",
	Short: "Search, fetch, and parse in one step",
	Long: `Quick runs the common path end to end: search PubMed for the query,
fetch the matching article XML, and parse it into JSONL on stdout. Each
stage uses the workspace cache, so re-running a quick query is cheap.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuick,
}

func init() {
	quickCmd.Flags().Int("max", 0, "maximum PMIDs to process (default 10000)")
	quickCmd.Flags().Bool("refresh", false, "bypass the cache at every stage")
	quickCmd.Flags().String("out", "", "write JSONL to a file instead of stdout")

	rootCmd.AddCommand(quickCmd)
}

func runQuick(cmd *cobra.Command, args []string) error {
	max, _ := cmd.Flags().GetInt("max")
	refresh, _ := cmd.Flags().GetBool("refresh")
	outPath, _ := cmd.Flags().GetString("out")

	query := strings.Join(args, " ")
	cfg := eutilsConfig()
	if max > 0 {
		cfg.MaxResults = max
	}

	ws, err := store.Find()
	if err != nil {
		return err
	}
	defer ws.Close()

	client := httputil.NewClient(cfg)
	ctx := cmd.Context()

	pmids, err := search.Search(ctx, client, ws, query, cfg, refresh, os.Stderr)
	if err != nil {
		return err
	}
	if len(pmids) == 0 {
		fmt.Fprintln(os.Stderr, "No results.")
		return nil
	}
	fmt.Fprintf(os.Stderr, "Found %d PMID(s)\n", len(pmids))

	xmlDoc, err := fetch.Fetch(ctx, client, ws, pmids, cfg, refresh, os.Stderr)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	result, err := parse.Run(strings.NewReader(xmlDoc), out, types.ParseConfig{}, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Parsed %d article(s), skipped %d\n", result.Parsed, result.Skipped)
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/search"
	"github.com/pdiddy/pm-tools/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search [query terms...]",
	Short: "Search PubMed for PMIDs matching a query",
	Long: `Search runs a PubMed E-utilities esearch and prints matching PMIDs one
per line. Results are cached in the .pm/ workspace; repeat a search with
--refresh to bypass the cache. With --out the query and its results are
written to a YAML query file that fetch and quick can consume later.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max", 0, "maximum PMIDs to return (default 10000)")
	searchCmd.Flags().Bool("refresh", false, "bypass the cache and re-run the search")
	searchCmd.Flags().String("out", "", "write query and results to a YAML query file")
	searchCmd.Flags().String("query-file", "", "read the query from a YAML query file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	max, _ := cmd.Flags().GetInt("max")
	refresh, _ := cmd.Flags().GetBool("refresh")
	out, _ := cmd.Flags().GetString("out")
	queryFile, _ := cmd.Flags().GetString("query-file")

	query := strings.Join(args, " ")
	if queryFile != "" {
		qf, err := search.ReadQueryFile(queryFile)
		if err != nil {
			return err
		}
		query = qf.Query
		if max == 0 {
			max = qf.Max
		}
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("provide a query or --query-file")
	}

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
	pmids, err := search.Search(cmd.Context(), client, ws, query, cfg, refresh, os.Stderr)
	if err != nil {
		return err
	}

	for _, pmid := range pmids {
		fmt.Println(pmid)
	}
	fmt.Fprintf(os.Stderr, "Found %d PMID(s)\n", len(pmids))

	if out != "" {
		if err := search.WriteQueryFile(out, query, cfg.MaxResults, pmids); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote query file %s\n", out)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/fetch"
	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/search"
	"github.com/pdiddy/pm-tools/internal/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [PMIDs...]",
	Short: "Fetch PubMed article XML for a set of PMIDs",
	Long: `Fetch retrieves article XML from E-utilities efetch and writes one
merged PubmedArticleSet document to stdout. PMIDs come from arguments,
from a YAML query file written by search --out, or from stdin (one per
line) when neither is given. Responses are cached in the .pm/ workspace.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("refresh", false, "bypass the cache and re-fetch")
	fetchCmd.Flags().String("query-file", "", "read PMIDs from a YAML query file")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	queryFile, _ := cmd.Flags().GetString("query-file")

	pmids := args
	if queryFile != "" {
		qf, err := search.ReadQueryFile(queryFile)
		if err != nil {
			return err
		}
		pmids = qf.PMIDs
	}
	if len(pmids) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				pmids = append(pmids, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading PMIDs from stdin: %w", err)
		}
	}
	if len(pmids) == 0 {
		return fmt.Errorf("provide PMIDs as arguments, via --query-file, or on stdin")
	}

	cfg := eutilsConfig()
	ws, err := store.Find()
	if err != nil {
		return err
	}
	defer ws.Close()

	client := httputil.NewClient(cfg)
	xmlDoc, err := fetch.Fetch(cmd.Context(), client, ws, pmids, cfg, refresh, os.Stderr)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.WriteString(xmlDoc); err != nil {
		return fmt.Errorf("writing XML: %w", err)
	}
	return nil
}

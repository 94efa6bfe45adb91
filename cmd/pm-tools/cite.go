// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/cite"
	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/internal/store"
)

var citeCmd = &cobra.Command{
	Use:   "cite <PMIDs...>",
	Short: "Generate formatted citations for PMIDs",
	Long: `Cite fetches CSL metadata from the NCBI citation exporter and prints a
formatted citation per PMID. Styles: vancouver (default) and apa. With
--format csl the raw CSL-JSON items are printed instead. Citation data
is cached per PMID in the .pm/ workspace.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCite,
}

func init() {
	citeCmd.Flags().String("style", "vancouver", "citation style: vancouver or apa")
	citeCmd.Flags().String("format", "text", "output format: text or csl")
	citeCmd.Flags().Bool("refresh", false, "bypass the cache and re-fetch")

	rootCmd.AddCommand(citeCmd)
}

func runCite(cmd *cobra.Command, args []string) error {
	style, _ := cmd.Flags().GetString("style")
	format, _ := cmd.Flags().GetString("format")
	refresh, _ := cmd.Flags().GetBool("refresh")

	if style != "vancouver" && style != "apa" {
		return fmt.Errorf("unknown citation style %q (want vancouver or apa)", style)
	}
	if format != "text" && format != "csl" {
		return fmt.Errorf("unknown output format %q (want text or csl)", format)
	}

	cfg := eutilsConfig()
	ws, err := store.Find()
	if err != nil {
		return err
	}
	defer ws.Close()

	client := httputil.NewClient(cfg)
	items, err := cite.Cite(cmd.Context(), client, ws, args, cfg, refresh, os.Stderr)
	if err != nil {
		return err
	}

	if format == "csl" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return fmt.Errorf("writing CSL item: %w", err)
			}
		}
		return nil
	}

	for _, item := range items {
		text, err := cite.FormatCitation(item, style)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			continue
		}
		fmt.Println(text)
	}
	return nil
}

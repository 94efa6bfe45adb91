// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/filter"
	"github.com/pdiddy/pm-tools/internal/store"
)

var filterCmd = &cobra.Command{
	Use:   "filter [file]",
	Short: "Screen JSONL records by field criteria",
	Long: `Filter reads JSONL records and writes the ones matching every given
criterion, byte-identical to the input lines. When a .pm/ workspace
exists, each run appends a PRISMA screening event (input, output,
excluded counts plus the criteria) to the audit trail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().String("year", "", `publication year or range: "2024", "2020-2024", "2020-", "-2024"`)
	filterCmd.Flags().String("journal", "", "journal substring, case-insensitive")
	filterCmd.Flags().String("journal-exact", "", "exact journal title")
	filterCmd.Flags().String("author", "", "author substring, case-insensitive")
	filterCmd.Flags().String("title", "", "title substring, case-insensitive")
	filterCmd.Flags().String("pmids", "", "comma-separated PMID allow-list")
	filterCmd.Flags().Int("min-authors", 0, "minimum number of authors")
	filterCmd.Flags().Bool("has-abstract", false, "require a non-empty abstract")
	filterCmd.Flags().Bool("has-doi", false, "require a DOI")

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	crit := filter.Criteria{}
	crit.Year, _ = cmd.Flags().GetString("year")
	crit.Journal, _ = cmd.Flags().GetString("journal")
	crit.JournalExact, _ = cmd.Flags().GetString("journal-exact")
	crit.Author, _ = cmd.Flags().GetString("author")
	crit.Title, _ = cmd.Flags().GetString("title")
	crit.PMIDs, _ = cmd.Flags().GetString("pmids")
	crit.MinAuthors, _ = cmd.Flags().GetInt("min-authors")
	crit.HasAbstract, _ = cmd.Flags().GetBool("has-abstract")
	crit.HasDOI, _ = cmd.Flags().GetBool("has-doi")

	pred, err := crit.Compile()
	if err != nil {
		return err
	}

	in := os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	ws, err := store.Find()
	if err != nil {
		return err
	}
	defer ws.Close()

	result, err := filter.Apply(in, os.Stdout, pred, ws, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Kept %d of %d record(s)\n", result.Output, result.Input)
	return nil
}

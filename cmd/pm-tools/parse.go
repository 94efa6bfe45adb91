// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/parse"
	"github.com/pdiddy/pm-tools/pkg/types"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Convert PubMed XML to JSONL records",
	Long: `Parse reads a PubMed efetch XML document and writes one JSON object per
article to stdout. Input comes from a file, a .gz file, or stdin when the
argument is "-" or omitted. Malformed article blocks are skipped with a
warning; the whole input never fails because of one bad record.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Int("workers", 1, "number of extraction workers (1 = sequential)")
	parseCmd.Flags().Bool("ordered", true, "emit records in input order when workers > 1")
	parseCmd.Flags().BoolP("verbose", "v", false, "report each parsed article on stderr")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	workers, _ := cmd.Flags().GetInt("workers")
	ordered, _ := cmd.Flags().GetBool("ordered")
	verbose, _ := cmd.Flags().GetBool("verbose")

	in, err := parse.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg := types.ParseConfig{
		Workers: workers,
		Ordered: ordered,
		Verbose: verbose,
	}

	result, err := parse.Run(in, os.Stdout, cfg, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Parsed %d article(s), skipped %d\n", result.Parsed, result.Skipped)
	return nil
}

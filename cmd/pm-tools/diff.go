// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/diff"
	"github.com/pdiddy/pm-tools/pkg/types"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old.jsonl> <new.jsonl>",
	Short: "Compare two JSONL record collections",
	Long: `Diff indexes both collections by PMID and reports added, removed, and
field-level changed records. Exit status is 0 when the collections are
identical, 1 when any difference exists, and 2 on an operational error,
so scripts can branch on the outcome.

--keys prints bare PMIDs for one category; --jsonl emits machine-readable
diff records; --quiet suppresses output and stops at the first difference.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolP("quiet", "q", false, "no output; exit status only")
	diffCmd.Flags().String("keys", "", "print bare PMIDs for one category: added, removed, or changed")
	diffCmd.Flags().Bool("jsonl", false, "emit one JSON diff record per differing PMID")
	diffCmd.Flags().String("ignore", "", "comma-separated fields to exclude from comparison")
	diffCmd.Flags().Int("max-examples", 10, "example differences shown in the summary")

	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	keysCat, _ := cmd.Flags().GetString("keys")
	jsonl, _ := cmd.Flags().GetBool("jsonl")
	ignore, _ := cmd.Flags().GetString("ignore")
	maxExamples, _ := cmd.Flags().GetInt("max-examples")

	cfg := types.DiffConfig{MaxExamples: maxExamples}
	if ignore != "" {
		for _, f := range strings.Split(ignore, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.IgnoreFields = append(cfg.IgnoreFields, f)
			}
		}
	}

	old, err := loadCollection(args[0], quiet)
	if err != nil {
		return err
	}
	new_, err := loadCollection(args[1], quiet)
	if err != nil {
		return err
	}

	if quiet {
		if diff.HasDifference(old, new_, cfg) {
			return errDifferences
		}
		return nil
	}

	rep := diff.Compare(old, new_, cfg)

	switch {
	case keysCat != "":
		keys, err := rep.Keys(keysCat)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
	case jsonl:
		if err := diff.WriteJSONL(os.Stdout, rep, old, new_); err != nil {
			return err
		}
	default:
		diff.FormatSummary(os.Stdout, rep, cfg.MaxExamples)
	}

	if rep.HasDifferences() {
		return errDifferences
	}
	return nil
}

// loadCollection indexes one JSONL file, with "-" reading stdin.
// Per-line diagnostics are suppressed in quiet mode.
func loadCollection(path string, quiet bool) (*diff.Collection, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
	}

	diag := os.Stderr
	if quiet {
		devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err == nil {
			defer devNull.Close()
			diag = devNull
		}
	}
	coll, err := diff.Load(f, diag)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return coll, nil
}

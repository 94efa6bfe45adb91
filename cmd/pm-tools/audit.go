// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/audit"
	"github.com/pdiddy/pm-tools/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the workspace audit trail",
	Long: `Audit summarizes the operations recorded in .pm/audit.jsonl. With
--searches it lists the search history; with --prisma it renders a
PRISMA-style flow from the recorded search and filter events.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().Bool("searches", false, "list search operations with dates and counts")
	auditCmd.Flags().Bool("prisma", false, "render a PRISMA flow from search and filter events")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	showSearches, _ := cmd.Flags().GetBool("searches")
	showPRISMA, _ := cmd.Flags().GetBool("prisma")

	ws, err := store.Find()
	if err != nil {
		return err
	}
	if ws == nil {
		return fmt.Errorf("no .pm/ workspace found (run pm-tools init)")
	}
	defer ws.Close()

	switch {
	case showSearches:
		searches, err := audit.Searches(ws)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, audit.FormatSearches(searches))
	case showPRISMA:
		searches, err := audit.Searches(ws)
		if err != nil {
			return err
		}
		filters, err := audit.Filters(ws)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, audit.FormatPRISMA(searches, filters))
	default:
		summary, err := audit.Summarize(ws)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, audit.FormatSummary(summary))
	}
	return nil
}

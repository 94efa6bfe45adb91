// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pm-tools/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .pm/ workspace in the current directory",
	Long: `Init creates a .pm/ directory holding the result cache and the audit
trail. The cache database is gitignored; audit.jsonl is plain JSONL meant
to be committed alongside the review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := store.Init(".")
		if err != nil {
			return err
		}
		defer ws.Close()
		fmt.Printf("Initialized workspace at %s\n", ws.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

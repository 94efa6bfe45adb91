// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pm-tools CLI. Subcommands cover
// the PubMed workflow end to end: search, fetch, parse, filter, diff,
// cite, download, and audit, plus quick to compose the common path.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pm-tools/internal/secrets"
	"github.com/pdiddy/pm-tools/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the pm-tools CLI.
var rootCmd = &cobra.Command{
	Use:   "pm-tools",
	Short: "PubMed search, extraction, and screening toolkit",
	Long: `pm-tools manages a PubMed literature workflow: search E-utilities for
PMIDs, fetch article XML, parse it into one JSON record per line, screen
records with filters, and compare record sets as reviews are updated.

Each stage is a subcommand reading and writing JSONL so stages compose
through files or pipes. Results are cached in a .pm/ workspace with an
append-only audit trail for PRISMA reporting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pm-tools.yaml or ~/.config/pm-tools/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pm-tools")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pm-tools"))
		}
	}

	viper.SetEnvPrefix("PM_TOOLS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// eutilsConfig assembles E-utilities settings from defaults, the config
// file, and secrets, in rising priority.
func eutilsConfig() types.EutilsConfig {
	cfg := types.DefaultEutils()
	if v := viper.GetString("eutils.user_agent"); v != "" {
		cfg.UserAgent = v
	}
	if v := viper.GetInt("eutils.batch_size"); v > 0 {
		cfg.BatchSize = v
	}
	if v := viper.GetInt("eutils.max_results"); v > 0 {
		cfg.MaxResults = v
	}
	cfg.APIKey = secretDefault("ncbi-api-key", viper.GetString("eutils.api_key"))
	cfg.Email = secretDefault("ncbi-email", viper.GetString("eutils.email"))
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDifferences) {
			os.Exit(ExitDifferences)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

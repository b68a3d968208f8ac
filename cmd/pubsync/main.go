// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pubsync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pubsync/internal/secrets"
	"github.com/pdiddy/pubsync/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API credentials loaded from .secrets/ at startup.
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

// rootCmd is the base command for the pubsync CLI.
var rootCmd = &cobra.Command{
	Use:   "pubsync",
	Short: "Reconcile publication records into a canonical catalog",
	Long: `pubsync maintains a per-owner canonical publication catalog built from
bibliographic sources (Scopus, PubMed, CrossRef, ORCID). It merges records
by DOI, protects manually edited fields, resolves duplicates (case-folded
DOIs, versioned DOIs, published preprints), and links authors to their
external identifiers.

Each operation is a subcommand: sync, dedupe, enrich, edit, list, status.`,
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

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pubsync.yaml or ~/.config/pubsync/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for catalog data (default: ./data)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pubsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pubsync"))
		}
	}

	viper.SetEnvPrefix("PUBSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// syncConfig assembles the full configuration from flags, the config
// file, and loaded secrets.
func syncConfig(cmd *cobra.Command) types.SyncConfig {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = viper.GetString("catalog.data_dir")
	}
	if dataDir == "" {
		dataDir = "data"
	}

	cfg := types.SyncConfig{
		Catalog: types.CatalogConfig{DataDir: dataDir},
		Sources: types.SourcesConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("sources.timeout"),
				UserAgent: viper.GetString("sources.user_agent"),
			},
			ScopusAPIKey:   secretDefault("scopus-api-key", viper.GetString("sources.scopus_api_key")),
			PubMedEmail:    secretDefault("pubmed-email", viper.GetString("sources.pubmed_email")),
			CrossRefMailto: secretDefault("crossref-mailto", viper.GetString("sources.crossref_mailto")),
			ORCIDToken:     secretDefault("orcid-token", viper.GetString("sources.orcid_token")),
			RequestDelay:   viper.GetDuration("sources.request_delay"),
			MaxRetries:     viper.GetInt("sources.max_retries"),
		},
		Dedup: types.DedupConfig{
			TitleThreshold:  viper.GetFloat64("dedup.title_threshold"),
			AuthorThreshold: viper.GetFloat64("dedup.author_threshold"),
		},
		ProgressRetention: viper.GetDuration("progress_retention"),
	}

	if cfg.Sources.Timeout == 0 {
		cfg.Sources.Timeout = 60 * time.Second
	}
	if cfg.Sources.UserAgent == "" {
		cfg.Sources.UserAgent = "pubsync/" + version
	}
	if cfg.Sources.RequestDelay == 0 {
		cfg.Sources.RequestDelay = 1 * time.Second
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

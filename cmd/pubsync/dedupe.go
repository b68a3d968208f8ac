// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Resolve duplicate publications in the catalog",
	Long: `Dedupe runs the duplicate resolution passes over the owner's catalog:
merge case-fold DOI collisions, collapse versioned DOIs onto the highest
version, and soft-ignore preprints whose published version is present.`,
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().Int64("owner", 0, "catalog owner ID (required)")
	dedupeCmd.Flags().Float64("title-threshold", 0, "minimum title similarity for preprint matching (default 0.85)")
	dedupeCmd.Flags().Float64("author-threshold", 0, "minimum author overlap for preprint matching (default 0.6)")

	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetInt64("owner")
	if owner == 0 {
		return fmt.Errorf("--owner is required")
	}

	cfg := syncConfig(cmd)
	if v, _ := cmd.Flags().GetFloat64("title-threshold"); v > 0 {
		cfg.Dedup.TitleThreshold = v
	}
	if v, _ := cmd.Flags().GetFloat64("author-threshold"); v > 0 {
		cfg.Dedup.AuthorThreshold = v
	}

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	resolver := dedupe.NewResolver(store, cfg.Dedup)
	summary, err := resolver.Run(context.Background(), owner, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Total() == 0 {
		fmt.Println("No duplicates found.")
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/sources"
	"github.com/pdiddy/pubsync/internal/syncer"
	"github.com/pdiddy/pubsync/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch source records and merge them into the catalog",
	Long: `Sync fetches the owner's records from the requested sources, merges
them into the catalog by DOI, resolves duplicates, and post-processes
preprint classification. Manually edited fields are never overwritten.

The final run status is written to the data directory so "pubsync status"
can report it later.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int64("owner", 0, "catalog owner ID (required)")
	syncCmd.Flags().StringSlice("source", []string{"crossref", "pubmed"}, "sources to sync, in order")
	syncCmd.Flags().String("orcid", "", "owner ORCID iD for CrossRef filtering")
	syncCmd.Flags().String("query", "", "author query for PubMed (e.g. \"Poldrack RA[Author]\")")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetInt64("owner")
	if owner == 0 {
		return fmt.Errorf("--owner is required")
	}

	names, _ := cmd.Flags().GetStringSlice("source")
	var sourceTypes []types.SourceType
	for _, n := range names {
		sourceTypes = append(sourceTypes, types.SourceType(n))
	}

	orcid, _ := cmd.Flags().GetString("orcid")
	term, _ := cmd.Flags().GetString("query")
	query := sources.Query{ORCID: orcid, Term: term}

	cfg := syncConfig(cmd)
	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc := syncer.NewService(store, cfg, nil, os.Stdout)
	runID, err := svc.Start(ctx, owner, sourceTypes, query)
	if err != nil {
		return err
	}
	fmt.Printf("started sync %s\n", runID)

	progress := pollUntilDone(svc, runID)
	if err := writeStatusFile(cfg.Catalog, owner, progress); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not write status file: %v\n", err)
	}

	if progress.Phase == syncer.PhaseFailed {
		return fmt.Errorf("sync failed: %s", progress.Error)
	}
	return nil
}

// pollUntilDone polls run progress until the run reaches a terminal
// phase, echoing phase transitions. A retired entry counts as done.
func pollUntilDone(svc *syncer.Service, runID string) syncer.Progress {
	var last syncer.Progress
	for {
		p, ok := svc.Progress(runID)
		if !ok {
			return last
		}
		if p.Phase != last.Phase || p.Percent != last.Percent {
			fmt.Printf("  %-16s %3d%%\n", p.Phase, p.Percent)
		}
		last = p
		if p.Phase.Terminal() {
			return p
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// statusFilePath is where sync writes the owner's last run snapshot.
func statusFilePath(cfg types.CatalogConfig, owner int64) string {
	return filepath.Join(cfg.DataDir, fmt.Sprintf("sync-status-%d.yaml", owner))
}

func writeStatusFile(cfg types.CatalogConfig, owner int64, p syncer.Progress) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(statusFilePath(cfg, owner), data, 0o644)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubsync/internal/syncer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the owner's last sync run",
	Long: `Status prints the snapshot of the owner's most recent sync run as
recorded by "pubsync sync". An owner with no recorded run reports idle.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Int64("owner", 0, "catalog owner ID (required)")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetInt64("owner")
	if owner == 0 {
		return fmt.Errorf("--owner is required")
	}

	cfg := syncConfig(cmd)
	data, err := os.ReadFile(statusFilePath(cfg.Catalog, owner))
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("owner %d: %s\n", owner, syncer.PhaseIdle)
			return nil
		}
		return err
	}

	var p syncer.Progress
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing status file: %w", err)
	}

	fmt.Printf("run %s (owner %d)\n", p.RunID, p.Owner)
	fmt.Printf("  phase:     %s (%d%%)\n", p.Phase, p.Percent)
	fmt.Printf("  processed: %d records (%d failed, %d sources failed)\n", p.Processed, p.Failed, p.FailedSources)
	if !p.FinishedAt.IsZero() {
		fmt.Printf("  finished:  %s\n", p.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if p.Error != "" {
		fmt.Printf("  error:     %s\n", p.Error)
	}
	return nil
}

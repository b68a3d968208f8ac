// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/merge"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Manually edit a publication field",
	Long: `Edit sets a field on a publication and marks it as manually edited.
Marked fields are protected: later syncs will not overwrite them.
Editable fields: title, year, journal, volume, page_range, ignore_reason.`,
	RunE: runEdit,
}

func init() {
	editCmd.Flags().Int64("owner", 0, "catalog owner ID (required)")
	editCmd.Flags().String("doi", "", "DOI of the publication to edit (required)")
	editCmd.Flags().String("field", "", "field to edit (required)")
	editCmd.Flags().String("value", "", "new field value")
	editCmd.Flags().String("actor", "cli", "who is making the edit, recorded in the history")

	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetInt64("owner")
	doi, _ := cmd.Flags().GetString("doi")
	field, _ := cmd.Flags().GetString("field")
	if owner == 0 || doi == "" || field == "" {
		return fmt.Errorf("--owner, --doi, and --field are required")
	}
	value, _ := cmd.Flags().GetString("value")
	actor, _ := cmd.Flags().GetString("actor")

	cfg := syncConfig(cmd)
	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	pub, err := store.GetByDOI(ctx, owner, doi)
	if err != nil {
		return fmt.Errorf("looking up %q: %w", doi, err)
	}

	engine := merge.NewEngine(store)
	if err := engine.MarkManualEdit(ctx, pub, field, value, actor); err != nil {
		return err
	}
	fmt.Printf("%s: %s set and protected from sync\n", doi, field)
	return nil
}

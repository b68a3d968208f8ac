// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/enrich"
	"github.com/pdiddy/pubsync/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Link a publication's authors to external identifiers",
	Long: `Enrich applies an authoritative author list to one publication,
copying Scopus IDs, ORCID iDs, and affiliations by position. When the
author counts disagree the stored list is replaced wholesale and the
replacement is recorded in the edit history.

The authoritative list is read from a YAML file of author entries
(name, scopus_id, orcid, affiliation).`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().Int64("owner", 0, "catalog owner ID (required)")
	enrichCmd.Flags().String("doi", "", "DOI of the publication to enrich (required)")
	enrichCmd.Flags().String("authors-file", "", "YAML file with the authoritative author list (required)")
	enrichCmd.Flags().Bool("force", false, "re-link authors that already carry external IDs")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetInt64("owner")
	doi, _ := cmd.Flags().GetString("doi")
	authorsFile, _ := cmd.Flags().GetString("authors-file")
	if owner == 0 || doi == "" || authorsFile == "" {
		return fmt.Errorf("--owner, --doi, and --authors-file are required")
	}
	force, _ := cmd.Flags().GetBool("force")

	data, err := os.ReadFile(authorsFile)
	if err != nil {
		return err
	}
	var authoritative []types.Author
	if err := yaml.Unmarshal(data, &authoritative); err != nil {
		return fmt.Errorf("parsing %s: %w", authorsFile, err)
	}

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

	result := enrich.Enrich(pub, authoritative, force, os.Stdout)
	switch result.Status {
	case enrich.StatusSkipped:
		fmt.Printf("%s: nothing to change (use --force to re-link)\n", doi)
		return nil
	case enrich.StatusNotFound:
		fmt.Printf("%s: empty authoritative list, attempt recorded\n", doi)
	case enrich.StatusReplaced:
		fmt.Printf("%s: author list replaced (%d authors)\n", doi, result.Linked)
	case enrich.StatusEnriched:
		fmt.Printf("%s: linked %d author(s)\n", doi, result.Linked)
	}

	return store.Update(ctx, pub)
}

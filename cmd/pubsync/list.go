// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's catalog",
	Long: `List prints the owner's publications. The table format shows a
summary line per record; yaml and json emit the full records.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Int64("owner", 0, "catalog owner ID (required)")
	listCmd.Flags().String("format", "table", "output format: table, yaml, or json")
	listCmd.Flags().Bool("ignored", false, "include soft-ignored records")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetInt64("owner")
	if owner == 0 {
		return fmt.Errorf("--owner is required")
	}
	format, _ := cmd.Flags().GetString("format")
	includeIgnored, _ := cmd.Flags().GetBool("ignored")

	cfg := syncConfig(cmd)
	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	pubs, err := store.ListByOwner(context.Background(), owner)
	if err != nil {
		return err
	}
	if !includeIgnored {
		live := pubs[:0]
		for _, p := range pubs {
			if !p.IsIgnored {
				live = append(live, p)
			}
		}
		pubs = live
	}

	switch format {
	case "yaml":
		data, err := yaml.Marshal(pubs)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pubs)
	case "table", "":
		printTable(pubs)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use table, yaml, or json", format)
	}
}

func printTable(pubs []*types.Publication) {
	if len(pubs) == 0 {
		fmt.Println("No publications found.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-6s  %-40s  %-50s  %-6s  %s\n",
		"Year", "DOI", "Title", "Flags", "Source")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 115))

	for _, p := range pubs {
		title := p.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		doi := p.DOI
		if len(doi) > 40 {
			doi = doi[:37] + "..."
		}

		var flags []string
		if p.IsPreprint {
			flags = append(flags, "P")
		}
		if p.IsIgnored {
			flags = append(flags, "I")
		}
		if len(p.ManualEdits) > 0 {
			flags = append(flags, "E")
		}

		fmt.Fprintf(os.Stdout, "%-6d  %-40s  %-50s  %-6s  %s\n",
			p.Year, doi, title, strings.Join(flags, ""), p.Source)
	}

	fmt.Fprintf(os.Stdout, "\n%d publications\n", len(pubs))
}

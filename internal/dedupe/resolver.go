// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedupe collapses duplicate and derivative publication
// records in three ordered passes: case-fold DOI collision merge,
// versioned-DOI collapse, and preprint-to-published matching.
package dedupe

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/normalize"
	"github.com/pdiddy/pubsync/pkg/types"
)

// Summary holds counts from one deduplication run.
type Summary struct {
	// Merged counts records absorbed by case-fold DOI collisions.
	Merged int

	// Collapsed counts superseded versions removed by the
	// versioned-DOI pass.
	Collapsed int

	// IgnoredPreprints counts preprints flagged because a published
	// version exists.
	IgnoredPreprints int
}

// Total returns the number of records the run touched.
func (s Summary) Total() int {
	return s.Merged + s.Collapsed + s.IgnoredPreprints
}

// Resolver runs the deduplication passes against the catalog.
type Resolver struct {
	store *catalog.Store
	cfg   types.DedupConfig
}

// NewResolver returns a resolver with cfg's thresholds (zero values
// fall back to the defaults).
func NewResolver(store *catalog.Store, cfg types.DedupConfig) *Resolver {
	return &Resolver{store: store, cfg: cfg.Defaults()}
}

// Run executes the three passes in order for one owner, writing
// per-action status lines to w. Each pass narrows the input to the
// next; the whole run is deterministic for a given catalog state.
func (r *Resolver) Run(ctx context.Context, owner int64, w io.Writer) (Summary, error) {
	var summary Summary

	merged, err := r.mergeCaseFoldCollisions(ctx, owner, w)
	if err != nil {
		return summary, fmt.Errorf("case-fold pass: %w", err)
	}
	summary.Merged = merged

	collapsed, err := r.collapseVersions(ctx, owner, w)
	if err != nil {
		return summary, fmt.Errorf("version pass: %w", err)
	}
	summary.Collapsed = collapsed

	ignored, err := r.flagPublishedPreprints(ctx, owner, w)
	if err != nil {
		return summary, fmt.Errorf("preprint pass: %w", err)
	}
	summary.IgnoredPreprints = ignored

	fmt.Fprintf(w, "dedup summary: %d merged, %d collapsed, %d preprints ignored\n",
		summary.Merged, summary.Collapsed, summary.IgnoredPreprints)
	return summary, nil
}

// mergeCaseFoldCollisions groups records by canonicalized DOI and
// merges each multi-member group into its earliest-created member.
// Earliest-created-wins keeps >2-way collisions deterministic.
func (r *Resolver) mergeCaseFoldCollisions(ctx context.Context, owner int64, w io.Writer) (int, error) {
	pubs, err := r.store.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}

	groups := make(map[string][]*types.Publication)
	for _, pub := range pubs {
		if pub.DOI == "" {
			continue
		}
		key := normalize.CanonicalDOI(pub.DOI)
		groups[key] = append(groups[key], pub)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := 0
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		// ListByOwner orders by creation time, so group[0] is the
		// earliest-created keeper.
		keeper := group[0]
		keeper.DOI = key
		for _, dup := range group[1:] {
			absorb(keeper, dup)
			if err := r.store.Delete(ctx, dup.ID); err != nil {
				return merged, err
			}
			fmt.Fprintf(w, "merged %q into %q (kept id %d)\n", dup.DOI, keeper.DOI, keeper.ID)
			merged++
		}
		if err := r.store.Update(ctx, keeper); err != nil {
			return merged, err
		}
	}
	return merged, nil
}

// collapseVersions groups versioned DOIs ("<base>/vN") by base and
// keeps only the highest version, absorbing identifiers from the
// dropped revisions.
func (r *Resolver) collapseVersions(ctx context.Context, owner int64, w io.Writer) (int, error) {
	pubs, err := r.store.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}

	type versioned struct {
		pub     *types.Publication
		version int
	}
	groups := make(map[string][]versioned)
	for _, pub := range pubs {
		base, version := normalize.SplitVersion(pub.DOI)
		if version == 0 {
			continue
		}
		groups[base] = append(groups[base], versioned{pub: pub, version: version})
	}

	bases := make([]string, 0, len(groups))
	for base := range groups {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	collapsed := 0
	for _, base := range bases {
		group := groups[base]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].version > group[j].version })

		keeper := group[0].pub
		for _, old := range group[1:] {
			keeper.Identifiers.Merge(old.pub.Identifiers)
			if err := r.store.Delete(ctx, old.pub.ID); err != nil {
				return collapsed, err
			}
			fmt.Fprintf(w, "collapsed %q (v%d) into %q\n", old.pub.DOI, old.version, keeper.DOI)
			collapsed++
		}
		if err := r.store.Update(ctx, keeper); err != nil {
			return collapsed, err
		}
	}
	return collapsed, nil
}

// flagPublishedPreprints compares every live preprint against every
// live non-preprint of the same owner, and soft-ignores preprints
// whose published version exists. Several preprints may match the
// same published record; each is flagged independently.
func (r *Resolver) flagPublishedPreprints(ctx context.Context, owner int64, w io.Writer) (int, error) {
	pubs, err := r.store.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}

	var preprints, published []*types.Publication
	for _, pub := range pubs {
		if pub.IsIgnored {
			continue
		}
		if pub.IsPreprint {
			preprints = append(preprints, pub)
		} else {
			published = append(published, pub)
		}
	}

	ignored := 0
	for _, pre := range preprints {
		match := r.findPublishedVersion(pre, published)
		if match == nil {
			continue
		}
		pre.IsIgnored = true
		pre.IgnoreReason = "published version exists: " + match.DOI
		if err := r.store.Update(ctx, pre); err != nil {
			return ignored, err
		}
		fmt.Fprintf(w, "ignored preprint %q (published as %q)\n", pre.DOI, match.DOI)
		ignored++
	}
	return ignored, nil
}

func (r *Resolver) findPublishedVersion(pre *types.Publication, published []*types.Publication) *types.Publication {
	for _, pub := range published {
		titleSim := TitleSimilarity(pre.Title, pub.Title)
		if titleSim < r.cfg.TitleThreshold {
			continue
		}
		if AuthorOverlap(pre.Authors, pub.Authors) < r.cfg.AuthorThreshold {
			continue
		}
		return pub
	}
	return nil
}

// absorb fills keeper's empty fields from dup (non-null-wins) and
// merges identifiers. The dup's edit history is appended so the audit
// trail survives the merge.
func absorb(keeper, dup *types.Publication) {
	if keeper.Title == "" {
		keeper.Title = dup.Title
	}
	if keeper.Year == 0 {
		keeper.Year = dup.Year
	}
	if keeper.Journal == "" {
		keeper.Journal = dup.Journal
	}
	if keeper.Volume == "" {
		keeper.Volume = dup.Volume
	}
	if keeper.PageRange == "" {
		keeper.PageRange = dup.PageRange
	}
	if len(keeper.Authors) == 0 {
		keeper.Authors = dup.Authors
	}
	keeper.Identifiers.Merge(dup.Identifiers)
	keeper.EditHistory = append(keeper.EditHistory, dup.EditHistory...)

	for source, raw := range dup.Metadata {
		if keeper.Metadata == nil {
			keeper.Metadata = map[string]map[string]any{}
		}
		if _, ok := keeper.Metadata[source]; !ok {
			keeper.Metadata[source] = raw
		}
	}
}

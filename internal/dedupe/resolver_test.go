// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedupe

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/pkg/types"
)

func testResolver(t *testing.T) (*Resolver, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(types.CatalogConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewResolver(store, types.DedupConfig{}), store
}

func insertPub(t *testing.T, store *catalog.Store, pub *types.Publication) *types.Publication {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), pub))
	return pub
}

func TestCaseFoldCollisionMerge(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	// Uppercase variant created first: it must be the keeper.
	older := insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.3758/BF03214547",
		Title:     "Older record",
		CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:    types.SourceManual,
	})
	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.3758/bf03214547",
		Title: "Newer record", PageRange: "119-124",
		Identifiers: types.Identifiers{PMID: "555"},
		CreatedAt:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:      types.SourceScopus,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Merged)

	pubs, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pubs, 1, "collision group must collapse to one record")

	kept := pubs[0]
	assert.Equal(t, older.ID, kept.ID, "earliest-created record wins")
	assert.Equal(t, "10.3758/bf03214547", kept.DOI, "keeper DOI is canonicalized")
	assert.Equal(t, "Older record", kept.Title)
	assert.Equal(t, "119-124", kept.PageRange, "non-null-wins fill from the absorbed record")
	assert.Equal(t, "555", kept.Identifiers.PMID)
}

func TestCaseFoldThreeWayDeterministic(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	for i, doi := range []string{"10.1/ABC", "10.1/abc", "10.1/aBc"} {
		insertPub(t, store, &types.Publication{
			Owner: 1, DOI: doi, Title: "Same paper",
			CreatedAt: time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Source:    types.SourceManual,
		})
	}

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Merged)

	pubs, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "10.1/abc", pubs[0].DOI)
}

func TestVersionCollapse(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.21203/rs.3.rs-264855/v2",
		Title:       "Preprint v2",
		Identifiers: types.Identifiers{PMID: "111"},
		Source:      types.SourceCrossRef,
	})
	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.21203/rs.3.rs-264855/v3",
		Title:  "Preprint v3",
		Source: types.SourceCrossRef,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Collapsed)

	pubs, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "10.21203/rs.3.rs-264855/v3", pubs[0].DOI, "highest version survives")
	assert.Equal(t, "111", pubs[0].Identifiers.PMID, "identifiers absorbed from dropped versions")
}

func TestPreprintPublishedMatch(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	preprint := insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1101/x",
		Title:          "Attention and Memory",
		Authors:        authorsNamed("Chang LJ", "Poldrack RA", "He J"),
		IsPreprint:     true,
		PreprintServer: "bioRxiv",
		Source:         types.SourceCrossRef,
	})
	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1038/y",
		Title:   "Attention and Memory",
		Authors: authorsNamed("Luke J. Chang", "Russell A. Poldrack"),
		Source:  types.SourceScopus,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.IgnoredPreprints)

	got, err := store.GetByID(ctx, preprint.ID)
	require.NoError(t, err)
	assert.True(t, got.IsIgnored, "preprint is soft-ignored, never deleted")
	assert.Equal(t, "published version exists: 10.1038/y", got.IgnoreReason)

	// The published record is untouched.
	pubs, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pubs, 2)
}

func TestPreprintNoMatchBelowThresholds(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	preprint := insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1101/x",
		Title:      "Attention and Memory in Humans",
		Authors:    authorsNamed("Chang LJ"),
		IsPreprint: true,
		Source:     types.SourceCrossRef,
	})
	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1038/y",
		Title:   "Attention and Memory in Humans",
		Authors: authorsNamed("Keller B"), // no author overlap
		Source:  types.SourceScopus,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Zero(t, summary.IgnoredPreprints)

	got, err := store.GetByID(ctx, preprint.ID)
	require.NoError(t, err)
	assert.False(t, got.IsIgnored)
}

func TestMultiplePreprintsMatchSamePublished(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	authors := authorsNamed("Chang LJ", "Poldrack RA")
	for _, doi := range []string{"10.1101/a", "10.31234/osf.io/b"} {
		insertPub(t, store, &types.Publication{
			Owner: 1, DOI: doi,
			Title:      "Reproducibility of neuroimaging analyses",
			Authors:    authors,
			IsPreprint: true,
			Source:     types.SourceCrossRef,
		})
	}
	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1038/pub",
		Title:   "Reproducibility of neuroimaging analyses",
		Authors: authors,
		Source:  types.SourceScopus,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.IgnoredPreprints, "each preprint is flagged independently")
}

func TestOwnersAreIsolated(t *testing.T) {
	r, store := testResolver(t)
	ctx := context.Background()

	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1/ABC", Title: "Owner one", Source: types.SourceManual,
	})
	insertPub(t, store, &types.Publication{
		Owner: 2, DOI: "10.1/abc", Title: "Owner two", Source: types.SourceManual,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Zero(t, summary.Merged, "records of different owners never merge")
}

func TestConfigurableThresholds(t *testing.T) {
	store, err := catalog.Open(types.CatalogConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Loose thresholds accept a weaker match.
	r := NewResolver(store, types.DedupConfig{TitleThreshold: 0.3, AuthorThreshold: 0.3})
	ctx := context.Background()

	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1101/x",
		Title:      "Decoding brain states from fMRI",
		Authors:    authorsNamed("Chang LJ", "Keller B", "Novak P"),
		IsPreprint: true,
		Source:     types.SourceCrossRef,
	})
	insertPub(t, store, &types.Publication{
		Owner: 1, DOI: "10.1038/y",
		Title:   "Decoding mental states from brain imaging",
		Authors: authorsNamed("Chang LJ", "Smith J", "Doe A"),
		Source:  types.SourceScopus,
	})

	summary, err := r.Run(ctx, 1, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.IgnoredPreprints)
}

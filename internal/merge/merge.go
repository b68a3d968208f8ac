// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge implements edit-protected create-or-update of a
// publication from a normalized candidate. Merging is deterministic:
// manually edited fields are never touched, and a present value is
// never replaced by an absent one (non-null-wins).
package merge

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/pdiddy/pubsync/internal/catalog"
	"github.com/pdiddy/pubsync/internal/normalize"
	"github.com/pdiddy/pubsync/pkg/types"
)

// Outcome classifies what an upsert did.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Engine merges candidates into the publication catalog.
type Engine struct {
	store *catalog.Store
}

// NewEngine returns an engine writing through the given store.
func NewEngine(store *catalog.Store) *Engine {
	return &Engine{store: store}
}

// Upsert merges one candidate into the owner's catalog. Re-applying an
// identical candidate is a no-op: no field changes and no new edit
// history entries, though LastAPISync is restamped.
func (e *Engine) Upsert(ctx context.Context, owner int64, cand *types.Candidate) (*types.Publication, Outcome, error) {
	doi := normalize.CanonicalDOI(cand.DOI)

	existing, err := e.lookup(ctx, owner, doi, cand.Identifiers.PMID, cand.Title)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, OutcomeUnchanged, err
	}

	if existing == nil {
		pub := newPublication(owner, doi, cand)
		if err := e.store.Insert(ctx, pub); err != nil {
			// Another record with this (owner, doi) appeared between
			// lookup and insert. Convert to the update path.
			if catalog.IsUniqueViolation(err) {
				existing, err = e.store.GetByDOI(ctx, owner, doi)
				if err != nil {
					return nil, OutcomeUnchanged, fmt.Errorf("refetching after constraint violation: %w", err)
				}
				return e.update(ctx, existing, cand)
			}
			return nil, OutcomeUnchanged, fmt.Errorf("inserting publication: %w", err)
		}
		return pub, OutcomeCreated, nil
	}

	return e.update(ctx, existing, cand)
}

// lookup finds the existing record a candidate should merge into: by
// canonical DOI, then by PMID, and for candidates carrying neither,
// by exact title so repeated title-only upserts stay idempotent.
func (e *Engine) lookup(ctx context.Context, owner int64, doi, pmid, title string) (*types.Publication, error) {
	if doi != "" {
		pub, err := e.store.GetByDOI(ctx, owner, doi)
		if err == nil || !errors.Is(err, catalog.ErrNotFound) {
			return pub, err
		}
	}
	if pmid != "" {
		pub, err := e.store.FindByPMID(ctx, owner, pmid)
		if err == nil || !errors.Is(err, catalog.ErrNotFound) {
			return pub, err
		}
	}
	if doi == "" && title != "" {
		return e.store.FindByTitle(ctx, owner, title)
	}
	return nil, catalog.ErrNotFound
}

func newPublication(owner int64, doi string, cand *types.Candidate) *types.Publication {
	pub := &types.Publication{
		Owner:       owner,
		DOI:         doi,
		Title:       cand.Title,
		Year:        cand.Year,
		Journal:     cand.Journal,
		Volume:      cand.Volume,
		PageRange:   cand.PageRange,
		Authors:     cand.Authors,
		Identifiers: cand.Identifiers,
		ManualEdits: map[string]bool{},
		Source:      cand.Source,
		LastAPISync: time.Now().UTC(),
	}
	if server, ok := normalize.PreprintServer(doi); ok {
		pub.IsPreprint = true
		pub.PreprintServer = server
	}
	if len(cand.Raw) > 0 {
		pub.Metadata = map[string]map[string]any{string(cand.Source): cand.Raw}
	}
	return pub
}

// update applies the candidate to an existing record field by field.
// Each field is skipped when manually edited; otherwise non-null-wins:
// an empty candidate value never overwrites, a differing non-empty
// candidate value wins (sync is the newer source of truth) and is
// logged in the edit history.
func (e *Engine) update(ctx context.Context, pub *types.Publication, cand *types.Candidate) (*types.Publication, Outcome, error) {
	changed := false

	// A record first seen without a DOI (PMID or title match) adopts
	// the candidate's DOI so the canonical (owner, doi) key forms and
	// later duplicate passes can see the record.
	if doi := normalize.CanonicalDOI(cand.DOI); pub.DOI == "" && doi != "" {
		pub.DOI = doi
		pub.AppendHistory(types.EditEntry{
			Field:  "doi",
			Action: types.ActionAPISyncUpdate,
			Actor:  string(cand.Source),
		})
		changed = true
	}

	apply := func(field string, current *string, next string) {
		if next == "" || pub.HasManualEdit(field) || *current == next {
			return
		}
		*current = next
		pub.AppendHistory(types.EditEntry{
			Field:  field,
			Action: types.ActionAPISyncUpdate,
			Actor:  string(cand.Source),
		})
		changed = true
	}

	apply("title", &pub.Title, cand.Title)
	apply("journal", &pub.Journal, cand.Journal)
	apply("volume", &pub.Volume, cand.Volume)
	apply("page_range", &pub.PageRange, cand.PageRange)

	if cand.Year != 0 && !pub.HasManualEdit("year") && pub.Year != cand.Year {
		pub.Year = cand.Year
		pub.AppendHistory(types.EditEntry{
			Field:  "year",
			Action: types.ActionAPISyncUpdate,
			Actor:  string(cand.Source),
		})
		changed = true
	}

	if len(cand.Authors) > 0 && !pub.HasManualEdit("authors") && !reflect.DeepEqual(pub.Authors, cand.Authors) {
		pub.Authors = cand.Authors
		pub.AppendHistory(types.EditEntry{
			Field:  "authors",
			Action: types.ActionAPISyncUpdate,
			Actor:  string(cand.Source),
		})
		changed = true
	}

	before := pub.Identifiers
	pub.Identifiers.Merge(cand.Identifiers)
	if pub.Identifiers != before {
		changed = true
	}

	if len(cand.Raw) > 0 {
		if pub.Metadata == nil {
			pub.Metadata = map[string]map[string]any{}
		}
		if !reflect.DeepEqual(pub.Metadata[string(cand.Source)], cand.Raw) {
			pub.Metadata[string(cand.Source)] = cand.Raw
			changed = true
		}
	}

	// Re-derive preprint status in case the DOI arrived late.
	if server, ok := normalize.PreprintServer(pub.DOI); ok && !pub.IsPreprint {
		pub.IsPreprint = true
		pub.PreprintServer = server
		changed = true
	}

	pub.LastAPISync = time.Now().UTC()
	if err := e.store.Update(ctx, pub); err != nil {
		return nil, OutcomeUnchanged, err
	}

	if changed {
		return pub, OutcomeUpdated, nil
	}
	return pub, OutcomeUnchanged, nil
}

// MarkManualEdit sets a field to a user-provided value, protects it
// from future sync updates, and records the edit. The author list is
// not edited here; it changes only through sync and enrichment.
func (e *Engine) MarkManualEdit(ctx context.Context, pub *types.Publication, field, value, actor string) error {
	switch field {
	case "title":
		pub.Title = value
	case "year":
		y, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("year must be an integer, got %q", value)
		}
		pub.Year = y
	case "journal":
		pub.Journal = value
	case "volume":
		pub.Volume = value
	case "page_range":
		pub.PageRange = value
	case "ignore_reason":
		pub.IgnoreReason = value
	default:
		return fmt.Errorf("field %q is not manually editable", field)
	}

	if pub.ManualEdits == nil {
		pub.ManualEdits = map[string]bool{}
	}
	pub.ManualEdits[field] = true
	pub.AppendHistory(types.EditEntry{
		Field:  field,
		Action: types.ActionManualEdit,
		Actor:  actor,
	})
	return e.store.Update(ctx, pub)
}

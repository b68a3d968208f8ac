// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pubsync
// reconciliation pipeline: the canonical Publication record, the
// normalized Candidate handed from source adapters to the merge
// engine, and the per-stage configuration structs.
package types

import "time"

// SourceType identifies which external catalog a record came from.
type SourceType string

const (
	SourceScopus   SourceType = "scopus"
	SourcePubMed   SourceType = "pubmed"
	SourceCrossRef SourceType = "crossref"
	SourceORCID    SourceType = "orcid"
	SourceManual   SourceType = "manual"
)

// Valid reports whether s is a known source tag.
func (s SourceType) Valid() bool {
	switch s {
	case SourceScopus, SourcePubMed, SourceCrossRef, SourceORCID, SourceManual:
		return true
	}
	return false
}

// Edit history actions recorded in Publication.EditHistory.
const (
	ActionAPISyncUpdate      = "api_sync_update"
	ActionManualEdit         = "manual_edit"
	ActionAuthorListReplaced = "author_list_replaced"
)

// Author is one entry in a publication's ordered author list. List
// position carries identity semantics: the enricher maps authoritative
// external IDs onto authors by index, so reordering the slice changes
// meaning.
type Author struct {
	// Name is the author's display name as delivered by the source,
	// in any of the common forms ("Last, First", "First Last",
	// "Surname INITIALS").
	Name string `json:"name" yaml:"name"`

	// Affiliation is the institutional affiliation, when known.
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`

	// ScopusID is the Scopus author identifier (auid).
	ScopusID string `json:"scopus_id,omitempty" yaml:"scopus_id,omitempty"`

	// ORCID is the author's ORCID iD without URL prefix.
	ORCID string `json:"orcid,omitempty" yaml:"orcid,omitempty"`
}

// Identifiers collects external identifiers for a publication beyond
// its DOI.
type Identifiers struct {
	PMID     string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID    string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	ScopusID string `json:"scopus_id,omitempty" yaml:"scopus_id,omitempty"`
}

// Merge fills empty fields of i from other, never overwriting a
// non-empty value.
func (i *Identifiers) Merge(other Identifiers) {
	if i.PMID == "" {
		i.PMID = other.PMID
	}
	if i.PMCID == "" {
		i.PMCID = other.PMCID
	}
	if i.ScopusID == "" {
		i.ScopusID = other.ScopusID
	}
}

// IsZero reports whether no identifier is set.
func (i Identifiers) IsZero() bool {
	return i.PMID == "" && i.PMCID == "" && i.ScopusID == ""
}

// EditEntry is one append-only audit record in a publication's edit
// history.
type EditEntry struct {
	// Timestamp is when the edit was applied, UTC.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Field names the publication field that changed. Empty for
	// whole-record actions such as author list replacement.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// Action is one of ActionAPISyncUpdate, ActionManualEdit, or
	// ActionAuthorListReplaced.
	Action string `json:"action" yaml:"action"`

	// Actor identifies who made the edit: a username for manual
	// edits, or the source tag for sync updates.
	Actor string `json:"actor,omitempty" yaml:"actor,omitempty"`

	// Reason carries extra context, e.g. "count_mismatch" on author
	// list replacement.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Publication is the canonical per-owner record the catalog stores.
// The pair (Owner, DOI) is unique after DOI canonicalization.
type Publication struct {
	// ID is the database row ID, zero before first insert.
	ID int64 `json:"id" yaml:"id"`

	// Owner is the catalog owner the record belongs to. Records of
	// different owners never interact during merge or deduplication.
	Owner int64 `json:"owner" yaml:"owner"`

	// DOI is the canonical (lowercased, prefix-stripped) DOI. May be
	// empty for records known only by a source-native identifier.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the publication title.
	Title string `json:"title" yaml:"title"`

	// Year is the publication year.
	Year int `json:"year" yaml:"year"`

	// Journal is the journal, conference, or publisher name.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Volume is the journal volume.
	Volume string `json:"volume,omitempty" yaml:"volume,omitempty"`

	// PageRange is the page range, e.g. "123-135" or "e12345".
	PageRange string `json:"page_range,omitempty" yaml:"page_range,omitempty"`

	// Authors is the ordered author list. Order is significant.
	Authors []Author `json:"authors" yaml:"authors"`

	// Identifiers holds external IDs (PMID, PMCID, Scopus ID).
	Identifiers Identifiers `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`

	// Metadata is open source-specific data keyed by source tag
	// (e.g. metadata["pubmed"]["abstract"]). Known keys are
	// documented per adapter in internal/sources.
	Metadata map[string]map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Links maps link types ("pdf", "code", "data") to URLs.
	Links map[string]string `json:"links,omitempty" yaml:"links,omitempty"`

	// ManualEdits marks fields a user has curated. A true entry
	// prevents sync from ever overwriting that field.
	ManualEdits map[string]bool `json:"manual_edits,omitempty" yaml:"manual_edits,omitempty"`

	// EditHistory is the append-only audit trail. It only grows.
	EditHistory []EditEntry `json:"edit_history,omitempty" yaml:"edit_history,omitempty"`

	// IsPreprint is true when the DOI prefix maps to a known
	// preprint server.
	IsPreprint bool `json:"is_preprint" yaml:"is_preprint"`

	// PreprintServer names the server ("bioRxiv", "arXiv", ...) when
	// IsPreprint is true. Derived deterministically from the DOI.
	PreprintServer string `json:"preprint_server,omitempty" yaml:"preprint_server,omitempty"`

	// IsIgnored soft-deletes the record. Sync never hard-deletes;
	// ignored records keep their provenance.
	IsIgnored bool `json:"is_ignored" yaml:"is_ignored"`

	// IgnoreReason explains why the record is ignored, e.g.
	// "published version exists: 10.1038/xyz".
	IgnoreReason string `json:"ignore_reason,omitempty" yaml:"ignore_reason,omitempty"`

	// Source is the tag of the source that first created the record.
	Source SourceType `json:"source" yaml:"source"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// LastAPISync is when a sync run last touched this record.
	LastAPISync time.Time `json:"last_api_sync,omitempty" yaml:"last_api_sync,omitempty"`

	// EnrichmentAttemptedAt records the last time an authoritative
	// author lookup came back empty, so the enricher does not retry
	// the same record every run.
	EnrichmentAttemptedAt time.Time `json:"enrichment_attempted_at,omitempty" yaml:"enrichment_attempted_at,omitempty"`
}

// HasManualEdit reports whether field is protected from sync updates.
func (p *Publication) HasManualEdit(field string) bool {
	return p.ManualEdits[field]
}

// AppendHistory adds an entry to the edit history with the current
// time when e.Timestamp is zero.
func (p *Publication) AppendHistory(e EditEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	p.EditHistory = append(p.EditHistory, e)
}

// AuthorsFullyLinked reports whether every author already carries a
// Scopus ID. The enricher skips such records unless forced.
func (p *Publication) AuthorsFullyLinked() bool {
	if len(p.Authors) == 0 {
		return false
	}
	for _, a := range p.Authors {
		if a.ScopusID == "" {
			return false
		}
	}
	return true
}

// Candidate is the normalizer's output: one raw source record reduced
// to the fields the merge engine understands. Empty fields mean "the
// source did not say", which non-null-wins merging never lets
// overwrite an existing value.
type Candidate struct {
	// DOI is already canonicalized.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	Year      int      `json:"year,omitempty" yaml:"year,omitempty"`
	Journal   string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume    string   `json:"volume,omitempty" yaml:"volume,omitempty"`
	PageRange string   `json:"page_range,omitempty" yaml:"page_range,omitempty"`
	Authors   []Author `json:"authors,omitempty" yaml:"authors,omitempty"`

	Identifiers Identifiers `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`

	// Source is the adapter that produced the record.
	Source SourceType `json:"source" yaml:"source"`

	// Raw preserves the source-specific remainder for the
	// publication's metadata map.
	Raw map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns one raw source record into a canonical
// merge candidate: DOI canonicalization, arXiv identifier rewriting,
// preprint classification, and source-specific field extraction.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/pubsync/pkg/types"
)

// ErrRecordRejected marks a raw record that cannot become a candidate
// (no title and no DOI). Callers skip and count rejected records; the
// normalizer never aborts a run.
var ErrRecordRejected = errors.New("record rejected")

// Field probe paths per source, in priority order. The first non-empty
// value wins. Paths are dot-separated keys into the raw record.
var (
	doiPaths = map[types.SourceType][]string{
		types.SourceScopus:   {"prism:doi", "doi"},
		types.SourcePubMed:   {"doi"},
		types.SourceCrossRef: {"DOI", "doi"},
		types.SourceORCID:    {"doi", "external-ids.doi"},
	}
	titlePaths = map[types.SourceType][]string{
		types.SourceScopus:   {"dc:title", "title"},
		types.SourcePubMed:   {"title"},
		types.SourceCrossRef: {"title", "container.title"},
		types.SourceORCID:    {"title.title.value", "title"},
	}
	journalPaths = map[types.SourceType][]string{
		types.SourceScopus:   {"prism:publicationName", "journal"},
		types.SourcePubMed:   {"journal", "journal_abbrev"},
		types.SourceCrossRef: {"container-title", "journal"},
		types.SourceORCID:    {"journal-title.value", "journal"},
	}
	volumePaths = map[types.SourceType][]string{
		types.SourceScopus:   {"prism:volume", "volume"},
		types.SourcePubMed:   {"volume", "journal_issue.volume"},
		types.SourceCrossRef: {"volume", "journal-issue.volume"},
		types.SourceORCID:    {"journal-volume", "volume"},
	}
	pagePaths = map[types.SourceType][]string{
		types.SourceScopus:   {"prism:pageRange", "pageRange", "pages"},
		types.SourcePubMed:   {"pages", "pagination.medline_pgn"},
		types.SourceCrossRef: {"page", "pages"},
		types.SourceORCID:    {"page-range", "pages"},
	}
	yearPaths = map[types.SourceType][]string{
		types.SourceScopus:   {"prism:coverDate", "year"},
		types.SourcePubMed:   {"year", "pub_date.year"},
		types.SourceCrossRef: {"published.year", "year"},
		types.SourceORCID:    {"publication-date.year.value", "year"},
	}
)

// Normalize converts one raw key-value record from the given source
// into a merge candidate. Records with neither a title nor a DOI
// return ErrRecordRejected (wrapped with the offending record's best
// identifier for the log line).
func Normalize(raw map[string]any, source types.SourceType) (*types.Candidate, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("unknown source %q", source)
	}

	doi := extractDOI(raw, source)
	title := strings.TrimSpace(probeString(raw, titlePaths[source]))

	if doi == "" && title == "" {
		return nil, fmt.Errorf("%w: no title and no DOI (source %s)", ErrRecordRejected, source)
	}

	cand := &types.Candidate{
		DOI:       doi,
		Title:     title,
		Year:      probeYear(raw, yearPaths[source]),
		Journal:   strings.TrimSpace(probeString(raw, journalPaths[source])),
		Volume:    strings.TrimSpace(probeString(raw, volumePaths[source])),
		PageRange: strings.TrimSpace(probeString(raw, pagePaths[source])),
		Authors:   extractAuthors(raw),
		Source:    source,
		Raw:       raw,
	}

	// PubMed esummary records carry the PMID under "uid".
	if v := probeString(raw, []string{"pmid", "PMID", "uid"}); v != "" {
		cand.Identifiers.PMID = v
	}
	if v := probeString(raw, []string{"pmcid", "pmc", "PMC"}); v != "" {
		cand.Identifiers.PMCID = v
	}
	if v := probeString(raw, []string{"scopus_id", "dc:identifier", "eid"}); v != "" {
		cand.Identifiers.ScopusID = strings.TrimPrefix(v, "SCOPUS_ID:")
	}

	return cand, nil
}

// extractDOI prefers an explicit DOI field and falls back to scanning
// the source's location identifier (PubMed "LID") for an arXiv
// identifier, which is rewritten to its 10.48550 DOI form.
func extractDOI(raw map[string]any, source types.SourceType) string {
	if v := probeString(raw, doiPaths[source]); v != "" {
		// An explicit DOI field can still hold an arXiv ID (ORCID
		// does this for preprints).
		if arxiv, ok := ArxivDOI(v); ok {
			return arxiv
		}
		return CanonicalDOI(v)
	}

	if source == types.SourcePubMed {
		if lid := probeString(raw, []string{"lid", "LID"}); lid != "" {
			if arxiv, ok := ArxivDOI(lid); ok {
				return arxiv
			}
			// Some LIDs are DOI-shaped without being tagged as such.
			if strings.HasPrefix(lid, "10.") {
				return CanonicalDOI(lid)
			}
		}
	}
	return ""
}

// extractAuthors reads the "authors" key, which adapters deliver as a
// list of either name strings or {name, affiliation, scopus_id, orcid}
// maps. Unknown shapes are skipped.
func extractAuthors(raw map[string]any) []types.Author {
	list, ok := raw["authors"].([]any)
	if !ok {
		return nil
	}
	var authors []types.Author
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			if name := strings.TrimSpace(v); name != "" {
				authors = append(authors, types.Author{Name: name})
			}
		case map[string]any:
			a := types.Author{
				Name:        strings.TrimSpace(stringValue(v["name"])),
				Affiliation: strings.TrimSpace(stringValue(v["affiliation"])),
				ScopusID:    strings.TrimSpace(stringValue(v["scopus_id"])),
				ORCID:       strings.TrimSpace(stringValue(v["orcid"])),
			}
			if a.Name != "" {
				authors = append(authors, a)
			}
		}
	}
	return authors
}

// probeString walks the candidate paths in order and returns the first
// non-empty string value.
func probeString(raw map[string]any, paths []string) string {
	for _, path := range paths {
		if v := stringValue(lookupPath(raw, path)); v != "" {
			return v
		}
	}
	return ""
}

// probeYear returns the first parseable year among the paths. Values
// like "2023-06-15" (Scopus cover dates) contribute their leading
// year component.
func probeYear(raw map[string]any, paths []string) int {
	for _, path := range paths {
		v := lookupPath(raw, path)
		switch y := v.(type) {
		case int:
			return y
		case int64:
			return int(y)
		case float64:
			return int(y)
		case string:
			s := strings.TrimSpace(y)
			if len(s) > 4 {
				s = s[:4]
			}
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// lookupPath resolves a dot-separated path through nested maps.
func lookupPath(raw map[string]any, path string) any {
	var cur any = raw
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}

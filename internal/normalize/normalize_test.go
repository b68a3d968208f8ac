// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"errors"
	"testing"

	"github.com/pdiddy/pubsync/pkg/types"
)

func TestNormalizeScopus(t *testing.T) {
	raw := map[string]any{
		"prism:doi":             "10.1016/J.NEURON.2011.11.001",
		"dc:title":              "Decoding the brain",
		"prism:publicationName": "Neuron",
		"prism:volume":          "72",
		"prism:pageRange":       "404-416",
		"prism:coverDate":       "2011-11-17",
		"dc:identifier":         "SCOPUS_ID:80455155555",
		"authors": []any{
			map[string]any{"name": "Poldrack R.A.", "scopus_id": "7004739390"},
			"Gorgolewski K.J.",
		},
	}

	cand, err := Normalize(raw, types.SourceScopus)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if cand.DOI != "10.1016/j.neuron.2011.11.001" {
		t.Errorf("DOI = %q, want canonical lowercase", cand.DOI)
	}
	if cand.Title != "Decoding the brain" {
		t.Errorf("Title = %q", cand.Title)
	}
	if cand.Year != 2011 {
		t.Errorf("Year = %d, want 2011", cand.Year)
	}
	if cand.Volume != "72" || cand.PageRange != "404-416" {
		t.Errorf("Volume/PageRange = %q/%q", cand.Volume, cand.PageRange)
	}
	if cand.Identifiers.ScopusID != "80455155555" {
		t.Errorf("ScopusID = %q, want prefix stripped", cand.Identifiers.ScopusID)
	}
	if len(cand.Authors) != 2 || cand.Authors[0].ScopusID != "7004739390" {
		t.Errorf("Authors = %+v", cand.Authors)
	}
}

func TestNormalizePubMedArxivLID(t *testing.T) {
	raw := map[string]any{
		"title": "Scaling laws for language models",
		"lid":   "arXiv:2306.02183v3",
		"pmid":  "37873001",
	}

	cand, err := Normalize(raw, types.SourcePubMed)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if cand.DOI != "10.48550/arxiv.2306.02183" {
		t.Errorf("DOI = %q, want arXiv LID rewritten to 10.48550/arxiv.2306.02183", cand.DOI)
	}
	if cand.Identifiers.PMID != "37873001" {
		t.Errorf("PMID = %q", cand.Identifiers.PMID)
	}
}

func TestNormalizePubMedDOIShapedLID(t *testing.T) {
	raw := map[string]any{
		"title": "A paper known only by its LID",
		"lid":   "10.1371/journal.pcbi.1011234",
	}
	cand, err := Normalize(raw, types.SourcePubMed)
	if err != nil {
		t.Fatal(err)
	}
	if cand.DOI != "10.1371/journal.pcbi.1011234" {
		t.Errorf("DOI = %q, want DOI-shaped LID accepted", cand.DOI)
	}
}

func TestNormalizeExplicitDOIWins(t *testing.T) {
	raw := map[string]any{
		"title": "Both fields present",
		"doi":   "10.1038/nrn3475",
		"lid":   "arXiv:2306.02183",
	}
	cand, err := Normalize(raw, types.SourcePubMed)
	if err != nil {
		t.Fatal(err)
	}
	if cand.DOI != "10.1038/nrn3475" {
		t.Errorf("DOI = %q, explicit field should win over LID", cand.DOI)
	}
}

func TestNormalizeRejectsEmptyRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"empty map", map[string]any{}},
		{"only journal", map[string]any{"journal": "Nature"}},
		{"blank title", map[string]any{"title": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, types.SourcePubMed)
			if !errors.Is(err, ErrRecordRejected) {
				t.Errorf("Normalize = %v, want ErrRecordRejected", err)
			}
		})
	}
}

func TestNormalizeTitleOnlyAccepted(t *testing.T) {
	cand, err := Normalize(map[string]any{"title": "No DOI yet"}, types.SourceCrossRef)
	if err != nil {
		t.Fatalf("title-only record should be accepted: %v", err)
	}
	if cand.DOI != "" || cand.Title != "No DOI yet" {
		t.Errorf("cand = %+v", cand)
	}
}

func TestNormalizeUnknownSource(t *testing.T) {
	if _, err := Normalize(map[string]any{"title": "x"}, types.SourceType("zotero")); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestNormalizeCrossRefPaths(t *testing.T) {
	raw := map[string]any{
		"DOI":             "10.1162/JOCN_A_00321",
		"title":           "Attention and memory",
		"container-title": "Journal of Cognitive Neuroscience",
		"published":       map[string]any{"year": 2013},
		"page":            "2003-2017",
		"volume":          "25",
	}
	cand, err := Normalize(raw, types.SourceCrossRef)
	if err != nil {
		t.Fatal(err)
	}
	if cand.DOI != "10.1162/jocn_a_00321" {
		t.Errorf("DOI = %q", cand.DOI)
	}
	if cand.Year != 2013 {
		t.Errorf("Year = %d, want nested published.year probed", cand.Year)
	}
	if cand.Journal != "Journal of Cognitive Neuroscience" {
		t.Errorf("Journal = %q", cand.Journal)
	}
	if cand.PageRange != "2003-2017" {
		t.Errorf("PageRange = %q", cand.PageRange)
	}
}

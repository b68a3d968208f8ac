// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubsync/pkg/types"
)

func TestNewKnownSources(t *testing.T) {
	cfg := types.SourcesConfig{}

	cr, err := New(types.SourceCrossRef, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.SourceCrossRef, cr.Name())

	pm, err := New(types.SourcePubMed, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.SourcePubMed, pm.Name())

	_, err = New(types.SourceType("citeseer"), cfg)
	assert.Error(t, err)
}

func TestCrossRefFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "orcid:0000-0001-6755-0259", q.Get("filter"))
		assert.Equal(t, "sync@example.org", q.Get("mailto"))

		fmt.Fprint(w, `{"message":{"items":[
			{"DOI":"10.1038/nn.3000","title":["Making big data open"]},
			{"DOI":"10.1371/journal.pone.0001","title":["Another work"]}
		]}}`)
	}))
	defer ts.Close()

	orig := crossrefAPIBase
	crossrefAPIBase = ts.URL
	defer func() { crossrefAPIBase = orig }()

	src := NewCrossRef(types.SourcesConfig{CrossRefMailto: "sync@example.org"})
	records, err := src.Fetch(context.Background(), Query{ORCID: "0000-0001-6755-0259"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "10.1038/nn.3000", records[0]["DOI"])
}

func TestCrossRefFetchRequiresORCID(t *testing.T) {
	src := NewCrossRef(types.SourcesConfig{})
	_, err := src.Fetch(context.Background(), Query{})
	assert.Error(t, err)
}

func TestCrossRefFetchServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	orig := crossrefAPIBase
	crossrefAPIBase = ts.URL
	defer func() { crossrefAPIBase = orig }()

	src := NewCrossRef(types.SourcesConfig{})
	_, err := src.Fetch(context.Background(), Query{ORCID: "0000-0001-6755-0259"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestPubMedFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "Poldrack RA[Author]", r.URL.Query().Get("term"))
		fmt.Fprint(w, `{"esearchresult":{"idlist":["22102645","33226120"]}}`)
	})
	mux.HandleFunc("/esummary", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "22102645,33226120", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"result":{
			"uids":["22102645","33226120"],
			"22102645":{"uid":"22102645","title":"First article"},
			"33226120":{"title":"Second article"}
		}}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	origSearch, origSummary := pubmedSearchBase, pubmedSummaryBase
	pubmedSearchBase = ts.URL + "/esearch"
	pubmedSummaryBase = ts.URL + "/esummary"
	defer func() {
		pubmedSearchBase = origSearch
		pubmedSummaryBase = origSummary
	}()

	src := NewPubMed(types.SourcesConfig{PubMedEmail: "sync@example.org"})
	records, err := src.Fetch(context.Background(), Query{Term: "Poldrack RA[Author]"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "First article", records[0]["title"])
	// The PMID is injected when esummary omits it.
	assert.Equal(t, "33226120", records[1]["uid"])
}

func TestPubMedFetchNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	}))
	defer ts.Close()

	origSearch := pubmedSearchBase
	pubmedSearchBase = ts.URL
	defer func() { pubmedSearchBase = origSearch }()

	src := NewPubMed(types.SourcesConfig{})
	records, err := src.Fetch(context.Background(), Query{Term: "Nobody ZZ[Author]"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPubMedFetchRequiresTerm(t *testing.T) {
	src := NewPubMed(types.SourcesConfig{})
	_, err := src.Fetch(context.Background(), Query{})
	assert.Error(t, err)
}

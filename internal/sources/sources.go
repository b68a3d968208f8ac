// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources fetches raw publication records from upstream
// bibliographic APIs. Each adapter returns records as generic JSON
// maps; field extraction and normalization happen downstream.
package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/pubsync/pkg/types"
)

// Query identifies the catalog owner on the upstream services.
type Query struct {
	// ORCID is the owner's ORCID iD, used by CrossRef filtering.
	ORCID string

	// Term is a free-text author query for PubMed esearch, for
	// example "Poldrack RA[Author]".
	Term string
}

// Source fetches the raw records one upstream API holds for an owner.
type Source interface {
	Name() types.SourceType
	Fetch(ctx context.Context, query Query) ([]map[string]any, error)
}

// New returns the adapter for a source name.
func New(name types.SourceType, cfg types.SourcesConfig) (Source, error) {
	switch name {
	case types.SourceCrossRef:
		return NewCrossRef(cfg), nil
	case types.SourcePubMed:
		return NewPubMed(cfg), nil
	default:
		return nil, fmt.Errorf("no adapter for source %q", name)
	}
}

func newClient(cfg types.SourcesConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

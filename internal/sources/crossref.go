// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/pubsync/internal/httputil"
	"github.com/pdiddy/pubsync/pkg/types"
)

// crossrefAPIBase is a var so tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

const crossrefPageSize = 200

// CrossRef fetches works filtered by the owner's ORCID iD.
type CrossRef struct {
	cfg    types.SourcesConfig
	client *http.Client
}

func NewCrossRef(cfg types.SourcesConfig) *CrossRef {
	return &CrossRef{cfg: cfg, client: newClient(cfg)}
}

func (c *CrossRef) Name() types.SourceType { return types.SourceCrossRef }

// Fetch returns the works CrossRef associates with the query ORCID.
// A single page is requested; owners with more works than one page
// holds need the rows parameter raised.
func (c *CrossRef) Fetch(ctx context.Context, query Query) ([]map[string]any, error) {
	if query.ORCID == "" {
		return nil, fmt.Errorf("crossref fetch requires an ORCID iD")
	}

	params := url.Values{}
	params.Set("filter", "orcid:"+query.ORCID)
	params.Set("rows", fmt.Sprint(crossrefPageSize))
	if c.cfg.CrossRefMailto != "" {
		params.Set("mailto", c.cfg.CrossRefMailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossrefAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("CrossRef API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CrossRef API returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Message struct {
			Items []map[string]any `json:"items"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing CrossRef response: %w", err)
	}
	return payload.Message.Items, nil
}

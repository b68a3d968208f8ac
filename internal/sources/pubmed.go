// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/pubsync/internal/httputil"
	"github.com/pdiddy/pubsync/pkg/types"
)

// NCBI E-utilities endpoints. Vars so tests can substitute httptest
// servers.
var (
	pubmedSearchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedSummaryBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

const (
	pubmedRetMax    = 1000
	pubmedBatchSize = 50
)

// PubMed fetches article summaries for an author term via the NCBI
// E-utilities esearch/esummary pair.
type PubMed struct {
	cfg    types.SourcesConfig
	client *http.Client
}

func NewPubMed(cfg types.SourcesConfig) *PubMed {
	return &PubMed{cfg: cfg, client: newClient(cfg)}
}

func (p *PubMed) Name() types.SourceType { return types.SourcePubMed }

// Fetch runs esearch for the query term, then esummary over the
// returned PMIDs in batches. The PMID is injected into each record
// under "uid" when the API omits it.
func (p *PubMed) Fetch(ctx context.Context, query Query) ([]map[string]any, error) {
	if query.Term == "" {
		return nil, fmt.Errorf("pubmed fetch requires a search term")
	}

	ids, err := p.search(ctx, query.Term)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var records []map[string]any
	for start := 0; start < len(ids); start += pubmedBatchSize {
		end := start + pubmedBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		if start > 0 && p.cfg.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.RequestDelay):
			}
		}

		batch, err := p.summaries(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	return records, nil
}

func (p *PubMed) search(ctx context.Context, term string) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", fmt.Sprint(pubmedRetMax))
	params.Set("retmode", "json")
	if p.cfg.PubMedEmail != "" {
		params.Set("email", p.cfg.PubMedEmail)
	}

	var payload struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := p.getJSON(ctx, pubmedSearchBase, params, &payload); err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	return payload.ESearchResult.IDList, nil
}

func (p *PubMed) summaries(ctx context.Context, ids []string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")
	if p.cfg.PubMedEmail != "" {
		params.Set("email", p.cfg.PubMedEmail)
	}

	var payload struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := p.getJSON(ctx, pubmedSummaryBase, params, &payload); err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	// Iterate the requested IDs rather than the result map: "uids" is
	// a bookkeeping key, and map order is not the API's order.
	var records []map[string]any
	for _, id := range ids {
		raw, ok := payload.Result[id]
		if !ok {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		if _, ok := record["uid"]; !ok {
			record["uid"] = id
		}
		records = append(records, record)
	}
	return records, nil
}

func (p *PubMed) getJSON(ctx context.Context, base string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, p.client, req, p.cfg.MaxRetries)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, base)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by source adapters.
type HTTPConfig struct {
	// Timeout is the per-call HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pubsync/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CatalogConfig holds settings for the publication store.
type CatalogConfig struct {
	// DataDir is the base directory for catalog data. The SQLite
	// database lives at DataDir/pubsync.db.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// DedupConfig holds thresholds for the duplicate resolver. The
// defaults were tuned on one corpus; treat them as starting points,
// not validated constants.
type DedupConfig struct {
	// TitleThreshold is the minimum normalized title similarity for a
	// preprint/published match (default 0.85).
	TitleThreshold float64 `json:"title_threshold" yaml:"title_threshold"`

	// AuthorThreshold is the minimum author-set overlap ratio for a
	// preprint/published match (default 0.6).
	AuthorThreshold float64 `json:"author_threshold" yaml:"author_threshold"`
}

// Defaults fills zero thresholds with the standard values.
func (c DedupConfig) Defaults() DedupConfig {
	if c.TitleThreshold <= 0 {
		c.TitleThreshold = 0.85
	}
	if c.AuthorThreshold <= 0 {
		c.AuthorThreshold = 0.6
	}
	return c
}

// SourcesConfig holds per-source adapter settings.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline"`

	// ScopusAPIKey authenticates Scopus requests.
	ScopusAPIKey string `json:"scopus_api_key,omitempty" yaml:"scopus_api_key,omitempty"`

	// PubMedEmail is sent to NCBI as required by their usage policy.
	PubMedEmail string `json:"pubmed_email,omitempty" yaml:"pubmed_email,omitempty"`

	// CrossRefMailto is appended to CrossRef requests to join the
	// polite pool.
	CrossRefMailto string `json:"crossref_mailto,omitempty" yaml:"crossref_mailto,omitempty"`

	// ORCIDToken authenticates ORCID API requests.
	ORCIDToken string `json:"orcid_token,omitempty" yaml:"orcid_token,omitempty"`

	// RequestDelay is the pause between consecutive source API calls
	// (default 1s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`

	// MaxRetries is the retry budget for rate-limited calls.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SyncConfig groups everything a sync run needs.
type SyncConfig struct {
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
	Sources SourcesConfig `json:"sources" yaml:"sources"`
	Dedup   DedupConfig   `json:"dedup" yaml:"dedup"`

	// ProgressRetention is how long a finished run's progress entry
	// stays readable before it is retired (default 10m). Readers must
	// treat a missing entry as "run finished".
	ProgressRetention time.Duration `json:"progress_retention" yaml:"progress_retention"`
}

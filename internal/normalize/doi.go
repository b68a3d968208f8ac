// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"regexp"
	"strings"
)

// DOI prefix table for known preprint servers. Unmatched prefixes are
// not preprints.
var preprintServers = map[string]string{
	"10.1101":  "bioRxiv",
	"10.48550": "arXiv",
	"10.31234": "PsyArXiv",
	"10.21203": "Research Square",
}

var (
	// arxivIDPattern matches a bare arXiv identifier such as
	// "2306.02183" or "2306.02183v3", with an optional "arXiv:" prefix.
	arxivIDPattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)

	// arxivDOIPattern matches the DOI form "10.48550/arxiv.2306.02183",
	// optionally versioned.
	arxivDOIPattern = regexp.MustCompile(`^10\.48550/arxiv\.(\d{4}\.\d{4,5})(?:v\d+)?$`)

	// versionSuffixPattern matches versioned DOIs like
	// "10.21203/rs.3.rs-264855/v2".
	versionSuffixPattern = regexp.MustCompile(`^(.*)/v(\d+)$`)

	repeatedSlashes = regexp.MustCompile(`/{2,}`)
)

// CanonicalDOI lowercases and trims a DOI, strips URL and scheme
// prefixes, and collapses repeated slashes. It returns "" for an
// empty input.
func CanonicalDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, prefix := range []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi:",
	} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return repeatedSlashes.ReplaceAllString(doi, "/")
}

// ArxivDOI converts an arXiv identifier in any accepted form (bare
// "2306.02183", "arXiv:2306.02183v3", or the DOI form) to the
// canonical DOI "10.48550/arxiv.<id>". Version suffixes are dropped so
// revisions of the same preprint collapse to one DOI. The second
// return value is false when the input is not an arXiv identifier.
func ArxivDOI(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if m := arxivIDPattern.FindStringSubmatch(id); m != nil {
		return "10.48550/arxiv." + m[1], true
	}
	if m := arxivDOIPattern.FindStringSubmatch(strings.ToLower(id)); m != nil {
		return "10.48550/arxiv." + m[1], true
	}
	return "", false
}

// PreprintServer returns the preprint server name for a canonical DOI
// and whether the DOI belongs to one.
func PreprintServer(doi string) (string, bool) {
	slash := strings.IndexByte(doi, '/')
	if slash < 0 {
		return "", false
	}
	name, ok := preprintServers[doi[:slash]]
	return name, ok
}

// SplitVersion splits a canonical DOI into its base and version
// number. DOIs without a "/vN" suffix return the input and 0.
func SplitVersion(doi string) (base string, version int) {
	m := versionSuffixPattern.FindStringSubmatch(doi)
	if m == nil {
		return doi, 0
	}
	n := 0
	for _, c := range m[2] {
		n = n*10 + int(c-'0')
	}
	return m[1], n
}

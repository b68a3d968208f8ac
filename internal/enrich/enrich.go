// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich reconciles a publication's author list against an
// authoritative external author list. Matching is positional: once
// counts agree, list index is the only signal the sources give us, so
// external IDs are copied by position with a name sanity check that
// warns but never blocks.
package enrich

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/pubsync/pkg/types"
)

// Status classifies what an enrichment attempt did.
type Status int

const (
	StatusSkipped Status = iota
	StatusEnriched
	StatusReplaced
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusEnriched:
		return "enriched"
	case StatusReplaced:
		return "replaced"
	case StatusNotFound:
		return "not_found"
	default:
		return "skipped"
	}
}

// Result reports an enrichment outcome.
type Result struct {
	Status Status

	// Linked counts authors that received an external ID.
	Linked int

	// Warnings lists positions where the positional name check
	// scored low; the assignment was still applied.
	Warnings []string
}

// Enrich applies the authoritative author list to pub in place and
// reports what changed. The caller persists pub afterwards.
//
// Count mismatch replaces the stored list wholesale (no attempt to
// preserve per-author annotations) and records the replacement in the
// edit history. An empty authoritative list stamps the attempt so the
// record is not retried every run. Records whose authors all carry
// external IDs are skipped unless force is set.
func Enrich(pub *types.Publication, authoritative []types.Author, force bool, w io.Writer) Result {
	if len(authoritative) == 0 {
		pub.EnrichmentAttemptedAt = time.Now().UTC()
		return Result{Status: StatusNotFound}
	}

	if pub.AuthorsFullyLinked() && !force {
		return Result{Status: StatusSkipped}
	}

	if stored := len(pub.Authors); stored != len(authoritative) {
		pub.Authors = append([]types.Author(nil), authoritative...)
		pub.AppendHistory(types.EditEntry{
			Field:  "authors",
			Action: types.ActionAuthorListReplaced,
			Reason: "count_mismatch",
		})
		fmt.Fprintf(w, "author count mismatch (%d stored, %d authoritative): replaced list for %q\n",
			stored, len(authoritative), pub.DOI)
		return Result{Status: StatusReplaced, Linked: len(authoritative)}
	}

	result := Result{Status: StatusEnriched}
	for i := range pub.Authors {
		auth := authoritative[i]

		if score := nameAgreement(pub.Authors[i].Name, auth.Name); score < 0.5 {
			warning := fmt.Sprintf("position %d: %q vs %q score %.2f",
				i+1, pub.Authors[i].Name, auth.Name, score)
			result.Warnings = append(result.Warnings, warning)
			fmt.Fprintf(w, "warning: weak positional name match, %s (assignment kept)\n", warning)
		}

		if auth.ScopusID != "" && (force || pub.Authors[i].ScopusID == "") {
			if pub.Authors[i].ScopusID != auth.ScopusID {
				pub.Authors[i].ScopusID = auth.ScopusID
				result.Linked++
			}
		}
		if auth.ORCID != "" && (force || pub.Authors[i].ORCID == "") {
			pub.Authors[i].ORCID = auth.ORCID
		}
		if auth.Affiliation != "" && pub.Authors[i].Affiliation == "" {
			pub.Authors[i].Affiliation = auth.Affiliation
		}
	}

	if result.Linked == 0 && len(result.Warnings) == 0 {
		result.Status = StatusSkipped
	}
	return result
}

// nameAgreement scores how well two renderings of a name agree,
// order-invariant and insensitive to punctuation, so "J He" and
// "He J." score 1.0. Full given names degrade gracefully against
// initials: each token matches if the other side has the same token
// or its initial.
func nameAgreement(a, b string) float64 {
	ta, tb := nameTokens(a), nameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	matched := 0
	used := make([]bool, len(tb))
	for _, tok := range ta {
		for j, other := range tb {
			if used[j] {
				continue
			}
			if tokensAgree(tok, other) {
				used[j] = true
				matched++
				break
			}
		}
	}

	larger := len(ta)
	if len(tb) > larger {
		larger = len(tb)
	}
	return float64(matched) / float64(larger)
}

// tokensAgree reports whether two name tokens refer to the same name
// part: equal, or one is the initial of the other.
func tokensAgree(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) == 1 {
		return strings.HasPrefix(b, a)
	}
	if len(b) == 1 {
		return strings.HasPrefix(a, b)
	}
	return false
}

// nameTokens lowercases a name, strips periods and commas, splits
// runs of initials ("RA" -> "r", "a"), and returns sorted tokens.
func nameTokens(name string) []string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if isUpperRun(tok) && len(tok) <= 3 {
			for _, r := range tok {
				tokens = append(tokens, string(unicode.ToLower(r)))
			}
			continue
		}
		tokens = append(tokens, strings.ToLower(tok))
	}
	sort.Strings(tokens)
	return tokens
}

func isUpperRun(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return len(s) > 0
}

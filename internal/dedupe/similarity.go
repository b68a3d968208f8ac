// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedupe

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/pubsync/pkg/types"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Short function words removed before comparing titles, so that
// "The role of attention" and "Role of attention" compare equal.
var titleStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"as": true, "is": true, "are": true, "was": true, "were": true,
}

// titleTokens case-folds a title, strips HTML markup and punctuation,
// and returns its significant words as a set.
func titleTokens(title string) map[string]bool {
	title = htmlTagPattern.ReplaceAllString(title, " ")

	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	tokens := make(map[string]bool)
	for _, word := range strings.Fields(b.String()) {
		if !titleStopwords[word] && len(word) > 2 {
			tokens[word] = true
		}
	}
	return tokens
}

// TitleSimilarity returns the Jaccard similarity of two normalized
// titles, in [0, 1]. Either title empty yields 0.
func TitleSimilarity(a, b string) float64 {
	ta, tb := titleTokens(a), titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for word := range ta {
		if tb[word] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

// Honorifics and suffixes dropped during author name normalization.
var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "phd": true, "md": true, "dr": true,
	"ii": true, "iii": true, "iv": true,
}

// AuthorKey reduces an author name to a "surname + sorted initials"
// comparison key that is stable across the common input forms:
// "Poldrack, Russell A.", "Russell A. Poldrack", and "Poldrack RA"
// all map to the same key.
func AuthorKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var surname string
	var given []string

	if comma := strings.Index(name, ","); comma >= 0 {
		// "Last, First M." form.
		surname = name[:comma]
		given = splitNameTokens(name[comma+1:])
	} else {
		tokens := splitNameTokens(name)
		if len(tokens) == 0 {
			return ""
		}
		if len(tokens) == 1 {
			return strings.ToLower(tokens[0])
		}
		last := tokens[len(tokens)-1]
		if isInitialsToken(last) {
			// "Surname INITIALS" form (Scopus/PubMed indexed names).
			surname = strings.Join(tokens[:len(tokens)-1], " ")
			given = []string{last}
		} else {
			// "First M. Last" form.
			surname = last
			given = tokens[:len(tokens)-1]
		}
	}

	initials := initialsOf(given)
	sort.Strings(initials)

	surname = strings.ToLower(strings.TrimSpace(surname))
	if len(initials) == 0 {
		return surname
	}
	return surname + " " + strings.Join(initials, "")
}

// splitNameTokens splits on whitespace after removing periods and
// other punctuation, dropping honorific suffixes.
func splitNameTokens(s string) []string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if nameSuffixes[strings.ToLower(tok)] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// isInitialsToken reports whether tok looks like a run of initials
// ("RA", "LJ"), i.e. short and fully uppercase.
func isInitialsToken(tok string) bool {
	if len(tok) > 3 {
		return false
	}
	for _, r := range tok {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// initialsOf extracts one lowercase initial per given-name token. A
// run of initials like "RA" contributes each letter.
func initialsOf(given []string) []string {
	var initials []string
	for _, tok := range given {
		if isInitialsToken(tok) {
			for _, r := range tok {
				initials = append(initials, string(unicode.ToLower(r)))
			}
			continue
		}
		runes := []rune(tok)
		if len(runes) > 0 {
			initials = append(initials, string(unicode.ToLower(runes[0])))
		}
	}
	return initials
}

// AuthorOverlap returns the overlap coefficient of the two author
// lists' normalized name-key sets: shared keys divided by the size of
// the smaller set. Empty lists yield 0.
func AuthorOverlap(a, b []types.Author) float64 {
	ka, kb := keySet(a), keySet(b)
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}
	shared := 0
	for key := range ka {
		if kb[key] {
			shared++
		}
	}
	smaller := len(ka)
	if len(kb) < smaller {
		smaller = len(kb)
	}
	return float64(shared) / float64(smaller)
}

func keySet(authors []types.Author) map[string]bool {
	keys := make(map[string]bool, len(authors))
	for _, a := range authors {
		if key := AuthorKey(a.Name); key != "" {
			keys[key] = true
		}
	}
	return keys
}

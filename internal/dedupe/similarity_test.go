// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedupe

import (
	"testing"

	"github.com/pdiddy/pubsync/pkg/types"
)

func TestAuthorKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"last comma first", "Poldrack, Russell A.", "poldrack ar"},
		{"first last", "Russell A. Poldrack", "poldrack ar"},
		{"indexed form", "Poldrack RA", "poldrack ar"},
		{"single initial", "J He", "he j"},
		{"indexed single initial", "He J.", "he j"},
		{"plain first last", "Jane Smith", "smith j"},
		{"with suffix", "John Doe Jr.", "doe j"},
		{"surname only", "Poldrack", "poldrack"},
		{"empty", "", ""},
		{"hyphenated surname", "Mary Garcia-Lopez", "garcia-lopez m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthorKey(tt.input); got != tt.want {
				t.Errorf("AuthorKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAuthorKeyFormsAgree(t *testing.T) {
	// The same person in every form a source delivers.
	forms := []string{
		"Chang, Luke J.",
		"Luke J. Chang",
		"Chang LJ",
		"Chang L.J.",
	}
	want := AuthorKey(forms[0])
	for _, form := range forms[1:] {
		if got := AuthorKey(form); got != want {
			t.Errorf("AuthorKey(%q) = %q, want %q", form, got, want)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		atLeast float64
		below   float64
	}{
		{"identical", "Attention and Memory", "Attention and Memory", 1.0, 1.1},
		{"case and punctuation", "Attention, and memory!", "attention AND Memory", 1.0, 1.1},
		{"html markup", "The role of <i>BDNF</i> in learning", "The role of BDNF in learning", 1.0, 1.1},
		{"leading article", "The neural basis of decision making", "Neural basis of decision making", 1.0, 1.1},
		{"unrelated", "Quantum chromodynamics on the lattice", "Childhood development of reading skills", 0.0, 0.01},
		{"partial overlap", "Decoding brain states from fMRI", "Decoding mental states from brain imaging", 0.2, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TitleSimilarity(tt.a, tt.b)
			if got < tt.atLeast || got >= tt.below {
				t.Errorf("TitleSimilarity = %.3f, want in [%.2f, %.2f)", got, tt.atLeast, tt.below)
			}
		})
	}
}

func TestTitleSimilarityEmpty(t *testing.T) {
	if got := TitleSimilarity("", "Anything"); got != 0 {
		t.Errorf("TitleSimilarity with empty title = %.3f, want 0", got)
	}
}

func authorsNamed(names ...string) []types.Author {
	authors := make([]types.Author, len(names))
	for i, name := range names {
		authors[i] = types.Author{Name: name}
	}
	return authors
}

func TestAuthorOverlap(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []types.Author
		atLeast float64
		below   float64
	}{
		{
			"identical across forms",
			authorsNamed("Chang LJ", "Poldrack RA"),
			authorsNamed("Luke J. Chang", "Russell A. Poldrack"),
			1.0, 1.1,
		},
		{
			"three of five shared",
			authorsNamed("Smith J", "Doe A", "Chang LJ", "Poldrack RA", "He J"),
			authorsNamed("Smith J", "Doe A", "Chang LJ", "Keller B", "Novak P"),
			0.59, 0.61,
		},
		{
			"disjoint",
			authorsNamed("Smith J"),
			authorsNamed("Doe A"),
			0.0, 0.01,
		},
		{
			"empty list",
			nil,
			authorsNamed("Smith J"),
			0.0, 0.01,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AuthorOverlap(tt.a, tt.b)
			if got < tt.atLeast || got >= tt.below {
				t.Errorf("AuthorOverlap = %.3f, want in [%.2f, %.2f)", got, tt.atLeast, tt.below)
			}
		})
	}
}

// Package similarity decides whether a candidate post is too close to
// something the persona already said. It is a lexical heuristic: near
// duplicates can slip through and distinct posts can collide.
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Normalize lower-cases s, drops apostrophes, turns punctuation and symbols
// into spaces and collapses runs of whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			// don't -> dont
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func contentTerms(toks []string) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if !stopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

// features counts unigrams and adjacent bigrams.
func features(terms []string) map[string]float64 {
	f := make(map[string]float64, len(terms)*2)
	for i, t := range terms {
		f[t]++
		if i > 0 {
			f[terms[i-1]+" "+t]++
		}
	}
	return f
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, va := range a {
		na += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func jaccard(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// fold lower-cases s and collapses whitespace, keeping punctuation and emoji.
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Score returns the lexical similarity of a and b in [0, 1]. Texts that are
// equal after case and whitespace folding, or after normalization, score 1.
// Otherwise a text with no words scores 0 against anything.
func Score(a, b string) float64 {
	if fa := fold(a); fa != "" && fa == fold(b) {
		return 1
	}
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ta, tb := tokens(na), tokens(nb)
	ca, cb := contentTerms(ta), contentTerms(tb)
	if len(ca) == 0 || len(cb) == 0 {
		return jaccard(ta, tb)
	}
	return cosine(features(ca), features(cb))
}

// Match is the closest entry of a window.
type Match struct {
	Score float64
	Index int // -1 when the window is empty
	Text  string
}

type Filter struct {
	Threshold float64
}

func NewFilter(threshold float64) *Filter {
	return &Filter{Threshold: threshold}
}

// MostSimilar scores candidate against every entry of window and returns the
// best one. Ties keep the earliest entry.
func (f *Filter) MostSimilar(candidate string, window []string) Match {
	best := Match{Index: -1}
	for i, prev := range window {
		s := Score(candidate, prev)
		if best.Index == -1 || s > best.Score {
			best = Match{Score: s, Index: i, Text: prev}
		}
	}
	return best
}

// Rejects reports whether m is at or above the threshold.
func (f *Filter) Rejects(m Match) bool {
	return m.Index >= 0 && m.Score >= f.Threshold
}

// IsDuplicate reports whether any entry of window scores at or above the
// threshold.
func (f *Filter) IsDuplicate(candidate string, window []string) bool {
	return f.Rejects(f.MostSimilar(candidate, window))
}

// Package cache provides a semantic response cache keyed on
// normalized query text, with similarity matching so near-duplicate
// queries reuse prior deliberation results.
package cache

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Short queries lean on exact word overlap; longer ones balance
// overlap against term-frequency cosine.
const (
	shortQueryTokens  = 5
	shortJaccardBlend = 0.7
	longJaccardBlend  = 0.5
)

// stopWords are filtered out before similarity comparison.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a an the is are was were be been being have has had do does did " +
			"will would could should may might must can to of in for on with " +
			"at by from as into through during before after above below " +
			"between under again further then once here there when where why " +
			"how all each few more most other some such no nor not only own " +
			"same so than too very s t just don now i me my you your he she " +
			"it we they what which who whom this that these those am but if " +
			"or because until while about against and any both down up out " +
			"off over its") {
		stopWords[w] = struct{}{}
	}
}

var wordBoundary = regexp.MustCompile(`\b\w+\b`)

var foldCaser = cases.Fold()

// Tokenize splits text into meaningful lowercase terms, dropping stop
// words and single characters.
func Tokenize(text string) map[string]struct{} {
	words := wordBoundary.FindAllString(foldCaser.String(text), -1)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) <= 1 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// Similarity scores how close two queries are, in [0,1]. It blends
// Jaccard word overlap with a term-frequency cosine, weighting
// overlap more heavily for short queries.
func Similarity(query1, query2 string) float64 {
	words1 := Tokenize(query1)
	words2 := Tokenize(query2)
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}

	intersection := 0
	for w := range words1 {
		if _, ok := words2[w]; ok {
			intersection++
		}
	}
	union := len(words1) + len(words2) - intersection
	jaccard := float64(intersection) / float64(union)

	vocab := make(map[string]struct{}, union)
	for w := range words1 {
		vocab[w] = struct{}{}
	}
	for w := range words2 {
		vocab[w] = struct{}{}
	}

	tf1 := termFrequencies(vocab, query1)
	tf2 := termFrequencies(vocab, query2)

	var dot, norm1, norm2 float64
	for w := range vocab {
		dot += tf1[w] * tf2[w]
		norm1 += tf1[w] * tf1[w]
		norm2 += tf2[w] * tf2[w]
	}
	cosine := 0.0
	if norm1 > 0 && norm2 > 0 {
		cosine = dot / (math.Sqrt(norm1) * math.Sqrt(norm2))
	}

	avgLen := float64(len(words1)+len(words2)) / 2
	if avgLen <= shortQueryTokens {
		return shortJaccardBlend*jaccard + (1-shortJaccardBlend)*cosine
	}
	return longJaccardBlend*jaccard + (1-longJaccardBlend)*cosine
}

func termFrequencies(vocab map[string]struct{}, text string) map[string]float64 {
	all := wordBoundary.FindAllString(foldCaser.String(text), -1)
	counts := make(map[string]int, len(all))
	for _, w := range all {
		counts[w]++
	}
	total := max(len(all), 1)

	tf := make(map[string]float64, len(vocab))
	for w := range vocab {
		tf[w] = float64(counts[w]) / float64(total)
	}
	return tf
}

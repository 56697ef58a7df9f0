package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/poiesic/sift/core"
)

// Weights added per prefix.
const (
	ExactWeight   = 10
	PartialWeight = 1
)

// normalizePrefixes lowercases prefixes and drops empty ones.
// Duplicates are kept; each occurrence contributes its own weight.
func normalizePrefixes(prefixes []string) []string {
	normalized := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" {
			normalized = append(normalized, prefix)
		}
	}
	return normalized
}

// scoreBlob weighs a word blob against every prefix. A whole-word hit and a
// raw substring hit are counted independently, so a whole word scores
// ExactWeight + PartialWeight.
func scoreBlob(blob string, prefixes []string) int {
	weight := 0
	for _, prefix := range prefixes {
		if strings.Contains(blob, " "+prefix+" ") {
			weight += ExactWeight
		}
		if strings.Contains(blob, prefix) {
			weight += PartialWeight
		}
	}
	return weight
}

type scoredID struct {
	id     core.ID
	weight int
}

// rank orders scored IDs by weight descending, then ID ascending, and keeps
// at most limit of them. Zero weights are dropped.
func rank(scores map[core.ID]int, limit int) []scoredID {
	ranked := make([]scoredID, 0, len(scores))
	for id, weight := range scores {
		if weight > 0 {
			ranked = append(ranked, scoredID{id: id, weight: weight})
		}
	}
	slices.SortFunc(ranked, func(a, b scoredID) int {
		if c := cmp.Compare(b.weight, a.weight); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

package chunker

import (
	"sort"
	"strings"

	"github.com/agentweb/agentweb/pkg/types"
)

// FindRelevant ranks chunks against a free-text query and returns up to limit
// chunks with their Relevance field populated. Relevance is the chunk's base
// score plus two points per query-token occurrence in the chunk text. Input
// chunks are not modified.
func FindRelevant(chunks []types.Chunk, query string, limit int) []types.Chunk {
	tokens := queryTokens(query)

	ranked := make([]types.Chunk, len(chunks))
	copy(ranked, chunks)

	for i := range ranked {
		lower := strings.ToLower(ranked[i].Text)
		relevance := ranked[i].Score
		for _, tok := range tokens {
			relevance += 2 * strings.Count(lower, tok)
		}
		r := relevance
		ranked[i].Relevance = &r
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Relevance > *ranked[j].Relevance
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// queryTokens lowercases the query and drops tokens of two characters or
// fewer, which filters particles like "a" and "of".
func queryTokens(query string) []string {
	var tokens []string
	for _, f := range strings.Fields(query) {
		if len(f) > 2 {
			tokens = append(tokens, strings.ToLower(f))
		}
	}
	return tokens
}

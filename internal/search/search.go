package search

import (
	"sort"
	"strings"

	"github.com/jcdickinson/rbxdocs/internal/records"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Hit is a scored record.
type Hit struct {
	Record *records.Record
	Score  int
}

// Search scores every record in ix against query and returns the hits at or
// above the threshold, best first, at most opts.Limit of them. An empty or
// blank query returns no hits. ix must not be nil.
func Search(ix *Index, query string, opts Options) []Hit {
	if ix == nil {
		panic("search: nil index")
	}
	opts = opts.normalized()

	if strings.TrimSpace(query) == "" {
		return []Hit{}
	}
	q := cases.Lower(language.Und).String(query)

	type scored struct {
		hit    Hit
		tieLen int
	}
	var results []scored

	// Many records share a qualifier; score each distinct one once per query.
	qualifierScores := make(map[string]int)
	scoreQualifier := func(qualifier string) int {
		if s, ok := qualifierScores[qualifier]; ok {
			return s
		}
		s := WeightedRatio(q, qualifier)
		qualifierScores[qualifier] = s
		return s
	}

	visit := func(entries []entry) {
		for i := range entries {
			e := &entries[i]
			score := WeightedRatio(q, e.name)
			if e.qualifier != "" {
				score = Combine(score, scoreQualifier(e.qualifier))
			}
			if score < opts.Threshold {
				continue
			}
			results = append(results, scored{hit: Hit{Record: e.record, Score: score}, tieLen: e.tieLen})
		}
	}

	visit(ix.active)
	if opts.IncludeDeprecated {
		visit(ix.deprecated)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].hit.Score != results[j].hit.Score {
			return results[i].hit.Score > results[j].hit.Score
		}
		return results[i].tieLen < results[j].tieLen
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = r.hit
	}
	return hits
}

// Combine merges a name score with a qualifier score. A near-exact match on
// either side wins outright; otherwise the two are averaged and truncated.
func Combine(nameScore, qualifierScore int) int {
	if nameScore >= NearExact || qualifierScore >= NearExact {
		return max(nameScore, qualifierScore)
	}
	return int(float64(nameScore)*0.5 + float64(qualifierScore)*0.5)
}

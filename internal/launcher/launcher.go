// Package launcher turns search hits into launcher result entries.
package launcher

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jcdickinson/rbxdocs/internal/markdown"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/jcdickinson/rbxdocs/internal/search"
)

const (
	subtitlePrefix = "↪ "
	tagSeparator   = " ⋮ "

	summaryRunes = 160
)

// Subtitle renders the tag and score line shown under a result title, e.g.
// "↪ [Deprecated] ⋮ [ReadOnly] ⋮ (Score: 87%)".
func Subtitle(tags []string, score int) string {
	var b strings.Builder
	b.WriteString(subtitlePrefix)

	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	for _, tag := range sorted {
		fmt.Fprintf(&b, "[%s]%s", tag, tagSeparator)
	}
	fmt.Fprintf(&b, "(Score: %d%%)", score)
	return b.String()
}

// Results converts hits, best first, into launcher entries. Rank counts down
// from maxResults so launchers that sort by their own score keep the order.
func Results(hits []search.Hit, maxResults int) []rpc.Result {
	if maxResults <= 0 {
		maxResults = search.DefaultLimit
	}
	out := make([]rpc.Result, 0, len(hits))
	for i, h := range hits {
		r := h.Record
		out = append(out, rpc.Result{
			Title:    r.FullName(),
			Subtitle: Subtitle(r.Tags, h.Score),
			URL:      r.URL,
			IconPath: r.Icon,
			CopyText: r.URL,
			Score:    h.Score,
			Rank:     maxResults - i,
			Kind:     r.Kind.String(),
			Tags:     r.Tags,
			Summary:  markdown.Snippet(r.Description, summaryRunes),
		})
	}
	return out
}

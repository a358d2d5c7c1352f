package search

import (
	"unicode/utf8"

	"github.com/jcdickinson/rbxdocs/internal/records"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type entry struct {
	record    *records.Record
	name      string // lower-cased
	qualifier string // lower-cased, empty when absent
	tieLen    int
}

// Index is a read-only, search-ready view of a record set. It is safe for
// concurrent use.
type Index struct {
	active     []entry
	deprecated []entry
}

// NewIndex lower-cases names and precomputes tie-break lengths for set.
func NewIndex(set *records.Set) *Index {
	lower := cases.Lower(language.Und)
	build := func(recs []records.Record) []entry {
		out := make([]entry, len(recs))
		for i := range recs {
			r := &recs[i]
			out[i] = entry{
				record:    r,
				name:      lower.String(r.Name),
				qualifier: lower.String(r.Qualifier),
				tieLen:    tieLength(r),
			}
		}
		return out
	}
	return &Index{active: build(set.Active), deprecated: build(set.Deprecated)}
}

// tieLength orders equally scored results: shorter names first, with
// top-level enum records measured by their bare name so they sort ahead of
// their own items.
func tieLength(r *records.Record) int {
	if r.Qualifier == records.EnumQualifier {
		return utf8.RuneCountInString(r.Name)
	}
	return utf8.RuneCountInString(r.FullName())
}

// Len is the number of indexed records, deprecated ones included.
func (ix *Index) Len() int {
	return len(ix.active) + len(ix.deprecated)
}

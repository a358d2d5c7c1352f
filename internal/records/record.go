package records

import (
	"time"

	"github.com/jcdickinson/rbxdocs/internal/api"
)

// DeprecatedTag routes a record into the deprecated collection.
const DeprecatedTag = "Deprecated"

// EnumQualifier is the qualifier of top-level enum records.
const EnumQualifier = "Enum"

// Record is one searchable documentation entry. Records are built once per
// generation and never modified afterwards.
type Record struct {
	Name        string
	Qualifier   string // owning class or enum, "Enum" for enums, empty otherwise
	Kind        Kind
	DocKey      string // documentation map key the record joined on
	Tags        []string
	Description string
	URL         string
	Icon        string
}

// FullName is the dotted display name, e.g. "Part.Anchored".
func (r *Record) FullName() string {
	if r.Qualifier == "" {
		return r.Name
	}
	return r.Qualifier + "." + r.Name
}

func (r *Record) Deprecated() bool {
	return api.Tags(r.Tags).Has(DeprecatedTag)
}

// Set is one complete build: the active and deprecated collections plus the
// distinct parameter data-type names seen along the way.
type Set struct {
	Version    string
	Active     []Record
	Deprecated []Record
	DataTypes  []string
	BuiltAt    time.Time
}

// Len is the total number of records across both collections.
func (s *Set) Len() int {
	return len(s.Active) + len(s.Deprecated)
}

func (s *Set) add(r Record) {
	if r.Deprecated() {
		s.Deprecated = append(s.Deprecated, r)
	} else {
		s.Active = append(s.Active, r)
	}
}

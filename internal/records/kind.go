package records

import "github.com/jcdickinson/rbxdocs/internal/api"

// Kind is the closed set of entity kinds a record can be built from.
type Kind int

const (
	KindClass Kind = iota
	KindMember
	KindEnum
	KindEnumItem
	KindDataType
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindMember:
		return "member"
	case KindEnum:
		return "enum"
	case KindEnumItem:
		return "enumitem"
	case KindDataType:
		return "datatype"
	default:
		return "unknown"
	}
}

// Documentation map scopes.
const (
	ScopeGlobalType = "globaltype"
	ScopeGlobal     = "global"
	ScopeEnum       = "enum"
)

// DocKey builds a documentation map key, e.g. DocKey("globaltype", "Part.Anchored").
func DocKey(scope, path string) string {
	return "@roblox/" + scope + "/" + path
}

// entity is a dump node waiting to be joined against the documentation map.
type entity struct {
	kind  Kind
	name  string
	owner string // class name for members, enum name for enum items
	tags  []string
	icon  string
}

func (e entity) scope() string {
	switch e.kind {
	case KindClass, KindMember:
		return ScopeGlobalType
	case KindEnumItem:
		return ScopeEnum
	default:
		return ScopeGlobal
	}
}

func (e entity) qualifier() string {
	switch e.kind {
	case KindMember, KindEnumItem:
		return e.owner
	case KindEnum:
		return EnumQualifier
	default:
		return ""
	}
}

// docKeys lists the keys to try, in order. Enums are keyed by their bare name;
// older documentation maps used "Enum.<Name>" instead.
func (e entity) docKeys() []string {
	switch e.kind {
	case KindMember, KindEnumItem:
		return []string{DocKey(e.scope(), e.owner+"."+e.name)}
	case KindEnum:
		return []string{
			DocKey(e.scope(), e.name),
			DocKey(e.scope(), EnumQualifier+"."+e.name),
		}
	default:
		return []string{DocKey(e.scope(), e.name)}
	}
}

// join looks the entity up in docs and builds its record. ok is false when no
// key matched or the entity has no name.
func (e entity) join(docs api.DocMap) (rec Record, ok bool) {
	if e.name == "" {
		return Record{}, false
	}
	for _, key := range e.docKeys() {
		entry, found := docs[key]
		if !found {
			continue
		}
		return Record{
			Name:        e.name,
			Qualifier:   e.qualifier(),
			Kind:        e.kind,
			DocKey:      key,
			Tags:        append([]string(nil), e.tags...),
			Description: entry.Description,
			URL:         entry.URL,
			Icon:        e.icon,
		}, true
	}
	return Record{}, false
}

package records

import (
	"sort"
	"time"

	"github.com/jcdickinson/rbxdocs/internal/api"
	"github.com/jcdickinson/rbxdocs/internal/icons"
)

// DefaultEnumItemIcon is the icon name used for enum items.
const DefaultEnumItemIcon = "EnumMember"

// Options configures a build.
type Options struct {
	Version      string
	Icons        icons.Resolver
	EnumItemIcon string
}

// Build joins every class, member, enum, enum item and parameter data type in
// dump against docs. Entities without documentation are skipped, and each doc
// entry yields at most one record; the first entity to join it wins.
func Build(dump *api.Dump, docs api.DocMap, opts Options) *Set {
	if opts.EnumItemIcon == "" {
		opts.EnumItemIcon = DefaultEnumItemIcon
	}
	resolve := func(name string) string {
		if opts.Icons == nil {
			return ""
		}
		return opts.Icons.Resolve(name)
	}

	set := &Set{Version: opts.Version}
	joined := make(map[string]struct{})
	emit := func(e entity) {
		r, ok := e.join(docs)
		if !ok {
			return
		}
		// Enum-typed parameters share their enum's doc key.
		if _, dup := joined[r.DocKey]; dup {
			return
		}
		joined[r.DocKey] = struct{}{}
		set.add(r)
	}

	for _, class := range dump.Classes {
		classIcon := resolve(class.Name)
		emit(entity{kind: KindClass, name: class.Name, tags: class.Tags, icon: classIcon})
		for _, m := range class.Members {
			emit(entity{kind: KindMember, name: m.Name, owner: class.Name, tags: m.Tags, icon: classIcon})
		}
	}

	enumIcon := resolve(icons.Enum)
	itemIcon := resolve(opts.EnumItemIcon)
	for _, enum := range dump.Enums {
		emit(entity{kind: KindEnum, name: enum.Name, tags: enum.Tags, icon: enumIcon})
		for _, item := range enum.Items {
			emit(entity{kind: KindEnumItem, name: item.Name, owner: enum.Name, tags: item.Tags, icon: itemIcon})
		}
	}

	set.DataTypes = CollectDataTypes(dump)
	typeIcon := resolve(icons.Snippet)
	for _, name := range set.DataTypes {
		emit(entity{kind: KindDataType, name: name, icon: typeIcon})
	}

	set.BuiltAt = time.Now()
	return set
}

// CollectDataTypes returns the sorted, distinct type names of every member
// parameter in dump.
func CollectDataTypes(dump *api.Dump) []string {
	seen := make(map[string]struct{})
	for _, class := range dump.Classes {
		for _, m := range class.Members {
			for _, p := range m.Parameters {
				if p.Type.Name == "" {
					continue
				}
				seen[p.Type.Name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

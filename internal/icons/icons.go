// Package icons maps class and type names to icon locations.
//
// Icon availability comes from either a remote directory listing or a local
// directory of image files. Names without a dedicated icon fall back to the
// placeholder icon.
package icons

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known icon names.
const (
	Placeholder = "Placeholder"
	Enum        = "Enum"
	Snippet     = "ACCodeSnippet"
)

// Resolver turns an icon name into a path or URL.
type Resolver interface {
	Resolve(name string) string
}

// Source produces a Resolver for one build.
type Source interface {
	Load(ctx context.Context) (Resolver, error)
}

// Set resolves names against a fixed set of available icons.
type Set struct {
	available map[string]struct{}
	locate    func(name string) string
}

func newSet(names []string, locate func(string) string) *Set {
	available := make(map[string]struct{}, len(names))
	for _, n := range names {
		available[n] = struct{}{}
	}
	return &Set{available: available, locate: locate}
}

// Has reports whether name has a dedicated icon.
func (s *Set) Has(name string) bool {
	_, ok := s.available[name]
	return ok
}

func (s *Set) Len() int { return len(s.available) }

// Resolve returns the location of name's icon, or the placeholder's.
func (s *Set) Resolve(name string) string {
	if !s.Has(name) {
		name = Placeholder
	}
	return s.locate(name)
}

// NewRemoteSet resolves to urlTemplate formatted with the icon name.
func NewRemoteSet(names []string, urlTemplate string) *Set {
	return newSet(names, func(name string) string {
		return fmt.Sprintf(urlTemplate, name)
	})
}

// Lister lists available icon names, e.g. from a remote directory listing.
type Lister interface {
	ListIcons(ctx context.Context) ([]string, error)
}

// Remote loads icon names from a Lister on every build.
type Remote struct {
	Lister      Lister
	URLTemplate string
}

func (r Remote) Load(ctx context.Context) (Resolver, error) {
	names, err := r.Lister.ListIcons(ctx)
	if err != nil {
		return nil, err
	}
	return NewRemoteSet(names, r.URLTemplate), nil
}

// Dir resolves icons to <Dir>/<name>.png files.
type Dir string

func (d Dir) Load(ctx context.Context) (Resolver, error) {
	entries, err := os.ReadDir(string(d))
	if err != nil {
		return nil, fmt.Errorf("reading icon directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}

	dir := string(d)
	return newSet(names, func(name string) string {
		return filepath.Join(dir, name+".png")
	}), nil
}

package markdown

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gomarkdown/markdown/ast"
	"github.com/jcdickinson/rbxdocs/internal/records"
	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Qualifier  string   `yaml:"qualifier,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Deprecated bool     `yaml:"deprecated,omitempty"`
	URL        string   `yaml:"url,omitempty"`
	DocKey     string   `yaml:"doc_key"`
	Version    string   `yaml:"version,omitempty"`
}

// AddFrontMatter prepends v, marshalled as YAML, as a front-matter block.
func AddFrontMatter(src string, v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String(), nil
}

// RenderRecord renders r as a standalone markdown document: front matter,
// a heading, the description with absolute links and a link to the full
// reference page.
func RenderRecord(r *records.Record, version string) (string, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", r.FullName())
	if desc := strings.TrimSpace(r.Description); desc != "" {
		body.WriteString(AbsolutizeLinks(desc, DocsBaseURL))
		body.WriteString("\n\n")
	}
	if r.URL != "" {
		fmt.Fprintf(&body, "[Learn more](%s)\n", r.URL)
	}

	return AddFrontMatter(body.String(), frontMatter{
		Name:       r.FullName(),
		Kind:       r.Kind.String(),
		Qualifier:  r.Qualifier,
		Tags:       r.Tags,
		Deprecated: r.Deprecated(),
		URL:        r.URL,
		DocKey:     r.DocKey,
		Version:    version,
	})
}

// Snippet returns the plain text of the first paragraph of src, collapsed to
// single spaces and cut to at most maxRunes runes. maxRunes <= 0 means no limit.
func Snippet(src string, maxRunes int) string {
	var para ast.Node
	ast.WalkFunc(parse(src), func(node ast.Node, entering bool) ast.WalkStatus {
		if _, ok := node.(*ast.Paragraph); ok && entering {
			para = node
			return ast.Terminate
		}
		return ast.GoToNext
	})
	if para == nil {
		return ""
	}

	var b strings.Builder
	ast.WalkFunc(para, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.Write(n.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte(' ')
		}
		return ast.GoToNext
	})

	text := strings.Join(strings.Fields(b.String()), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes-1])) + "…"
}

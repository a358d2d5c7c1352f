package markdown

import (
	"net/url"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// DocsBaseURL is what relative links in documentation descriptions are
// resolved against.
const DocsBaseURL = "https://create.roblox.com/"

func parse(src string) ast.Node {
	return gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))
}

// linkDestinations returns the distinct link and image destinations in src,
// in document order.
func linkDestinations(src string) []string {
	seen := make(map[string]bool)
	var dests []string
	ast.WalkFunc(parse(src), func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		var dest []byte
		switch n := node.(type) {
		case *ast.Link:
			dest = n.Destination
		case *ast.Image:
			dest = n.Destination
		default:
			return ast.GoToNext
		}
		if d := string(dest); d != "" && !seen[d] {
			seen[d] = true
			dests = append(dests, d)
		}
		return ast.GoToNext
	})
	return dests
}

// RewriteLinks rewrites markdown link destinations using linkMap. The AST only
// decides which destinations exist; the rewrite itself is textual so the rest
// of the source keeps its formatting.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 {
		return src
	}

	var oldNew []string
	for _, dest := range linkDestinations(src) {
		if repl, ok := linkMap[dest]; ok {
			oldNew = append(oldNew, "]("+dest+")", "]("+repl+")")
		}
	}
	if len(oldNew) == 0 {
		return src
	}
	result := strings.NewReplacer(oldNew...).Replace(src)

	// Reference definitions: [ref]: destination
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "[") {
			continue
		}
		idx := strings.Index(trimmed, "]: ")
		if idx < 0 {
			continue
		}
		dest := strings.TrimSpace(trimmed[idx+3:])
		if repl, ok := linkMap[dest]; ok {
			lines[i] = strings.Replace(line, "]: "+dest, "]: "+repl, 1)
		}
	}
	return strings.Join(lines, "\n")
}

// AbsolutizeLinks resolves every relative link destination in src against
// base. Absolute links and in-page anchors are left alone.
func AbsolutizeLinks(src, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return src
	}

	linkMap := make(map[string]string)
	for _, dest := range linkDestinations(src) {
		if strings.HasPrefix(dest, "#") {
			continue
		}
		u, err := url.Parse(dest)
		if err != nil || u.IsAbs() {
			continue
		}
		linkMap[dest] = baseURL.ResolveReference(u).String()
	}
	return RewriteLinks(src, linkMap)
}

package search

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// WeightedRatio scores the similarity of a and b from 0 to 100, picking the
// best of a plain ratio, partial (substring) ratios and token-order-insensitive
// ratios. It follows fuzzywuzzy's WRatio.
func WeightedRatio(a, b string) int {
	p1, p2 := fullProcess(a), fullProcess(b)
	if p1 == "" || p2 == "" {
		return 0
	}

	const unbaseScale = 0.95
	partialScale := 0.90

	base := float64(ratio(p1, p2))

	l1, l2 := runeLen(p1), runeLen(p2)
	lenRatio := float64(max(l1, l2)) / float64(min(l1, l2))

	if lenRatio < 1.5 {
		tsor := float64(tokenSortRatio(p1, p2, false)) * unbaseScale
		tser := float64(tokenSetRatio(p1, p2, false)) * unbaseScale
		return roundHalfEven(max(base, tsor, tser))
	}

	if lenRatio > 8 {
		partialScale = 0.6
	}
	partial := float64(partialRatio(p1, p2)) * partialScale
	ptsor := float64(tokenSortRatio(p1, p2, true)) * unbaseScale * partialScale
	ptser := float64(tokenSetRatio(p1, p2, true)) * unbaseScale * partialScale
	return roundHalfEven(max(base, partial, ptsor, ptser))
}

// fullProcess lower-cases s, drops non-ASCII runes, turns everything that is
// not a letter, digit or underscore into a space and trims the result.
func fullProcess(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// ratio is the sequence similarity of a and b scaled to 0..100.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(chars(a), chars(b))
	return roundHalfEven(100 * m.Ratio())
}

// partialRatio is the best ratio of the shorter string against any
// equally long window of the longer one.
func partialRatio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := chars(a), chars(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	m := difflib.NewMatcher(shorter, longer)
	best := 0.0
	for _, block := range m.GetMatchingBlocks() {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}

		r := difflib.NewMatcher(shorter, longer[start:end]).Ratio()
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return roundHalfEven(100 * best)
}

func tokenSortRatio(a, b string, partial bool) int {
	sa, sb := sortedTokens(a), sortedTokens(b)
	if partial {
		return partialRatio(sa, sb)
	}
	return ratio(sa, sb)
}

// tokenSetRatio compares the shared tokens against each side's shared tokens
// plus its leftovers, so extra words on one side cost little.
func tokenSetRatio(a, b string, partial bool) int {
	ta, tb := tokenSet(a), tokenSet(b)

	var inter, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(inter, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	score := ratio
	if partial {
		score = partialRatio
	}
	return max(score(sect, combinedA), score(sect, combinedB), score(combinedA, combinedB))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

// chars splits s into single-rune strings for the sequence matcher.
func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func roundHalfEven(f float64) int {
	return int(math.RoundToEven(f))
}

package tracker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultSKUPrefix = "GEN"
	maxSimilar       = 10
	similarThreshold = 0.5
)

// skuPrefix is the first three letters of the category, upper-cased with
// accents removed. Categories without letters get GEN.
func skuPrefix(category *string) string {
	if category == nil {
		return defaultSKUPrefix
	}
	var b strings.Builder
	for _, r := range fold(*category) {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == 3 {
			break
		}
	}
	if b.Len() == 0 {
		return defaultSKUPrefix
	}
	return b.String()
}

func formatSKU(prefix string, n int64) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// fold lower-cases s, strips combining marks and collapses whitespace, so
// "Plywood  Sheet" and "plywóod sheet" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}

type scoredProduct struct {
	product   Product
	score     float64
	substring bool
}

// rankSimilar orders candidates by how closely their names match query.
// Every name containing the folded query (or contained in it) is returned;
// other names are kept when their token overlap or edit similarity clears
// similarThreshold, and only while fewer than maxSimilar results are held.
func rankSimilar(query string, candidates []Product) []Product {
	q := fold(query)
	if q == "" {
		return []Product{}
	}
	qTokens := strings.Fields(q)

	var scored []scoredProduct
	for _, p := range candidates {
		name := fold(p.Name)
		if name == "" {
			continue
		}
		switch {
		case name == q:
			scored = append(scored, scoredProduct{p, 1, true})
		case strings.Contains(name, q) || strings.Contains(q, name):
			scored = append(scored, scoredProduct{p, 0.9, true})
		default:
			s := max(jaccard(qTokens, strings.Fields(name)), editSimilarity(q, name))
			if s > similarThreshold {
				scored = append(scored, scoredProduct{p, s, false})
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].substring != scored[j].substring {
			return scored[i].substring
		}
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].product.Name < scored[j].product.Name
	})

	out := make([]Product, 0, min(len(scored), maxSimilar))
	for _, sp := range scored {
		if !sp.substring && len(out) >= maxSimilar {
			break
		}
		out = append(out, sp.product)
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	inter := 0
	seen := map[string]bool{}
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// editSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1 - float64(prev[len(rb)])/float64(longest)
}

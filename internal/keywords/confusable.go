package keywords

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const confusableThreshold = 0.85

// Pair names two keywords a speech engine is likely to mix up.
type Pair struct {
	A     string
	B     string
	Score float64
}

// Confusable lists keyword pairs that share a Double Metaphone code and
// score at least 0.85 on Jaro-Winkler similarity. It is advisory; matching
// itself stays literal.
func Confusable(words []string) []Pair {
	var pairs []Pair
	for i := 0; i < len(words); i++ {
		for j := i + 1; j < len(words); j++ {
			a, b := Key(words[i]), Key(words[j])
			if a == "" || b == "" || a == b {
				continue
			}
			if !codesOverlap(codesFor(a), codesFor(b)) {
				continue
			}
			score := matchr.JaroWinkler(a, b, false)
			if alt := matchr.JaroWinkler(strings.ReplaceAll(a, " ", ""), strings.ReplaceAll(b, " ", ""), false); alt > score {
				score = alt
			}
			if score >= confusableThreshold {
				pairs = append(pairs, Pair{A: words[i], B: words[j], Score: score})
			}
		}
	}
	return pairs
}

func codesFor(phrase string) map[string]struct{} {
	tokens := strings.Fields(phrase)
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

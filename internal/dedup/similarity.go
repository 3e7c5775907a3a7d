package dedup

import "strings"

// shingleSize is the number of consecutive words per shingle. Three-word
// shingles are long enough to be discriminative on news copy while still
// tolerating light editorial rewording.
const shingleSize = 3

// Similarity returns the Jaccard similarity of two texts over their word
// shingle sets, in [0, 1]. Texts shorter than one shingle are compared as
// whole strings.
func Similarity(a, b string) float64 {
	sa := shingles(a)
	sb := shingles(b)

	if len(sa) == 0 || len(sb) == 0 {
		if NormalizeTitle(a) == NormalizeTitle(b) && NormalizeTitle(a) != "" {
			return 1
		}
		return 0
	}

	intersection := 0
	for s := range sa {
		if _, ok := sb[s]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection

	return float64(intersection) / float64(union)
}

func shingles(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{})
	for i := 0; i+shingleSize <= len(words); i++ {
		out[strings.Join(words[i:i+shingleSize], " ")] = struct{}{}
	}
	return out
}

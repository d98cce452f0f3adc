package index

import (
	"math"
	"strings"
	"unicode"

	"github.com/spaolacci/murmur3"
)

// Embed converts text into a fixed-size feature vector using the
// hashing trick: each token increments the bucket selected by its
// murmur3 hash, and the result is L2-normalized. Deterministic and
// dependency-free, so indexed chunks stay stable across re-runs.
func Embed(text string, dim int) []float32 {
	vec := make([]float32, dim)

	for _, token := range tokenize(text) {
		bucket := murmur3.Sum32([]byte(token)) % uint32(dim)
		vec[bucket]++
	}

	return l2Normalize(vec)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

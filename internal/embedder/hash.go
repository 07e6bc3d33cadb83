// Package embedder implements the deterministic text embedding used for
// similarity search over the policy corpus. It is a feature-hashing
// bag-of-terms scheme: no model weights, no network calls, and identical
// input always produces an identical vector. For short policy documents with
// literal keyword overlap this is a sufficient stand-in for a learned
// embedding, and determinism is what makes result caching and test fixtures
// possible.
package embedder

import (
	"crypto/sha1"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the embedding vector size used when no explicit
// dimension is configured. Vector store collections must be created with the
// same size.
const DefaultDimensions = 384

// HashEmbedder converts text into fixed-dimension L2-normalized vectors via
// signed feature hashing. It is stateless and safe for concurrent use.
type HashEmbedder struct {
	// dim is the output vector dimension.
	dim int
}

// New constructs a HashEmbedder with the given output dimension.
// Non-positive dim falls back to DefaultDimensions.
func New(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &HashEmbedder{dim: dim}
}

// Dimensions returns the output vector size of this embedder.
func (e *HashEmbedder) Dimensions() int {
	return e.dim
}

// Embed converts text into a normalized embedding vector. Each token is
// hashed to a bucket and a sign; signed term counts are accumulated and the
// result is L2-normalized. Empty or whitespace-only input yields the zero
// vector — callers compare with [Cosine], which defines similarity against
// the zero vector as 0.
func (e *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dim)

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		idx, sign := e.hashToken(tok)
		vec[idx] += sign
	}

	normalize(vec)
	return vec
}

// hashToken maps a token to its bucket index and sign. The index comes from
// the first 4 bytes of the token's SHA-1 digest, the sign from bit 0 of
// byte 4, so the mapping is stable across processes and platforms.
func (e *HashEmbedder) hashToken(tok string) (int, float32) {
	h := sha1.Sum([]byte(tok))
	idx := int(binary.BigEndian.Uint32(h[:4]) % uint32(e.dim)) //nolint:gosec // dim is small and positive
	sign := float32(-1)
	if h[4]&1 == 1 {
		sign = 1
	}
	return idx, sign
}

// Tokenize lowercases text and splits it into maximal alphanumeric runs.
// Punctuation and whitespace are separators and never appear in tokens.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// normalize scales vec to unit L2 norm in place. The zero vector is left
// unchanged — there is nothing meaningful to scale and dividing by a zero
// norm must never happen.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine returns the cosine similarity of two vectors. A zero vector on
// either side yields 0 rather than a division error. Mismatched lengths are
// compared over the shorter prefix.
func Cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Dot returns the dot product of two vectors over their shorter prefix.
// For unit vectors this equals cosine similarity and avoids recomputing norms
// in the in-process store's scan loop.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

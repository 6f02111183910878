package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/stellarlinkco/jarvis/internal/config"
)

// Local is an offline embedding model: words and padded character trigrams
// are hashed into a fixed number of buckets and the result is L2-normalised.
// Paraphrases that share stems ("boot", "booting") land close together,
// which is enough for short administrative phrases. Filler words are dropped
// before hashing unless the text consists of nothing else.
type Local struct {
	dim int
}

func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = config.DefaultEmbeddingDim
	}
	return &Local{dim: dim}
}

func (l *Local) Dimension() int { return l.dim }

func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	words := tokenize(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("embed: empty text")
	}
	words = contentWords(words)

	vec := make([]float64, l.dim)
	for _, w := range words {
		// whole words weigh more than their trigrams
		l.add(vec, "w:"+w, 2)
		padded := "^" + w + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			l.add(vec, "t:"+string(runes[i:i+3]), 1)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, l.dim)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed batch: empty texts")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch: index %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (l *Local) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(l.dim))
	// the top bit picks the sign so collisions partially cancel
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// fillerWords carry no intent of their own. "server" and its synonyms are
// in here too: nearly every command names the server.
var fillerWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"to": {}, "of": {}, "for": {}, "me": {}, "my": {}, "you": {}, "your": {}, "i": {},
	"can": {}, "could": {}, "would": {}, "will": {}, "please": {}, "be": {}, "are": {},
	"and": {}, "or": {}, "so": {}, "now": {}, "just": {},
	"server": {}, "system": {}, "machine": {}, "thing": {},
}

func contentWords(words []string) []string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, filler := fillerWords[w]; !filler {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return words
	}
	return kept
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

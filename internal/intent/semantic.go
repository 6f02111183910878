package intent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stellarlinkco/jarvis/internal/embed"
)

// SemanticMetric scores meaning similarity as the best cosine similarity
// between the text embedding and each phrase embedding, scaled to [0,100].
// Negative cosines count as zero. Phrase vectors are computed once and cached.
//
// When rival phrase sets are registered, a set only keeps its value if no
// rival lies closer to the text; otherwise Best reports 0. A request is thus
// credited to the one action it most resembles, even when it shares words
// with several.
type SemanticMetric struct {
	embedder embed.Embedder
	rivals   []PhraseSet

	mu       sync.Mutex
	cache    map[string][]float32
	lastText string
	lastVec  []float32
}

func NewSemanticMetric(embedder embed.Embedder, rivals ...PhraseSet) *SemanticMetric {
	lowered := make([]PhraseSet, len(rivals))
	for i, set := range rivals {
		lowered[i] = make(PhraseSet, len(set))
		for j, p := range set {
			lowered[i][j] = strings.ToLower(p)
		}
	}
	return &SemanticMetric{
		embedder: embedder,
		rivals:   lowered,
		cache:    make(map[string][]float32),
	}
}

func (m *SemanticMetric) Name() string { return "semantic" }

func (m *SemanticMetric) Best(ctx context.Context, text string, phrases []string) (float64, error) {
	if len(phrases) == 0 {
		return 0, nil
	}
	vec, err := m.textVector(ctx, text)
	if err != nil {
		return 0, err
	}

	best, err := m.nearest(ctx, vec, phrases)
	if err != nil {
		return 0, err
	}
	for _, rival := range m.rivals {
		other, err := m.nearest(ctx, vec, rival)
		if err != nil {
			return 0, err
		}
		if other > best {
			return 0, nil
		}
	}
	return best * 100, nil
}

// nearest returns the best cosine similarity of vec against phrases, floored at 0.
func (m *SemanticMetric) nearest(ctx context.Context, vec []float32, phrases []string) (float64, error) {
	phraseVecs, err := m.phraseVectors(ctx, phrases)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for i, pv := range phraseVecs {
		sim, err := embed.CosineSimilarity(vec, pv)
		if err != nil {
			return 0, fmt.Errorf("compare with %q: %w", phrases[i], err)
		}
		if sim > best {
			best = sim
		}
	}
	return best, nil
}

// textVector embeds text, reusing the previous result when a router scores
// the same message against each of its routes in turn.
func (m *SemanticMetric) textVector(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	if m.lastVec != nil && m.lastText == text {
		vec := m.lastVec
		m.mu.Unlock()
		return vec, nil
	}
	m.mu.Unlock()

	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.lastText, m.lastVec = text, vec
	m.mu.Unlock()
	return vec, nil
}

func (m *SemanticMetric) phraseVectors(ctx context.Context, phrases []string) ([][]float32, error) {
	m.mu.Lock()
	var missing []string
	for _, p := range phrases {
		if _, ok := m.cache[p]; !ok {
			missing = append(missing, p)
		}
	}
	m.mu.Unlock()

	if len(missing) > 0 {
		vecs, err := m.embedder.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("embed phrases: %w", err)
		}
		m.mu.Lock()
		for i, p := range missing {
			m.cache[p] = vecs[i]
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float32, len(phrases))
	for i, p := range phrases {
		out[i] = m.cache[p]
	}
	return out, nil
}

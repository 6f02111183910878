package intent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stellarlinkco/jarvis/internal/embed"
)

// failureLogInterval bounds how often one failing metric is reported.
const failureLogInterval = time.Minute

// SimilarityMetric is one similarity signal: the best score in [0,100] of
// text against any phrase.
type SimilarityMetric interface {
	Name() string
	Best(ctx context.Context, text string, phrases []string) (float64, error)
}

// Scorer combines similarity signals into one confidence per phrase set.
type Scorer interface {
	Score(ctx context.Context, text string, phrases PhraseSet) float64
}

// MeanScorer averages the best value of each metric. A metric that fails
// (an unreachable embedding service, say) contributes 0, so the result is
// always a mean over every signal and one signal alone cannot carry a
// message past an action threshold.
type MeanScorer struct {
	metrics []SimilarityMetric

	mu       sync.Mutex
	lastWarn map[string]time.Time
}

func NewMeanScorer(metrics ...SimilarityMetric) *MeanScorer {
	return &MeanScorer{metrics: metrics, lastWarn: make(map[string]time.Time)}
}

// NewRouteScorer is the production scorer for routes: the fuzzy metric plus
// a semantic metric that weighs each route's phrases against all the others.
func NewRouteScorer(embedder embed.Embedder, routes []Route) *MeanScorer {
	sets := make([]PhraseSet, len(routes))
	for i, r := range routes {
		sets[i] = r.Phrases
	}
	return NewMeanScorer(FuzzyMetric{}, NewSemanticMetric(embedder, sets...))
}

func (s *MeanScorer) Score(ctx context.Context, text string, phrases PhraseSet) float64 {
	if len(s.metrics) == 0 {
		return 0
	}
	var sum float64
	for _, m := range s.metrics {
		v, err := m.Best(ctx, text, phrases)
		if err != nil {
			s.warn(m.Name(), err)
			continue
		}
		sum += clamp(v)
	}
	return sum / float64(len(s.metrics))
}

func (s *MeanScorer) warn(metric string, err error) {
	now := time.Now()
	s.mu.Lock()
	last, seen := s.lastWarn[metric]
	if seen && now.Sub(last) < failureLogInterval {
		s.mu.Unlock()
		return
	}
	s.lastWarn[metric] = now
	s.mu.Unlock()
	log.Printf("[intent] %s metric unavailable, counting it as 0: %v", metric, err)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

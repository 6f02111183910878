package intent

import (
	"context"
	"strings"

	"github.com/xrash/smetrics"
)

// FuzzyMetric scores surface similarity with a substring-tolerant ratio:
// the shorter string is slid across the longer one and the best window wins.
type FuzzyMetric struct{}

func (FuzzyMetric) Name() string { return "fuzzy" }

func (FuzzyMetric) Best(_ context.Context, text string, phrases []string) (float64, error) {
	best := 0.0
	for _, phrase := range phrases {
		if score := PartialRatio(text, phrase); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best, nil
}

// Ratio is the normalised indel similarity of a and b in [0,100].
// A substitution costs two edits, so the score is 100 * matches*2 / total length.
func Ratio(a, b string) float64 {
	lensum := len(a) + len(b)
	if lensum == 0 {
		return 100
	}
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	score := 100 * float64(lensum-dist) / float64(lensum)
	if score < 0 {
		return 0
	}
	return score
}

// PartialRatio compares the shorter input against every equal-length window of
// the longer one and returns the best Ratio. Comparison is case-insensitive.
func PartialRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	shortStr := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if score := Ratio(shortStr, string(long[i:i+len(short)])); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

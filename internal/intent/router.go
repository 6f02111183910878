package intent

import (
	"context"
	"strings"
)

// Route binds an action to its phrase set and confidence threshold.
// A route matches only when the score is strictly greater than Threshold.
type Route struct {
	Action    Action
	Phrases   PhraseSet
	Threshold float64
}

// Thresholds holds the two confidence levels used by the default table:
// Action guards server-affecting routes, Chat guards conversational ones.
type Thresholds struct {
	Action float64
	Chat   float64
}

// DefaultRoutes returns the routing table in priority order. Order matters:
// an ambiguous message resolves to the earliest route that clears its threshold.
func DefaultRoutes(t Thresholds) []Route {
	return []Route{
		{Action: Start, Phrases: startPhrases, Threshold: t.Action},
		{Action: Stop, Phrases: stopPhrases, Threshold: t.Action},
		{Action: Status, Phrases: statusPhrases, Threshold: t.Action},
		{Action: Terminate, Phrases: terminatePhrases, Threshold: t.Action},
		{Action: Help, Phrases: helpPhrases, Threshold: t.Chat},
		{Action: CheckOccupants, Phrases: occupantPhrases, Threshold: t.Action},
		{Action: Greet, Phrases: greetPhrases, Threshold: t.Chat},
	}
}

// Message is the part of an inbound chat message the router looks at.
type Message struct {
	Text         string
	FromSelf     bool
	MentionsSelf bool
}

// RouteScore is the confidence one route assigned to a message.
type RouteScore struct {
	Action    Action
	Score     float64
	Threshold float64
}

// Matched reports whether the score clears the threshold.
func (s RouteScore) Matched() bool { return s.Score > s.Threshold }

type Router struct {
	scorer    Scorer
	routes    []Route
	easterEgg string
}

// NewRouter builds a router over routes, which are evaluated in slice order.
// Phrases are lower-cased once here so scoring is case-insensitive.
// An empty easterEgg disables the substring trigger.
func NewRouter(scorer Scorer, routes []Route, easterEgg string) *Router {
	normalized := make([]Route, len(routes))
	for i, r := range routes {
		phrases := make(PhraseSet, len(r.Phrases))
		for j, p := range r.Phrases {
			phrases[j] = strings.ToLower(p)
		}
		normalized[i] = Route{Action: r.Action, Phrases: phrases, Threshold: r.Threshold}
	}
	return &Router{
		scorer:    scorer,
		routes:    normalized,
		easterEgg: strings.ToLower(strings.TrimSpace(easterEgg)),
	}
}

// Classify resolves text to an action. It never fails: text that matches
// nothing, including empty text, is Unrecognized.
func (r *Router) Classify(ctx context.Context, text string) Action {
	text = normalize(text)
	if text == "" {
		return Unrecognized
	}
	for _, route := range r.routes {
		if r.scorer.Score(ctx, text, route.Phrases) > route.Threshold {
			return route.Action
		}
	}
	if r.easterEgg != "" && strings.Contains(text, r.easterEgg) {
		return EasterEgg
	}
	return Unrecognized
}

// Route classifies msg if it is addressed to the bot. Messages the bot sent
// itself, or that do not mention it, are ignored and ok is false.
func (r *Router) Route(ctx context.Context, msg Message) (Action, bool) {
	if msg.FromSelf || !msg.MentionsSelf {
		return Unrecognized, false
	}
	return r.Classify(ctx, msg.Text), true
}

// Scores evaluates every route without short-circuiting. Useful for
// diagnosing why a message landed where it did.
func (r *Router) Scores(ctx context.Context, text string) []RouteScore {
	text = normalize(text)
	out := make([]RouteScore, 0, len(r.routes))
	for _, route := range r.routes {
		score := 0.0
		if text != "" {
			score = r.scorer.Score(ctx, text, route.Phrases)
		}
		out = append(out, RouteScore{Action: route.Action, Score: score, Threshold: route.Threshold})
	}
	return out
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

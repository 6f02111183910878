package lifecycle

import (
	"context"
	"log"

	"github.com/stellarlinkco/jarvis/internal/metrics"
)

// PresenceSink is the chat-platform capability that shows a status line.
type PresenceSink interface {
	SetPresence(ctx context.Context, text string) error
}

// Reporter mirrors server liveness into a two-state presence string.
type Reporter struct {
	probe   Prober
	sink    PresenceSink
	online  string
	offline string
}

func NewReporter(probe Prober, sink PresenceSink, online, offline string) *Reporter {
	return &Reporter{probe: probe, sink: sink, online: online, offline: offline}
}

// Refresh probes once and publishes the matching display string.
func (r *Reporter) Refresh(ctx context.Context) LivenessState {
	state := r.probe.State(ctx)
	r.Publish(ctx, state)
	return state
}

// Publish pushes the display string for an already known state.
// Sink failures are logged and otherwise ignored.
func (r *Reporter) Publish(ctx context.Context, state LivenessState) {
	metrics.SetServerOnline(state == Online)
	if r.sink == nil {
		return
	}
	if err := r.sink.SetPresence(ctx, r.Display(state)); err != nil {
		log.Printf("[presence] update failed: %v", err)
	}
}

func (r *Reporter) Display(state LivenessState) string {
	if state == Online {
		return r.online
	}
	return r.offline
}

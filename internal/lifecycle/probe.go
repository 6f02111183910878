// Package lifecycle starts, stops and observes the supervised game server.
// The server is not a child of this process: it is launched detached and
// observed only through its remote console.
package lifecycle

import (
	"context"

	"github.com/stellarlinkco/jarvis/internal/rcon"
)

// LivenessState is derived fresh on every query and never cached.
type LivenessState int

const (
	Offline LivenessState = iota
	Online
)

func (s LivenessState) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Prober reports the current liveness of the server.
type Prober interface {
	State(ctx context.Context) LivenessState
}

// Probe considers the server online when its remote console answers a
// harmless query. Any failure, including a refused connection or bad
// credentials, reads as Offline.
type Probe struct {
	console rcon.Console
}

func NewProbe(console rcon.Console) *Probe {
	return &Probe{console: console}
}

func (p *Probe) State(ctx context.Context) LivenessState {
	if _, err := p.console.Execute(ctx, "list"); err != nil {
		return Offline
	}
	return Online
}

// Online adapts Probe to callers that only need a yes/no answer.
func (p *Probe) Online(ctx context.Context) bool {
	return p.State(ctx) == Online
}

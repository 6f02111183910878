package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stellarlinkco/jarvis/internal/guard"
	"github.com/stellarlinkco/jarvis/internal/metrics"
	"github.com/stellarlinkco/jarvis/internal/rcon"
	"github.com/stellarlinkco/jarvis/internal/spawn"
)

var (
	ErrAlreadyRunning  = errors.New("server is already running")
	ErrAlreadyStarting = errors.New("server is already starting")
	ErrNotRunning      = errors.New("server is not running")
	ErrAlreadyStopping = errors.New("server is already stopping")
	ErrAccessDenied    = errors.New("access denied")
)

// Replier delivers a progress or result line back to whoever asked.
type Replier func(text string)

type Options struct {
	StartCommand   string
	WorkDir        string
	Grace          time.Duration
	AuthorizedUser string
	// Shutdown stops the whole bot process. Called on an authorized terminate.
	Shutdown func()
	// Wait blocks for the grace interval. Defaults to time.Sleep.
	Wait func(time.Duration)
}

// Controller executes lifecycle actions. Start and Stop are each guarded by
// their own latch so a repeated request never spawns or stops twice.
type Controller struct {
	probe    Prober
	console  rcon.Console
	spawner  spawn.Spawner
	reporter *Reporter
	opts     Options

	starting *guard.Latch
	stopping *guard.Latch
}

func NewController(probe Prober, console rcon.Console, spawner spawn.Spawner, reporter *Reporter, opts Options) *Controller {
	if opts.Wait == nil {
		opts.Wait = time.Sleep
	}
	return &Controller{
		probe:    probe,
		console:  console,
		spawner:  spawner,
		reporter: reporter,
		opts:     opts,
		starting: guard.NewLatch("start"),
		stopping: guard.NewLatch("stop"),
	}
}

// Status probes the server. When it is online the presence line is refreshed too.
func (c *Controller) Status(ctx context.Context) LivenessState {
	state := c.probe.State(ctx)
	if state == Online {
		c.reporter.Publish(ctx, state)
	}
	return state
}

// Start launches the server unless it is already up or already starting.
// After the grace interval the server is probed again; a server that is
// still warming up is not an error.
func (c *Controller) Start(ctx context.Context, reply Replier) error {
	if c.probe.State(ctx) == Online {
		reply("⚠️ The server is already operational, sir.")
		c.reporter.Publish(ctx, Online)
		return ErrAlreadyRunning
	}

	release, ok := c.starting.TryAcquire()
	if !ok {
		metrics.IncGuardRejection(c.starting.Name())
		reply("⚠️ The server is already starting. Please wait until it's operational.")
		return ErrAlreadyStarting
	}
	defer release()

	if err := c.spawner.SpawnDetached(c.opts.StartCommand, c.opts.WorkDir); err != nil {
		log.Printf("[lifecycle] start failed: %v", err)
		reply(fmt.Sprintf("⚠️ I couldn't start the server: %v", err))
		return fmt.Errorf("start server: %w", err)
	}
	log.Printf("[lifecycle] server launched, waiting %s", c.opts.Grace)
	reply("🟢 At your command. Initializing the Minecraft server. Please stand by...")

	c.opts.Wait(c.opts.Grace)

	if c.reporter.Refresh(ctx) == Online {
		reply("🟢 The server is now operational, sir.")
	} else {
		reply("🟡 The server is still warming up, sir. Ask me for a status report in a moment.")
	}
	return nil
}

// Stop asks the server to shut down gracefully through its console.
func (c *Controller) Stop(ctx context.Context, reply Replier) error {
	if c.probe.State(ctx) == Offline {
		reply("⚠️ The server is not yet operational, sir.")
		return ErrNotRunning
	}

	release, ok := c.stopping.TryAcquire()
	if !ok {
		metrics.IncGuardRejection(c.stopping.Name())
		reply("⚠️ The server is already stopping. Please wait until the process is complete.")
		return ErrAlreadyStopping
	}
	defer release()

	if _, err := c.console.Execute(ctx, "stop"); err != nil {
		log.Printf("[lifecycle] stop failed: %v", err)
		reply(fmt.Sprintf("⚠️ An error occurred while stopping the server: %v", err))
		return fmt.Errorf("stop server: %w", err)
	}
	log.Printf("[lifecycle] shutdown issued, waiting %s", c.opts.Grace)
	reply("🔴 Understood. Issuing shutdown sequence to the server.")

	c.opts.Wait(c.opts.Grace)

	c.reporter.Refresh(ctx)
	return nil
}

// CheckOccupants returns the console's raw player listing.
func (c *Controller) CheckOccupants(ctx context.Context) (string, error) {
	if c.probe.State(ctx) == Offline {
		return "", ErrNotRunning
	}
	resp, err := c.console.Execute(ctx, "list")
	if err != nil {
		log.Printf("[lifecycle] list players failed: %v", err)
		return "", fmt.Errorf("list players: %w", err)
	}
	return resp, nil
}

// TerminateSelf shuts the bot down when requester is the authorized identity.
// An empty authorized identity denies everyone.
func (c *Controller) TerminateSelf(requester string, reply Replier) error {
	if c.opts.AuthorizedUser == "" || requester != c.opts.AuthorizedUser {
		log.Printf("[lifecycle] terminate denied for %q", requester)
		reply("❌ *Access denied.* Only authorized personnel can initiate shutdowns.")
		return ErrAccessDenied
	}
	reply("🔴 *Shutting down...* Goodbye, sir.")
	if c.opts.Shutdown != nil {
		c.opts.Shutdown()
	}
	return nil
}

// Starting and Stopping expose latch state for diagnostics.
func (c *Controller) Starting() bool { return c.starting.InFlight() }
func (c *Controller) Stopping() bool { return c.stopping.InFlight() }

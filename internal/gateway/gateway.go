package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stellarlinkco/jarvis/internal/backup"
	"github.com/stellarlinkco/jarvis/internal/bus"
	"github.com/stellarlinkco/jarvis/internal/channel"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/cron"
	"github.com/stellarlinkco/jarvis/internal/embed"
	"github.com/stellarlinkco/jarvis/internal/intent"
	"github.com/stellarlinkco/jarvis/internal/lifecycle"
	"github.com/stellarlinkco/jarvis/internal/metrics"
	"github.com/stellarlinkco/jarvis/internal/rcon"
	"github.com/stellarlinkco/jarvis/internal/spawn"
)

// Scheduled job names double as their payload actions.
const (
	JobBackup   = "backup"
	JobPresence = "presence"
)

const (
	replyTimeout    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Options for creating a Gateway. Zero values select the production
// collaborators built from the config.
type Options struct {
	Console  rcon.Console
	Spawner  spawn.Spawner
	Embedder embed.Embedder
	// Channels are added next to the ones enabled in the config.
	Channels   []channel.Channel
	SignalChan chan os.Signal // for testing signal handling
	// Wait replaces the lifecycle grace sleep.
	Wait func(time.Duration)
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	channels   *channel.ChannelManager
	router     *intent.Router
	reporter   *lifecycle.Reporter
	ctrl       *lifecycle.Controller
	backups    *backup.Manager
	cron       *cron.Service
	metricsSrv *http.Server
	signalChan chan os.Signal

	handlers     sync.WaitGroup
	done         chan struct{}
	shutdownOnce sync.Once
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		signalChan: opts.SignalChan,
		done:       make(chan struct{}),
	}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	for _, ch := range opts.Channels {
		chMgr.Add(ch)
	}
	g.channels = chMgr

	embedder := opts.Embedder
	if embedder == nil {
		embedder = embed.New(cfg.Intent.Embedding)
	}
	routes := intent.DefaultRoutes(intent.Thresholds{
		Action: cfg.Intent.ActionThreshold,
		Chat:   cfg.Intent.ChatThreshold,
	})
	g.router = intent.NewRouter(intent.NewRouteScorer(embedder, routes), routes, cfg.Intent.EasterEgg)

	console := opts.Console
	if console == nil {
		timeout := time.Duration(cfg.Server.ProbeTimeoutMs) * time.Millisecond
		console = rcon.NewClient(cfg.RCONAddr(), cfg.Server.RCONPassword, timeout)
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = spawn.Exec{}
	}

	probe := lifecycle.NewProbe(console)
	g.reporter = lifecycle.NewReporter(probe, chMgr, cfg.Presence.Online, cfg.Presence.Offline)
	g.ctrl = lifecycle.NewController(probe, console, spawner, g.reporter, lifecycle.Options{
		StartCommand:   cfg.Server.StartCommand,
		WorkDir:        cfg.Server.Dir,
		Grace:          time.Duration(cfg.Server.GraceSeconds) * time.Second,
		AuthorizedUser: cfg.AuthorizedUser,
		Shutdown:       g.requestShutdown,
		Wait:           opts.Wait,
	})

	g.backups = backup.NewManager(backup.Options{
		SourceDir: cfg.Server.Dir,
		DestDir:   cfg.Backup.Dest,
		Exclude:   cfg.Backup.Exclude,
		Retention: backup.RetentionPolicy{MaxAgeDays: cfg.Backup.RetentionDays},
		Script:    cfg.Backup.Script,
	}, probe, spawner, backup.NewAuditLog(cfg.AuditLogPath()))

	g.cron = cron.NewService(config.JobStorePath())
	if err := g.cron.Load(); err != nil {
		log.Printf("[gateway] load jobs warning: %v", err)
	}
	g.cron.OnJob = g.runJob

	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.startMetrics()

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		g.bus.DispatchOutbound(dispatchCtx)
	}()

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	g.ensureJobs()
	if err := g.cron.Start(ctx); err != nil {
		log.Printf("[gateway] cron start warning: %v", err)
	}

	state := g.reporter.Refresh(ctx)
	log.Printf("[gateway] server is %s", state)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		g.processLoop(ctx)
	}()

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
	case <-g.done:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	cancel()
	<-loopDone
	g.waitHandlers(shutdownTimeout)
	stopDispatch()
	<-dispatchDone
	g.bus.FlushOutbound()
	return g.Shutdown()
}

// Bus exposes the message bus so callers can build channels on it.
func (g *Gateway) Bus() *bus.MessageBus { return g.bus }

// AddChannel registers ch. Call before Run.
func (g *Gateway) AddChannel(ch channel.Channel) { g.channels.Add(ch) }

// Done is closed once an authorized terminate has been requested.
func (g *Gateway) Done() <-chan struct{} { return g.done }

func (g *Gateway) requestShutdown() {
	g.shutdownOnce.Do(func() { close(g.done) })
}

func (g *Gateway) processLoop(ctx context.Context) {
	// Handlers outlive the loop so a reply in progress can finish during shutdown.
	handlerCtx := context.WithoutCancel(ctx)
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.dispatch(handlerCtx, msg)
		case <-ctx.Done():
			// pick up what was already queued
			for {
				select {
				case msg := <-g.bus.Inbound:
					g.dispatch(handlerCtx, msg)
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, msg bus.InboundMessage) {
	log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
	g.handlers.Add(1)
	go func() {
		defer g.handlers.Done()
		g.handle(ctx, msg)
	}()
}

func (g *Gateway) waitHandlers(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		g.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("[gateway] timed out waiting for in-flight handlers")
	}
}

// handle routes one message and executes the resulting action. A panic in
// any handler is contained to that message.
func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[gateway] handler panic for %s/%s: %v", msg.Channel, msg.SenderID, r)
		}
	}()

	action, ok := g.resolve(ctx, msg)
	if !ok {
		return
	}
	log.Printf("[gateway] %s/%s -> %s", msg.Channel, msg.SenderID, action)
	metrics.IncAction(action.String())

	reply := func(text string) { g.reply(msg, text) }
	if err := g.execute(ctx, action, msg, reply); err != nil {
		log.Printf("[gateway] %s: %v", action, err)
	}
}

// resolve picks the action for msg. Slash commands are dispatched by name
// only; everything else goes through the router first and falls back to a
// bare command name.
func (g *Gateway) resolve(ctx context.Context, msg bus.InboundMessage) (intent.Action, bool) {
	if msg.FromSelf || !msg.MentionsSelf {
		return intent.Unrecognized, false
	}
	text := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(text, "/") {
		action, _ := intent.ParseCommand(text)
		return action, true
	}

	action, ok := g.router.Route(ctx, intent.Message{
		Text:         text,
		FromSelf:     msg.FromSelf,
		MentionsSelf: msg.MentionsSelf,
	})
	if !ok {
		return intent.Unrecognized, false
	}
	if action == intent.Unrecognized {
		if cmd, found := intent.ParseCommand(text); found {
			action = cmd
		}
	}
	return action, true
}

func (g *Gateway) execute(ctx context.Context, action intent.Action, msg bus.InboundMessage, reply lifecycle.Replier) error {
	switch action {
	case intent.Start:
		return g.ctrl.Start(ctx, reply)
	case intent.Stop:
		return g.ctrl.Stop(ctx, reply)
	case intent.Status:
		if g.ctrl.Status(ctx) == lifecycle.Online {
			reply(statusOnlineReply)
		} else {
			reply(statusOfflineReply)
		}
	case intent.CheckOccupants:
		resp, err := g.ctrl.CheckOccupants(ctx)
		switch {
		case errors.Is(err, lifecycle.ErrNotRunning):
			reply(notOperationalReply)
		case err != nil:
			reply(fmt.Sprintf("⚠️ An error occurred while checking players: %v", err))
		default:
			reply("🟢 " + resp)
		}
		return err
	case intent.Backup:
		return g.backups.Run(ctx, reply)
	case intent.Terminate:
		return g.ctrl.TerminateSelf(msg.SenderID, reply)
	case intent.Help:
		reply(helpReply)
	case intent.Greet:
		name := msg.SenderName
		if name == "" {
			name = msg.SenderID
		}
		reply(fmt.Sprintf("Hello %s! How can I assist you today?", name))
	case intent.EasterEgg:
		reply(easterEggReply)
	default:
		reply(unrecognizedReply)
	}
	return nil
}

func (g *Gateway) reply(msg bus.InboundMessage, text string) {
	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: text,
	}
	select {
	case g.bus.Outbound <- out:
	case <-time.After(replyTimeout):
		log.Printf("[gateway] outbound queue full, dropped reply to %s/%s", msg.Channel, msg.ChatID)
	}
}

// runJob executes a scheduled job. Scheduled backups have no chat to report
// to, so their progress lines only reach the log.
func (g *Gateway) runJob(ctx context.Context, job cron.CronJob) (string, error) {
	switch job.Payload.Action {
	case JobBackup:
		var last string
		err := g.backups.Run(ctx, func(text string) {
			log.Printf("[gateway] scheduled backup: %s", text)
			last = text
		})
		return last, err
	case JobPresence:
		return g.reporter.Refresh(ctx).String(), nil
	default:
		return "", fmt.Errorf("unknown job action %q", job.Payload.Action)
	}
}

// ensureJobs installs the jobs declared in config and disables the ones
// whose schedule was removed.
func (g *Gateway) ensureJobs() {
	declared := map[string]string{
		JobBackup:   strings.TrimSpace(g.cfg.Backup.Schedule),
		JobPresence: strings.TrimSpace(g.cfg.Presence.RefreshSchedule),
	}
	for name, spec := range declared {
		if spec == "" {
			for _, job := range g.cron.ListJobs() {
				if job.Name == name && job.Enabled {
					if _, err := g.cron.EnableJob(job.ID, false); err != nil {
						log.Printf("[gateway] disable job %s warning: %v", name, err)
					}
				}
			}
			continue
		}
		sched, err := cron.ParseSchedule(spec)
		if err != nil {
			log.Printf("[gateway] job %s: %v", name, err)
			continue
		}
		if _, err := g.cron.EnsureJob(name, sched, cron.Payload{Action: name}); err != nil {
			log.Printf("[gateway] ensure job %s warning: %v", name, err)
		}
	}
}

func (g *Gateway) startMetrics() {
	if !g.cfg.Metrics.Enabled {
		return
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Printf("[gateway] metrics register warning: %v", err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              g.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.metricsSrv = srv
	go func() {
		log.Printf("[gateway] metrics on http://%s/metrics", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[gateway] metrics server error: %v", err)
		}
	}()
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	if g.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.metricsSrv.Shutdown(ctx); err != nil {
			log.Printf("[gateway] metrics shutdown warning: %v", err)
		}
	}
	_ = g.channels.StopAll()
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

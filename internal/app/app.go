package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"wmkeys/internal/config"
	"wmkeys/internal/hotkeys"
	"wmkeys/internal/logtee"
	"wmkeys/internal/workerutil"
	"wmkeys/internal/wsserver"
)

const (
	// defaultQueueSize bounds pending actions. Key events arrive at human
	// speed, so a full queue means actions are stuck.
	defaultQueueSize = 64

	shutdownWaitTimeout = 10 * time.Second
)

// ErrQueueFull is reported to the client when an action cannot be queued.
var ErrQueueFull = errors.New("dispatch queue full")

type dispatchJob struct {
	id   string
	mods hotkeys.ModMask
	key  xproto.Keysym
}

// App is the wmkeys daemon.
type App struct {
	cfg     config.Config
	manager *hotkeys.Manager
	hub     *wsserver.Hub
	queue   chan dispatchJob

	bgWG         sync.WaitGroup
	cancel       context.CancelFunc
	shuttingDown atomic.Bool
	stopOnce     sync.Once
}

// Option configures an App.
type Option func(*App)

// WithQueueSize overrides the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(a *App) {
		if n > 0 {
			a.queue = make(chan dispatchJob, n)
		}
	}
}

// New builds the registry from cfg. Bindings that fail to register are
// logged and skipped; New fails only when no registry can be built.
func New(cfg config.Config, opts ...Option) (*App, error) {
	reg, err := BuildRegistry(cfg)
	if reg == nil {
		return nil, err
	}
	if err != nil {
		slog.Warn("[WARN-CONFIG] some bindings were skipped", "error", err)
	}

	a := &App{
		cfg:     cfg,
		manager: hotkeys.NewManager(reg),
		queue:   make(chan dispatchJob, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.hub = wsserver.NewHub(wsserver.HubOptions{Addr: cfg.Listen, Handler: a})
	return a, nil
}

// Manager exposes the shortcut manager.
func (a *App) Manager() *hotkeys.Manager { return a.manager }

// URL returns the WebSocket endpoint once Start has succeeded.
func (a *App) URL() string { return a.hub.URL() }

// LogHandler wraps base so that Warn and above also reach the connected client.
func (a *App) LogHandler(base slog.Handler) slog.Handler {
	return logtee.New(base, slog.LevelWarn, a.forwardLog)
}

func (a *App) forwardLog(e logtee.Entry) {
	a.hub.BroadcastLog(wsserver.LogMessage{
		Time:    e.Time,
		Level:   e.Level.String(),
		Message: e.Message,
		Source:  e.Source,
		Attrs:   e.Attrs,
	})
}

// Start launches the dispatch worker and the WebSocket endpoint.
func (a *App) Start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.startDispatchWorker(workerCtx)

	if err := a.hub.Start(ctx); err != nil {
		a.Stop()
		return fmt.Errorf("start endpoint: %w", err)
	}
	slog.Info("[INFO-APP] wmkeys running", "url", a.hub.URL(), "bindings", len(a.manager.Bindings()))
	return nil
}

// Run starts the app and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.Stop()
	return nil
}

// Stop shuts down the endpoint and the worker. Safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.shuttingDown.Store(true)
		if err := a.hub.Stop(); err != nil {
			slog.Warn("[WARN-APP] endpoint shutdown failed", "error", err)
		}
		if a.cancel != nil {
			a.cancel()
		}

		done := make(chan struct{})
		go func() {
			a.bgWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownWaitTimeout):
			slog.Warn("[WARN-APP] dispatch worker did not stop in time")
		}
		slog.Info("[INFO-APP] wmkeys stopped")
	})
}

// HandleKey implements wsserver.Handler. Matched events are queued for the
// dispatch worker unless the event is a dry run.
func (a *App) HandleKey(_ context.Context, ev wsserver.KeyEvent) wsserver.MatchResult {
	mods := hotkeys.ModMaskFromUint16(ev.Modifiers)
	key := xproto.Keysym(ev.Keysym)

	b := a.manager.Handle(mods, key)
	if b == nil {
		slog.Debug("[DEBUG-APP] no binding", "id", ev.ID, "modifiers", mods.String(), "keysym", ev.Keysym)
		return wsserver.MatchResult{}
	}
	result := wsserver.MatchResult{Matched: true, Origin: b.Origin()}
	if ev.DryRun {
		return result
	}

	select {
	case a.queue <- dispatchJob{id: ev.ID, mods: mods, key: key}:
	default:
		slog.Warn("[WARN-APP] dispatch queue full, dropping event", "id", ev.ID, "origin", b.Origin())
		result.Error = ErrQueueFull.Error()
	}
	return result
}

func (a *App) startDispatchWorker(ctx context.Context) {
	workerutil.RunWithPanicRecovery(ctx, "dispatch-worker", &a.bgWG, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-a.queue:
				a.dispatch(job)
			}
		}
	}, workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
		OnFatal: func(worker string, maxRetries int) {
			slog.Error("[ERROR-APP] dispatch worker stopped permanently", "worker", worker, "maxRetries", maxRetries)
		},
	})
}

func (a *App) dispatch(job dispatchJob) {
	b, err := a.manager.Dispatch(job.mods, job.key)
	switch {
	case b == nil:
		slog.Debug("[DEBUG-APP] no binding at dispatch", "id", job.id)
	case err != nil:
		// Already reported at warn level by the manager.
		slog.Debug("[DEBUG-APP] action failed", "id", job.id, "origin", b.Origin())
	default:
		slog.Debug("[DEBUG-APP] action dispatched", "id", job.id, "origin", b.Origin())
	}
}

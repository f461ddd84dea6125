package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hbcaspa/soulengine/internal/cost"
	"github.com/hbcaspa/soulengine/internal/generator"
	"github.com/hbcaspa/soulengine/internal/impulse"
	"github.com/hbcaspa/soulengine/internal/metrics"
)

// Run starts every loop and blocks until ctx is cancelled, then performs
// the cooperative shutdown: stop timers, run a final deep consolidation,
// flush the versioner, drain the bus journal.
func (e *Engine) Run(ctx context.Context) error {
	if e.checkSessionGuard() {
		e.bus.Emit("session.guard_warning", "engine", map[string]any{"guard_path": e.paths.SessionGuard})
		e.log.Warn().Str("path", e.paths.SessionGuard).Msg("prior session did not shut down cleanly")
	}
	if err := e.armSessionGuard(); err != nil {
		e.log.Warn().Err(err).Msg("failed to arm session guard")
	}

	if err := e.vers.Init(); err != nil {
		e.log.Warn().Err(err).Msg("versioner init failed, continuing without git history")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if e.cfg.MetricsAddr != "" {
		go e.serveMetrics(runCtx)
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	spawn(func() { e.runTickLoop(runCtx) })
	spawn(func() { e.runFireLoop(runCtx) })
	spawn(func() { e.runHeartbeatLoop(runCtx) })
	if e.cfg.ReflectionOn {
		spawn(func() { e.runReflectionLoop(runCtx) })
	}

	<-runCtx.Done()
	wg.Wait()

	e.shutdown()
	close(e.done)
	return nil
}

// Shutdown cancels every loop; callers should then wait on Done.
func (e *Engine) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Done reports when Run has finished its shutdown sequence.
func (e *Engine) Done() <-chan struct{} { return e.done }

// shutdown performs the documented sequence: one last deep consolidation
// pass, versioner flush, audit log close. The bus journal is written
// synchronously inside each Emit, so nothing further is needed for it.
func (e *Engine) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.consol.ConsolidateDeep(shutdownCtx); err != nil {
		e.log.Error().Err(err).Msg("final consolidation failed")
	}
	e.vers.Flush()
	if err := e.audit.Close(); err != nil {
		e.log.Warn().Err(err).Msg("audit log close failed")
	}
	e.cost.Persist()
	e.impulseSched.Persist()
	_ = e.store.Close()
	e.disarmSessionGuard()
}

func (e *Engine) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(impulse.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.impulseSched.Tick(now, e.affect, e.paths.Pulse, e.consol)
			e.impulseLog.recordTick(now)
		}
	}
}

func (e *Engine) runFireLoop(ctx context.Context) {
	mood, _ := e.affect.Snapshot()
	delay := e.impulseSched.NextDelay(time.Now(), mood, e.cfg.ImpulseMinDelay, e.cfg.ImpulseMaxDelay, e.cfg.ImpulseNightFrom, e.cfg.ImpulseNightTo)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-timer.C:
			if !e.cfg.ImpulseEnabled.Load() {
				timer.Reset(e.cfg.ImpulseMinDelay)
				continue
			}
			e.fireOnce(ctx, now)
			mood, _ := e.affect.Snapshot()
			timer.Reset(e.impulseSched.NextDelay(now, mood, e.cfg.ImpulseMinDelay, e.cfg.ImpulseMaxDelay, e.cfg.ImpulseNightFrom, e.cfg.ImpulseNightTo))
		}
	}
}

func (e *Engine) fireOnce(ctx context.Context, now time.Time) {
	fireCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	gen := e.cost.Wrap(e.gen, cost.CategoryImpulse)
	result, err := e.impulseSched.Fire(fireCtx, gen, e.identCache, e, e.affect)
	if err != nil {
		e.log.Error().Err(err).Msg("impulse fire failed")
		return
	}
	if result.Fired {
		e.impulseLog.recordFire(now, string(result.Type), result.Content)
	}
}

// Deliver implements impulse.Delivery as the built-in sink: logging plus
// the bounded impulse log, since a transport adapter is the operator's
// concern, not this daemon's.
func (e *Engine) Deliver(ctx context.Context, impulseType impulse.Type, content string) error {
	e.log.Info().Str("type", string(impulseType)).Msg(content)
	return nil
}

func (e *Engine) runHeartbeatLoop(ctx context.Context) {
	c := cron.New()
	_, err := c.AddFunc(e.cfg.HeartbeatCron, func() { e.runHeartbeat(ctx) })
	if err != nil {
		e.log.Error().Err(err).Str("cron", e.cfg.HeartbeatCron).Msg("invalid heartbeat cron expression")
		return
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
}

func (e *Engine) runHeartbeat(ctx context.Context) {
	hbCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	gen := e.cost.Wrap(e.gen, cost.CategoryHeartbeat)
	result, err := gen.Generate(hbCtx, "Reflect briefly on the current state and mood.", nil, "heartbeat", generator.Options{MaxTokens: e.cfg.TokenBudgetHeartbeat})
	if err != nil {
		e.log.Error().Err(err).Msg("heartbeat generation failed")
		return
	}
	e.bus.Emit("heartbeat.completed", "engine", map[string]any{"content": result.Content})
}

func (e *Engine) runReflectionLoop(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runReflection(ctx)
		}
	}
}

func (e *Engine) runReflection(ctx context.Context) {
	refCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	gen := e.cost.Wrap(e.gen, cost.CategoryReflection)
	result, err := gen.Generate(refCtx, "Reflect on recent interactions and note anything worth remembering.", nil, "reflection", generator.Options{MaxTokens: e.cfg.ReflectionBudget})
	if err != nil {
		e.log.Error().Err(err).Msg("reflection generation failed")
		return
	}
	e.bus.Emit("reflection.completed", "engine", map[string]any{"content": result.Content})
}

func (e *Engine) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: e.cfg.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		e.log.Error().Err(err).Msg("metrics server stopped")
	}
}

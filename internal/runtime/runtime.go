package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/bus"
	"github.com/parleylabs/parley-core/internal/config"
	"github.com/parleylabs/parley-core/internal/gateway"
	"github.com/parleylabs/parley-core/internal/journal"
	"github.com/parleylabs/parley-core/internal/natsserver"
	"github.com/parleylabs/parley-core/internal/registry"
	"github.com/parleylabs/parley-core/internal/synth"
)

// Runtime wires the gateway process together: telemetry, the bus (embedded
// or external), the utterance journal, the configured synthesiser backend,
// the node registry and the synthesis service, plus the HTTP health surface.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up, blocks until ctx is cancelled, then tears
// them down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS server: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open utterance journal: %w", err)
	}
	defer store.Close()

	caps, err := r.cfg.Synth.Capabilities.Resolve()
	if err != nil {
		return fmt.Errorf("invalid synthesiser capabilities: %w", err)
	}

	synthesiser, err := r.buildSynthesiser(caps)
	if err != nil {
		return fmt.Errorf("failed to build synthesiser backend: %w", err)
	}

	reg, err := registry.New(ctx, r.cfg.Node,
		registry.Summarize(r.cfg.Synth.Voice, r.cfg.Synth.Language, caps), busClient, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start synthesiser registry: %w", err)
	}
	defer reg.Close()

	service := gateway.NewService(ctx, r.cfg.Synth, busClient, synthesiser, store, r.logger)
	if err := service.Start(); err != nil {
		return fmt.Errorf("failed to start gateway service: %w", err)
	}
	defer service.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("synth_mode", r.cfg.Synth.Mode),
		slog.String("node_id", r.cfg.Node.ID))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildSynthesiser(caps audio.Capabilities) (synth.Synthesiser, error) {
	switch r.cfg.Synth.Mode {
	case "exec":
		return synth.NewExec(r.cfg.Synth.Command, caps)
	default:
		return synth.NewMock(caps), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

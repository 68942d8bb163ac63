// Command scoutd serves the scoutcore design API over HTTP. Storage, blob,
// and catalog backends are selected through SCOUTCORE_* environment
// variables; see internal/core/storage.go and internal/blob/factory.go.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	schema "scoutcore/docs/schema"
	"scoutcore/docs/schema/openapi"
	"scoutcore/internal/adapters/designs"
	"scoutcore/internal/blob"
	"scoutcore/internal/catalog"
	"scoutcore/internal/core"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type config struct {
	addr            string
	shutdownTimeout time.Duration
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scoutd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cfg config
	fs.StringVar(&cfg.addr, "addr", envOr("SCOUTCORE_HTTP_ADDR", ":8080"), "listen address")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, stdout); err != nil {
		fmt.Fprintf(stderr, "scoutd: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config, stdout io.Writer) error {
	logger := slog.New(slog.NewJSONHandler(stdout, nil))

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(store, logger)

	blobStore, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	cat, err := catalog.FromEnv()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	version, err := schema.APIVersion()
	if err != nil {
		// Handler falls back to "dev".
		logger.Warn("api contract version unavailable", "error", err)
	}

	prom := core.NewPrometheusMetricsRecorder()
	vars := core.NewExpvarMetricsRecorder("")

	service := core.NewService(store,
		core.WithLogger(logger),
		core.WithAuditRecorder(slogAudit{log: logger}),
		core.WithMetricsRecorder(fanoutMetrics{prom, vars}),
	)

	worker := designs.NewWorker(service, blobStore, exportAudit{log: logger})
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			logger.Error("export worker stop", "error", err)
		}
	}()

	handler := designs.NewHandler(service, cat)
	handler.Exports = worker
	handler.Version = version

	mux := newMux(handler, prom)

	listener, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.addr, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()

	logger.Info("scoutd listening",
		"addr", listener.Addr().String(),
		"blob_driver", string(blobStore.Driver()),
		"version", version,
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

// newMux mounts the design API next to the operational endpoints: the
// embedded contract, Prometheus metrics, and expvar counters.
func newMux(api http.Handler, metrics *core.PrometheusMetricsRecorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/", api)
	mux.HandleFunc("/api/v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Spec())
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func closeStore(store core.PersistentStore, logger *slog.Logger) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}
}

// fanoutMetrics feeds every recorder; scoutd runs the Prometheus and expvar
// recorders side by side.
type fanoutMetrics []core.MetricsRecorder

func (f fanoutMetrics) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, recorder := range f {
		recorder.Observe(ctx, operation, success, duration)
	}
}

// slogAudit writes service audit entries to the structured log.
type slogAudit struct{ log *slog.Logger }

func (a slogAudit) Record(_ context.Context, entry core.AuditEntry) {
	a.log.Info("audit",
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
		"status", string(entry.Status),
		"error", entry.Error,
		"duration_ms", float64(entry.Duration)/float64(time.Millisecond),
	)
}

// exportAudit writes export lifecycle entries to the structured log.
type exportAudit struct{ log *slog.Logger }

func (a exportAudit) Record(_ context.Context, entry designs.AuditEntry) {
	a.log.Info("export_audit",
		"action", entry.Action,
		"design_id", entry.DesignID,
		"status", string(entry.Status),
		"actor", entry.Actor,
	)
}

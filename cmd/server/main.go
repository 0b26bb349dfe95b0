// Command shmhash-server owns the in-memory hash table and exposes it to
// client processes over the shared-memory region defined in internal/layout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/shadowcpy/hashtable/internal/config"
	"github.com/shadowcpy/hashtable/internal/hashtable"
	"github.com/shadowcpy/hashtable/internal/health"
	"github.com/shadowcpy/hashtable/internal/logging"
	"github.com/shadowcpy/hashtable/internal/metricsx"
	"github.com/shadowcpy/hashtable/internal/reqring"
	"github.com/shadowcpy/hashtable/internal/respring"
	"github.com/shadowcpy/hashtable/internal/shm"
	"github.com/shadowcpy/hashtable/internal/worker"
)

func main() {
	var (
		tableSize  = flag.Int("s", 1024, "hash table size (bucket count)")
		numWorkers = flag.Int("t", 4, "number of worker threads")
		healthAddr = flag.String("health-addr", ":9095", "address for /health and /metrics")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("server", cfg.LogLevel, cfg.LogFormat)

	if *numWorkers <= 0 {
		*numWorkers = 4
	}

	region, err := shm.Create(cfg.ShmName, *numWorkers)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create shared memory region")
		os.Exit(1)
	}
	logger.Info().
		Str("shm_name", cfg.ShmName).
		Int("table_size", *tableSize).
		Int("workers", *numWorkers).
		Msg("shared memory region created")

	payload := region.Payload()
	table := hashtable.New(*tableSize)
	metrics := metricsx.NewRegistry()
	queue := reqring.Attach(&payload.Request, metrics)
	broadcast := respring.Attach(&payload.Response)

	pool := worker.NewPool(queue, broadcast, table, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx, *numWorkers)

	httpSrv := startHealthServer(*healthAddr, broadcast, queue, metrics, logger)

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received, unlinking shared memory region")

	forceExit := make(chan os.Signal, 1)
	signal.Notify(forceExit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-forceExit
		logger.Warn().Msg("second interrupt received, terminating immediately")
		os.Exit(1)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()

	if err := region.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing shared memory region")
		os.Exit(1)
	}
	logger.Info().Msg("server exiting cleanly")
}

func startHealthServer(addr string, broadcast *respring.Broadcast, queue *reqring.Queue, metrics *metricsx.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		sample := health.Snapshot(r.Context())
		clients := broadcast.ReceiverCount()
		metrics.ClientsJoined.Set(float64(clients))

		writeJSON(w, map[string]any{
			"status":            "healthy",
			"timestamp":         time.Now().UTC().Format(time.RFC3339Nano),
			"clients_joined":    clients,
			"request_ring_depth": queue.Occupancy(),
			"cpu_percent":       sample.CPUPercent,
			"mem_used_mb":       sample.MemUsedMB,
			"mem_total_mb":      sample.MemTotalMB,
		})
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("health/metrics http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health http server error")
		}
	}()

	return srv
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

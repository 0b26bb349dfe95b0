// Command shmhash-client drives a workload against the server's shared
// memory region: it inserts, reads back, and deletes keys, exercising the
// round-trip and insert-read-delete identity laws from §8.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"golang.org/x/time/rate"

	"github.com/shadowcpy/hashtable/internal/config"
	"github.com/shadowcpy/hashtable/internal/logging"
	"github.com/shadowcpy/hashtable/internal/metricsx"
	"github.com/shadowcpy/hashtable/internal/protocol"
	"github.com/shadowcpy/hashtable/internal/reqring"
	"github.com/shadowcpy/hashtable/internal/respring"
	"github.com/shadowcpy/hashtable/internal/session"
	"github.com/shadowcpy/hashtable/internal/shm"
)

func main() {
	var (
		seed        = flag.Uint64("seed", 0, "PRNG seed (0 picks a random seed)")
		ratePerS    = flag.Float64("rate", 0, "max requests per second (0 = unlimited)")
		metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics on (empty disables it)")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: shmhash-client [--seed N] [--rate N] <outer-iterations> <inner-iterations>")
		os.Exit(1)
	}
	outerIterations, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid outer-iterations: %v\n", err)
		os.Exit(1)
	}
	innerIterations, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid inner-iterations: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("client", cfg.LogLevel, cfg.LogFormat)

	region, err := shm.Join(cfg.ShmName)
	if err != nil {
		logger.Error().Err(err).Msg("failed to attach to shared memory region")
		os.Exit(1)
	}
	defer region.Close()

	metrics := metricsx.NewRegistry()

	payload := region.Payload()
	queue := reqring.Attach(&payload.Request, metrics)
	broadcast := respring.Attach(&payload.Response)

	client := session.Join(broadcast, logger, metrics)
	logger.Info().Uint32("client_id", client.ClientID()).Msg("joined broadcast ring")

	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			logger.Info().Str("addr", *metricsAddr).Msg("metrics http server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics http server error")
			}
		}()
	}

	var limiter *rate.Limiter
	if *ratePerS > 0 {
		limiter = rate.NewLimiter(rate.Limit(*ratePerS), 1)
	}

	seedVal := *seed
	if seedVal == 0 {
		seedVal = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seedVal, seedVal>>32|1))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		forceExit := make(chan os.Signal, 1)
		signal.Notify(forceExit, syscall.SIGINT, syscall.SIGTERM)
		<-forceExit
		logger.Warn().Msg("second interrupt received, terminating immediately")
		os.Exit(1)
	}()

	var nextRequestID uint32
	run := &runner{
		client:  client,
		queue:   queue,
		limiter: limiter,
		rng:     rng,
		reqID:   &nextRequestID,
	}

	completed := 0
outer:
	for outer := 0; outerIterations == 0 || outer < outerIterations; outer++ {
		for i := 0; i < innerIterations; i++ {
			select {
			case <-ctx.Done():
				break outer
			default:
			}
			if err := run.roundTrip(ctx); err != nil {
				logger.Error().Err(err).Msg("round trip failed")
				break outer
			}
			completed++
		}
	}

	logger.Info().Int("completed", completed).Msg("workload finished, leaving broadcast ring")
	client.Close()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
}

type runner struct {
	client  *session.Client
	queue   *reqring.Queue
	limiter *rate.Limiter
	rng     *rand.Rand
	reqID   *uint32
}

// roundTrip performs the insert-read-delete identity sequence from §8
// scenario 1, sending each request and blocking on the client's inbox for
// the matching response.
func (r *runner) roundTrip(ctx context.Context) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	keyStr := fmt.Sprintf("key-%d", r.rng.Uint64()%1_000_000)
	key, err := protocol.NewKey(keyStr)
	if err != nil {
		return err
	}
	value, err := protocol.NewValue([]byte(strconv.FormatUint(r.rng.Uint64(), 10)))
	if err != nil {
		return err
	}

	if err := r.send(protocol.RequestInsert, key, value, protocol.ResponseInserted); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := r.send(protocol.RequestReadBucket, key, protocol.Value{}, protocol.ResponseBucketContent); err != nil {
		return fmt.Errorf("read bucket: %w", err)
	}
	if err := r.send(protocol.RequestDelete, key, protocol.Value{}, protocol.ResponseDeleted); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (r *runner) send(kind protocol.RequestKind, key protocol.Key, value protocol.Value, want protocol.ResponseKind) error {
	id := atomic.AddUint32(r.reqID, 1)
	r.queue.Enqueue(protocol.RequestData{
		ClientID:  r.client.ClientID(),
		RequestID: id,
		Kind:      kind,
		Key:       key,
		Value:     value,
	})

	for resp := range r.client.Inbox() {
		if resp.RequestID != id {
			continue
		}
		if resp.Kind != want && resp.Kind != protocol.ResponseOverflow {
			return fmt.Errorf("decode mismatch: expected %s, got %s", want, resp.Kind)
		}
		return nil
	}
	return fmt.Errorf("inbox closed before response %d arrived", id)
}

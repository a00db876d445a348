// Command pagewalk walks a paged HTTP endpoint or Redis list and prints every
// element as one JSON line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/go-paginator/pkg/logging"
	"github.com/Sternrassler/go-paginator/pkg/metrics"
	"github.com/Sternrassler/go-paginator/pkg/paginator"
	"github.com/Sternrassler/go-paginator/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// options holds the command line configuration. Defaults come from the environment.
type options struct {
	baseURL   string
	endpoint  string
	totalMode string
	userAgent string

	redisAddr string
	redisKey  string

	pageSize    int
	maxFailures int
	retryDelay  time.Duration

	metricsAddr string
	logLevel    string
	pretty      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the pagewalk command.
func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "pagewalk",
		Short:         "Fetch every page of a paged API and print the elements as JSON lines",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "base-url", getEnv("PAGEWALK_BASE_URL", ""), "API base URL")
	flags.StringVar(&opts.endpoint, "endpoint", getEnv("PAGEWALK_ENDPOINT", "/"), "collection path")
	flags.StringVar(&opts.totalMode, "total-mode", getEnv("PAGEWALK_TOTAL_MODE", string(source.TotalFromHeader)), "where the total comes from: header, pages or envelope")
	flags.StringVar(&opts.userAgent, "user-agent", getEnv("USER_AGENT", "pagewalk/0.1.0"), "User-Agent header")
	flags.StringVar(&opts.redisAddr, "redis-addr", getEnv("REDIS_URL", "localhost:6379"), "Redis address for --redis-key")
	flags.StringVar(&opts.redisKey, "redis-key", getEnv("PAGEWALK_REDIS_KEY", ""), "walk a Redis list instead of an HTTP endpoint")
	flags.IntVar(&opts.pageSize, "page-size", getEnvInt("PAGEWALK_PAGE_SIZE", 50), "elements per page")
	flags.IntVar(&opts.maxFailures, "max-failures", getEnvInt("PAGEWALK_MAX_FAILURES", 3), "consecutive failed fetches before giving up")
	flags.DurationVar(&opts.retryDelay, "retry-delay", time.Second, "wait before re-requesting a failed page")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", getEnv("METRICS_ADDR", ""), "serve /metrics and /health on this address while walking")
	flags.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "debug, info, warn or error")
	flags.BoolVar(&opts.pretty, "pretty", false, "human readable logs")

	return cmd
}

// run wires logging, the page source and the optional metrics server around walk.
func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{Level: level, Pretty: opts.pretty, Output: cmd.ErrOrStderr()})
	logger := logging.NewLogger("pagewalk")

	src, closeSource, err := newSource(ctx, opts)
	if err != nil {
		return err
	}
	defer closeSource()

	cfg := walkConfig{
		Name:        "pagewalk",
		PageSize:    opts.pageSize,
		MaxFailures: opts.maxFailures,
		RetryDelay:  opts.retryDelay,
	}

	walkCtx, cancelWalk := context.WithCancel(ctx)
	defer cancelWalk()
	g, gctx := errgroup.WithContext(walkCtx)

	var stats walkStats
	g.Go(func() error {
		// Stop the metrics server once the walk is over.
		defer cancelWalk()
		var walkErr error
		stats, walkErr = walk(gctx, src, cfg, cmd.OutOrStdout())
		return walkErr
	})

	if opts.metricsAddr != "" {
		server := newMetricsServer(opts.metricsAddr)
		g.Go(func() error {
			logger.Info().Str("addr", opts.metricsAddr).Msg("Serving metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Walk aborted")
		return err
	}

	logger.Info().
		Int("pages", stats.Pages).
		Int("elements", stats.Elements).
		Int("failures", stats.Failures).
		Dur("duration", stats.Duration).
		Msg("Walk complete")
	return nil
}

// newSource builds the page source selected by opts.
func newSource(ctx context.Context, opts options) (paginator.Source[json.RawMessage], func(), error) {
	if opts.redisKey != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.redisAddr, err)
		}
		log.Debug().Str("addr", opts.redisAddr).Msg("Connected to Redis")
		return source.NewRedisListSource[json.RawMessage](redisClient, opts.redisKey), func() { redisClient.Close() }, nil
	}

	if opts.baseURL == "" {
		return nil, nil, fmt.Errorf("either --base-url or --redis-key is required")
	}

	cfg := source.DefaultHTTPConfig(opts.baseURL, opts.endpoint)
	cfg.UserAgent = opts.userAgent
	cfg.TotalMode = source.TotalMode(opts.totalMode)
	src, err := source.NewHTTPSource[json.RawMessage](cfg)
	if err != nil {
		return nil, nil, err
	}
	return src, func() {}, nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

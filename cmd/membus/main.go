package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coocood/freecache"
	"github.com/peterbourgon/ff/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-membus/cache"
	"github.com/infigaming-com/go-membus/observability/metrics"
	"github.com/infigaming-com/go-membus/pubsub"
	"github.com/infigaming-com/go-membus/uid"
	"github.com/infigaming-com/go-membus/util"
	"github.com/infigaming-com/go-membus/web"
	"github.com/infigaming-com/go-membus/web/middleware"
)

const eventsTopic = "events"

type options struct {
	configFile       string
	port             int64
	logLevel         string
	otlpEndpoint     string
	otlpGRPCEndpoint string
	redisAddr        string
	dedupeTTL        time.Duration
	environment      string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("membus", flag.ContinueOnError)
	fs.StringVar(&o.configFile, "config", "", "bus config YAML file")
	fs.Int64Var(&o.port, "port", 8080, "HTTP port of the debug surface")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
	fs.StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "OTLP HTTP metrics endpoint")
	fs.StringVar(&o.otlpGRPCEndpoint, "otlp-grpc-endpoint", "", "OTLP gRPC metrics endpoint")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "redis for publish de-duplication; in-process cache if empty")
	fs.DurationVar(&o.dedupeTTL, "dedupe-ttl", 5*time.Minute, "how long de-duplication keys are remembered")
	fs.StringVar(&o.environment, "environment", "development", "deployment environment")
	err := ff.Parse(fs, args, ff.WithEnvVarPrefix("MEMBUS"))
	return o, err
}

func loadConfig(path string) (pubsub.Config, error) {
	if path == "" {
		return pubsub.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pubsub.Config{}, fmt.Errorf("read config: %w", err)
	}
	return pubsub.ParseConfig(data)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	lg, undo, err := util.NewLogger(o.logLevel)
	if err != nil {
		return err
	}
	defer undo()

	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientOpts := []pubsub.Option{
		pubsub.WithConfig(cfg),
		pubsub.WithLogger(util.NewZapLogger(lg)),
	}

	if o.otlpEndpoint != "" || o.otlpGRPCEndpoint != "" {
		exporter, shutdown, err := metrics.NewMetricExporter(
			metrics.WithOTLPEndpoint(o.otlpEndpoint),
			metrics.WithOTLPGRPCEndpoint(o.otlpGRPCEndpoint),
			metrics.WithEnvironment(o.environment),
		)
		if err != nil {
			return err
		}
		defer shutdown()
		hooks, err := metrics.NewBusHooks(exporter.Meter())
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, pubsub.WithHooks(hooks))
	}

	store, closeStore, err := dedupeStore(lg, o.redisAddr)
	if err != nil {
		return err
	}
	defer closeStore()
	clientOpts = append(clientOpts, pubsub.WithDeduplication(store, o.dedupeTTL))

	if o.redisAddr != "" {
		// ids stay unique across processes sharing the dedupe store
		rdb := redis.NewClient(&redis.Options{Addr: o.redisAddr})
		defer func() { _ = rdb.Close() }()
		clientOpts = append(clientOpts, pubsub.WithIDGenerator(uid.NewRedisUID(rdb, "membus")))
	}

	client, err := pubsub.New(context.Background(), clientOpts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			lg.Warn("bus closed with errors", zap.Error(err))
		}
	}()

	topic := pubsub.Topic[json.RawMessage]{Name: eventsTopic}
	sub, err := pubsub.NewSubscriber[json.RawMessage](client,
		pubsub.Subscription[json.RawMessage]{Name: "events-log", Topic: topic},
		pubsub.HandlerFunc[json.RawMessage](func(ctx context.Context, env *pubsub.Envelope[json.RawMessage]) (pubsub.Result, error) {
			lg.Info("event received",
				zap.String("message_id", env.MessageID()),
				zap.Int("attempt", env.Attempt()),
				zap.ByteString("payload", env.Payload()),
			)
			return pubsub.Ack(), nil
		}),
	)
	if err != nil {
		return err
	}
	if err := sub.Start(); err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	debug, err := web.NewDebugHandler(client, web.WithDebugLogger(lg), web.WithPublishTopics(eventsTopic))
	if err != nil {
		return err
	}
	defer debug.Close()

	server := web.NewServer(lg,
		web.WithPort(o.port),
		web.WithCustomHandler(middleware.CorrelationIdMiddleware()),
		web.WithCustomHandler(middleware.LoggingMiddleware(
			middleware.WithLogger(lg),
			middleware.WithExcludePaths([]string{"/", "/healthcheck"}),
		)),
		web.WithRoutes(debug.Register),
	)
	return server.Run(ctx)
}

func dedupeStore(lg *zap.Logger, redisAddr string) (cache.Cache, func(), error) {
	if redisAddr == "" {
		return cache.NewFreeCache(freecache.NewCache(16 * 1024 * 1024)), func() {}, nil
	}
	return cache.NewRedisCache(lg, &cache.RedisCacheConfig{Addr: redisAddr, ConnectTimeout: 5})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/dailygoods/internal/cache"
	healthcheck "github.com/vladislavdragonenkov/dailygoods/internal/health"
	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/cart"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/catalog"
	httpsvc "github.com/vladislavdragonenkov/dailygoods/internal/service/http"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/order"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/outbox"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/user"
	"github.com/vladislavdragonenkov/dailygoods/internal/telemetry"
	"github.com/vladislavdragonenkov/dailygoods/internal/version"
)

const (
	serviceName     = "dailygoods-api"
	shutdownTimeout = 5 * time.Second
)

// Run поднимает API, ops-сервер и outbox-воркер и блокируется до отмены ctx.
// При штатной остановке возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.TracingEnabled,
		ServiceName: serviceName,
		Version:     version.GetVersion(),
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown with error")
		}
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	shopMetrics := metrics.NewShopMetrics()

	productCache, redisClient := initProductCache(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		healthHandler.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", productCache.Ping))
	}

	publishers := initEventPublishers(cfg, logger)
	defer publishers.close()

	var (
		emitter *outbox.Emitter
		worker  *outbox.Worker
	)
	if publishers != nil {
		if publishers.checker != nil {
			healthHandler.RegisterChecker(publishers.broker, publishers.checker)
		}
		emitter = outbox.NewEmitter(deps.outbox, logger.WithField("layer", "outbox"))
		worker = outbox.NewWorker(deps.outbox, publishers.primary,
			outbox.WithLogger(logger.WithFields(log.Fields{"layer": "outbox-worker", "broker": publishers.broker})),
			outbox.WithDLQPublisher(publishers.dlq),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
	}

	catalogOpts := []catalog.Option{
		catalog.WithEmitter(emitter),
		catalog.WithMetrics(shopMetrics),
		catalog.WithLogger(logger.WithField("layer", "catalog")),
	}
	if productCache != nil {
		catalogOpts = append(catalogOpts, catalog.WithCache(productCache))
	}
	catalogSvc := catalog.NewService(deps.products, catalogOpts...)

	router := httpsvc.NewRouter(httpsvc.Services{
		Catalog: catalogSvc,
		Cart:    cart.NewService(deps.carts, catalogSvc, shopMetrics, logger.WithField("layer", "cart")),
		Orders:  order.NewService(deps.orders, deps.users, deps.carts, emitter, shopMetrics, logger.WithField("layer", "order")),
		Users:   user.NewService(deps.users, 0, logger.WithField("layer", "user")),
	}, shopMetrics, logger.WithField("layer", "http"))

	var apiHandler http.Handler = router
	if cfg.TracingEnabled {
		apiHandler = telemetry.Middleware(serviceName, httpsvc.HealthPath)(router)
	}

	apiSrv := &http.Server{
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	opsSrv := &http.Server{
		Handler:           newOpsMux(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen api %s: %w", cfg.HTTPAddr, err)
	}
	opsLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen ops %s: %w", cfg.MetricsAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API сервер слушает %s", apiLis.Addr())
		return serveHTTP(apiSrv, apiLis)
	})
	g.Go(func() error {
		logger.Infof("метрики доступны по адресу %s/metrics", opsLis.Addr())
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", opsLis.Addr(), opsLis.Addr(), opsLis.Addr())
		return serveHTTP(opsSrv, opsLis)
	})
	if worker != nil {
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем HTTP серверы")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func serveHTTP(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// initProductCache подключает Redis-кэш каталога. При недоступности Redis
// сервис работает без кэша.
func initProductCache(ctx context.Context, cfg Config, logger *log.Entry) (*cache.ProductCache, *redis.Client) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client, err := cache.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		logger.WithError(err).Warn("redis is unavailable, continuing without product cache")
		return nil, nil
	}
	logger.WithField("addr", cfg.RedisAddr).Info("product cache enabled")
	return cache.NewProductCache(client, cache.WithTTL(cfg.ProductCacheTTL)), client
}

// newOpsMux собирает служебные эндпоинты: метрики Prometheus и health checks.
func newOpsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http server shutdown with error")
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/restaurant/internal/health"
	"github.com/vladislavdragonenkov/restaurant/internal/metrics"
	"github.com/vladislavdragonenkov/restaurant/internal/service/cart"
	"github.com/vladislavdragonenkov/restaurant/internal/service/catalog"
	"github.com/vladislavdragonenkov/restaurant/internal/service/checkout"
	"github.com/vladislavdragonenkov/restaurant/internal/service/httpapi"
	"github.com/vladislavdragonenkov/restaurant/internal/service/idempotency"
	"github.com/vladislavdragonenkov/restaurant/internal/service/outbox"
	"github.com/vladislavdragonenkov/restaurant/internal/service/payment"
	"github.com/vladislavdragonenkov/restaurant/internal/service/reservation"
	"github.com/vladislavdragonenkov/restaurant/internal/service/workflow"
	"github.com/vladislavdragonenkov/restaurant/internal/telemetry"
	"github.com/vladislavdragonenkov/restaurant/internal/version"
)

const shutdownTimeout = 5 * time.Second

// services собранный слой бизнес-логики.
type services struct {
	menu         *catalog.Menu
	carts        *cart.Service
	checkouts    *checkout.Service
	reservations *reservation.Service
}

// Run поднимает HTTP API, gRPC health, метрики и фоновые воркеры и
// блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    version.ServiceName,
		ServiceVersion: version.GetVersion(),
		SampleRatio:    cfg.TracingSampleRatio,
	}, logger.WithField("layer", "telemetry"))
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing, logger)

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	svc, err := buildServices(cfg, deps, metrics.NewWorkflowMetrics(), logger)
	if err != nil {
		return err
	}

	sink := newEventSink(cfg.kafkaBrokers(), cfg.KafkaClientID, logger.WithField("layer", "kafka"))
	defer sink.Close(logger)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := startWorkers(workersCtx, cfg, deps, svc, sink, logger)
	defer shutdownWorkers(stopWorkers, workersDone, logger)

	healthHandler := healthcheck.NewHandler(version.ServiceName, version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	if deps.cartChecker != nil {
		healthHandler.RegisterOptional("carts", deps.cartChecker)
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	api := httpapi.NewServer(httpapi.Deps{
		Catalog:      svc.menu,
		Carts:        svc.carts,
		Checkouts:    svc.checkouts,
		Reservations: svc.reservations,
		Idempotency:  deps.idempotencyRepo,
		Logger:       logger.WithField("layer", "http"),
	})
	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http api: %w", err)
	}

	grpcServer, healthServer := newGRPCServer(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api: %w", err)
		}
	}()
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	logger.WithField("version", version.String()).Info("restaurant service started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}

	healthServer.Shutdown()
	stopGRPC(grpcServer, logger)
	shutdownHTTP(apiSrv, logger)
	return runErr
}

func buildServices(cfg Config, deps *runtimeDependencies, m *metrics.WorkflowMetrics, logger *log.Entry) (*services, error) {
	menu, err := loadMenu(cfg.MenuFile)
	if err != nil {
		return nil, err
	}

	fee, err := cfg.shippingFee()
	if err != nil {
		return nil, err
	}
	failure, err := payment.ParseFailureMode(cfg.PlacementFailure)
	if err != nil {
		return nil, err
	}
	location, err := reservation.LoadLocation(cfg.ReservationTimezone)
	if err != nil {
		return nil, err
	}

	journal := workflow.NewJournal(deps.outboxRepo, deps.timelineRepo, m, logger.WithField("layer", "journal"))
	placement := payment.NewSimulatedService(cfg.PlacementDelay, failure, logger.WithField("layer", "placement"))

	return &services{
		menu: menu,
		carts: cart.NewService(menu, deps.cartRepo,
			cart.WithLogger(logger.WithField("layer", "cart")),
			cart.WithMetrics(m),
		),
		checkouts: checkout.NewService(checkout.Config{
			City:        cfg.City,
			ShippingFee: fee,
			Retry:       checkout.DefaultRetryConfig(),
		}, placement,
			checkout.WithLogger(logger.WithField("layer", "checkout")),
			checkout.WithMetrics(m),
			checkout.WithOrderRepository(deps.orderRepo),
			checkout.WithJournal(journal),
		),
		reservations: reservation.NewService(reservation.Config{
			Destination: cfg.ReservationDestination,
			Location:    location,
		},
			reservation.WithLogger(logger.WithField("layer", "reservation")),
			reservation.WithMetrics(m),
			reservation.WithRepository(deps.reservationRepo),
			reservation.WithJournal(journal),
		),
	}, nil
}

func loadMenu(path string) (*catalog.Menu, error) {
	if path == "" {
		return catalog.DefaultMenu(), nil
	}
	menu, err := catalog.LoadYAML(path)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	return menu, nil
}

// startWorkers запускает outbox, очистку идемпотентности и sweeper.
// Возвращаемый канал закрывается после остановки всех воркеров.
func startWorkers(ctx context.Context, cfg Config, deps *runtimeDependencies, svc *services, sink *eventSink, logger *log.Entry) <-chan struct{} {
	outboxOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if sink.dlq != nil {
		outboxOpts = append(outboxOpts, outbox.WithDLQPublisher(sink.dlq))
	}
	outboxWorker := outbox.NewWorker(deps.outboxRepo, sink.publisher, outboxOpts...)

	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	sweeper := newSweeper(cfg.SweepInterval, cfg.WorkflowTTL, logger.WithField("layer", "sweeper"),
		sweepTarget{kind: "checkout", sweep: svc.checkouts.Sweep},
		sweepTarget{kind: "reservation", sweep: svc.reservations.Sweep},
	)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){outboxWorker.Run, cleanupWorker.Run, sweeper.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// shutdownWorkers останавливает воркеры и ждёт их не дольше shutdownTimeout.
func shutdownWorkers(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("background workers stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("background workers did not stop in time")
	}
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и
// метриками go-grpc-prometheus.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(version.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// stopGRPC пытается остановить сервер штатно, по таймауту — принудительно.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-эндпоинтов.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func flushTracing(shutdown telemetry.ShutdownFunc, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodtruck/internal/config"
	"foodtruck/internal/infra"
	"foodtruck/internal/middleware"
	"foodtruck/internal/repository"
	"foodtruck/internal/router"
	"foodtruck/internal/service"
	"foodtruck/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty console in development, JSON in production
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}
	if err := infra.RunMigrations(sqlDB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	blobs, err := infra.NewS3BlobStore(ctx, infra.BlobStoreConfig{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
		PublicURL:    cfg.S3PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure blob storage")
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		// PDFs are retried by the cron; the API can still serve orders.
		log.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("blob storage not ready")
	}

	// ── Infrastructure ───────────────────────────────────────────────────────
	webpayCB := infra.NewCircuitBreaker(infra.BreakerConfig{
		Name:        "webpay",
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
		Trips:       service.GatewayTrips,
	})
	siiCB := infra.NewCircuitBreaker(infra.BreakerConfig{
		Name:        "sii",
		MaxFailures: 5,
		Cooldown:    60 * time.Second,
	})
	webpayTimeout := time.Duration(cfg.WebpayTimeoutSeconds) * time.Second
	webpayClient := infra.NewWebpayClient(cfg.WebpayBaseURL, cfg.WebpayCommerceCode, cfg.WebpayAPIKey, webpayTimeout)
	siiClient := infra.NewSIIClient(cfg.SIISidecarURL)
	mailer := infra.NewMailer(cfg)
	locker := infra.NewRedisLocker(rdb, "lock:", time.Duration(cfg.GatewayLockTTLSeconds)*time.Second)

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	sucursalRepo := repository.NewSucursalRepository(db)
	catalogoRepo := repository.NewCatalogoRepository(db)
	pedidoRepo := repository.NewPedidoRepository(db)
	boletaRepo := repository.NewBoletaRepository(db)
	webpayRepo := repository.NewWebpayRepository(db)
	cajaRepo := repository.NewCierreCajaRepository(db)
	auditoriaRepo := repository.NewAuditoriaRepository(db)

	// ── Workers ──────────────────────────────────────────────────────────────
	// The processor is both the async boleta job handler and the synchronous
	// PDF generator behind POST /v1/boletas/:boleta_id/generar-pdf.
	dispatcher := worker.NewDispatcher(rdb)
	processor := worker.NewBoletaProcessor(boletaRepo, pedidoRepo, sucursalRepo, siiClient, siiCB, blobs, dispatcher,
		worker.BoletaWorkerConfig{RUTEmisor: cfg.RUTEmisor, NombreComercio: cfg.NombreComercio})

	pool := worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.JobHandler{
		worker.JobBoleta: processor,
		worker.JobEmail:  worker.NewEmailWorker(mailer),
	})
	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Boletas:   boletaRepo,
		Processor: processor,
		CB:        siiCB,
		Broker:    rdb,
	})

	// ── Services ─────────────────────────────────────────────────────────────
	resolver := service.NewSucursalResolver(sucursalRepo, catalogoRepo, pedidoRepo)
	svcs := router.Services{
		Auth:    service.NewAuthService(usuarioRepo, sucursalRepo, cfg),
		Pedidos: service.NewPedidoService(pedidoRepo, catalogoRepo, sucursalRepo, usuarioRepo, boletaRepo),
		Boletas: service.NewBoletaService(boletaRepo, pedidoRepo, dispatcher, processor),
		Webpay: service.NewWebpayService(webpayRepo, pedidoRepo, webpayClient, webpayCB, locker, service.WebpayOptions{
			CallTimeout: webpayTimeout,
			LockWait:    time.Duration(cfg.GatewayLockTTLSeconds) * time.Second,
		}),
		Caja:      service.NewCajaService(cajaRepo, sucursalRepo),
		Auditoria: service.NewAuditoriaService(auditoriaRepo, resolver),
	}

	limiters := router.Limiters{
		API:   middleware.NewAPIRateLimiter(1000, time.Minute),
		Login: middleware.NewLoginRateLimiter(),
	}
	limiters.API.StartPurge(ctx, 5*time.Minute)
	limiters.Login.StartPurge(ctx, 5*time.Minute)

	r := router.New(cfg, svcs, router.Deps{
		DB:       db,
		Redis:    rdb,
		Breakers: []*infra.CircuitBreaker{webpayCB, siiCB},
	}, limiters)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: webpayTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("foodtruck backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// stop workers after in-flight requests have finished enqueueing
	cancel()
	pool.Wait()
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("postgres close")
	}
	log.Info().Msg("server exited")
}

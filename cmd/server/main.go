// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"visitid/internal/deploy"
	"visitid/internal/geofence"
	geofencehandler "visitid/internal/geofence/handler"
	jwttoken "visitid/internal/jwt_token"
	"visitid/internal/platform/config"
	"visitid/internal/platform/httpserver"
	"visitid/internal/platform/logger"
	"visitid/internal/platform/metrics"
	platformredis "visitid/internal/platform/redis"
	"visitid/internal/registry/events"
	"visitid/internal/registry/gateway"
	registryhandler "visitid/internal/registry/handler"
	"visitid/internal/registry/ledger"
	"visitid/internal/registry/models"
	httptransport "visitid/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	descriptor, descriptorFound, err := deploy.Load(cfg.DeployDescriptorPath)
	if err != nil {
		log.Error("failed to load deploy descriptor", "path", cfg.DeployDescriptorPath, "error", err.Error())
		os.Exit(1)
	}
	if !descriptorFound {
		log.Warn("no deploy descriptor found, running without provenance", "path", cfg.DeployDescriptorPath)
	}

	zones, err := geofence.LoadRegistry(cfg.ZonesFile)
	if err != nil {
		log.Error("failed to load zone registry", "error", err.Error())
		os.Exit(1)
	}

	// Confirmation receipts flow from the ledger to the events worker. The
	// observer never blocks a registration: if the inbox is full the receipt is
	// dropped from the event stream, the caller already has it.
	receipts := make(chan models.Receipt, 64)
	observe := func(r models.Receipt) {
		select {
		case receipts <- r:
		default:
			log.Warn("receipt inbox full, dropping event", "record_id", int64(r.ID))
		}
	}

	var led ledger.Ledger
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()

		pg := ledger.NewPostgres(db, ledger.PostgresWithObserver(observe))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.Error("failed to ensure ledger schema", "error", err.Error())
			os.Exit(1)
		}
		cancel()
		led = pg
		log.Info("using postgres ledger")
	} else {
		led = ledger.NewInMemory(ledger.WithObserver(observe))
		log.Info("using in-memory ledger")
	}

	var sink events.Sink
	kafkaPub, err := events.NewKafkaPublisher(cfg.Kafka)
	if err != nil {
		log.Error("failed to connect kafka publisher", "error", err.Error())
		os.Exit(1)
	}
	if kafkaPub != nil {
		defer kafkaPub.Close()
		sink = kafkaPub
		log.Info("publishing registration events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		sink = events.NewMemoryStore()
	}
	worker := events.NewWorker(sink, receipts, log)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	identities := make([]models.OwnerAddress, 0, len(cfg.Identities))
	for _, raw := range cfg.Identities {
		identities = append(identities, models.NormalizeOwner(raw))
	}
	provider := gateway.NewKeystoreProvider([]byte(cfg.JWTSigningKey), identities...)

	gw := gateway.New(provider, led, zones,
		gateway.WithCache(redisClient),
		gateway.WithLogger(log),
		gateway.WithMetrics(m),
	)

	monitor := geofence.NewMonitor(zones,
		geofence.WithAlerter(geofence.SlogAlerter{Logger: log}),
		geofence.WithStatsSource(gw),
		geofence.WithLogger(log),
		geofence.WithMetrics(m),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "visitid", "visitid-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:          log,
		Registry:        registryhandler.New(gw, log, m, validator),
		Geofence:        geofencehandler.New(monitor, zones, log, m),
		JWTService:      jwtService,
		Descriptor:      descriptor,
		DescriptorFound: descriptorFound,
		Redis:           redisClient,
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting visitid server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}

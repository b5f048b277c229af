package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/seat-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/seat-reservations/internal/adapters/mongo"
	"github.com/robertarktes/seat-reservations/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/seat-reservations/internal/adapters/redis"
	"github.com/robertarktes/seat-reservations/internal/config"
	"github.com/robertarktes/seat-reservations/internal/holds"
	httphandler "github.com/robertarktes/seat-reservations/internal/http"
	"github.com/robertarktes/seat-reservations/internal/idempotency"
	"github.com/robertarktes/seat-reservations/internal/observability"
	"github.com/robertarktes/seat-reservations/internal/outbox"
	"github.com/robertarktes/seat-reservations/internal/rateLimit"
	"github.com/robertarktes/seat-reservations/internal/selector"
	"github.com/robertarktes/seat-reservations/internal/ticket"
	"github.com/robertarktes/seat-reservations/internal/venue"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	outboxSize      = 1024
	idempotencyTTL  = time.Hour
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)

	grid, err := venue.New(venue.Layout{
		Rows:           cfg.VenueRows,
		SeatsPerRow:    cfg.VenueSeatsPerRow,
		CenterRowSeats: cfg.VenueCenterRowSeats,
	})
	if err != nil {
		log.Fatalf("invalid venue: %v", err)
	}
	sel := selector.New(grid, selector.Rankings[cfg.SeatRanking])

	checks := map[string]httphandler.ReadinessCheck{}

	var redisClient *redisclient.Client
	if cfg.RedisAddr != "" {
		redisClient = redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var store holds.Store
	switch cfg.HoldStore {
	case config.StoreMongo:
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }

		mongoStore := mongoadapter.NewHoldStore(mongoClient.Database(cfg.MongoDB))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create mongo indexes: %v", err)
		}
		store = mongoStore
	case config.StoreCRDB:
		pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		checks["crdb"] = pool.Ping

		crdbStore := crdb.NewHoldStore(pool)
		if err := crdbStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to create crdb schema: %v", err)
		}
		store = crdbStore
	case config.StoreRedis:
		store = redisadapter.NewHoldStore(redisClient)
	default:
		store = holds.NewMemoryStore()
	}
	registry := holds.NewRegistry(store, cfg.HoldTTL)

	var events outbox.Sink = outbox.Discard
	var publisher *outbox.Publisher
	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer conn.Close()
		broker, err := rabbit.NewPublisher(conn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		defer broker.Close()

		box := outbox.New(outboxSize)
		events = box
		publisher = outbox.NewPublisher(box, broker, logger.WithField("component", "outbox"))
	}

	svc := ticket.NewService(grid, sel, registry, ticket.WithEvents(events), ticket.WithLogger(logger))
	if cfg.HoldStore != config.StoreMemory {
		restored, err := svc.Rehydrate(ctx)
		if err != nil {
			log.Fatalf("failed to restore holds: %v", err)
		}
		logger.WithField("holds", restored).Info("holds restored")
	}
	reconciler := holds.NewReconciler(registry, grid, cfg.SweepInterval, events, logger)

	var (
		idemp *idempotency.Idempotency
		rl    *rateLimit.RateLimiter
	)
	if redisClient != nil {
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), idempotencyTTL)
		rl = rateLimit.NewRateLimiter(redisClient)
	}

	handlers := httphandler.NewHandlers(svc, checks)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httphandler.SetupRouter(handlers, logger, rl, idemp),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		return
	}
	logger.Info("Server exiting")
}

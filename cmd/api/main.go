package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/rail-booking/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/rail-booking/internal/adapters/mongo"
	"github.com/robertarktes/rail-booking/internal/adapters/railapi"
	redisadapter "github.com/robertarktes/rail-booking/internal/adapters/redis"
	"github.com/robertarktes/rail-booking/internal/catalog"
	"github.com/robertarktes/rail-booking/internal/config"
	"github.com/robertarktes/rail-booking/internal/draftstore"
	httphandler "github.com/robertarktes/rail-booking/internal/http"
	"github.com/robertarktes/rail-booking/internal/idempotency"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/robertarktes/rail-booking/internal/rateLimit"
	"github.com/robertarktes/rail-booking/internal/submit"
	"github.com/robertarktes/rail-booking/internal/workflow"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	sessionIdle   = 2 * time.Hour
	sweepInterval = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.BookingAPIURL == "" {
		log.Fatal("BOOKING_API_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg, "rail-booking-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	checks := map[string]httphandler.Check{}

	var kv draftstore.KV = draftstore.NewMemoryKV()
	var idemp *idempotency.Idempotency
	var rl *rateLimit.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		redisCache := redisadapter.NewCache(redisClient)
		kv = redisCache
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), 24*time.Hour)
		rl = rateLimit.NewRateLimiter(redisCache)
		checks["redis"] = redisCache.Ping
	} else {
		logger.Warn("REDIS_ADDR not set, search criteria are kept in memory")
	}
	store := draftstore.New(kv, cfg.DraftTTL)

	observers := workflow.Observers{workflow.MetricsObserver{}}
	var mongoDB *mongo.Database
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		mongoDB = mongoClient.Database("rail")
		observers = append(observers, mongoadapter.NewAuditLogger(mongoDB, logger))
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}

	var searcher catalog.Searcher
	switch {
	case cfg.TrainSearchURL != "":
		searcher = railapi.NewSearchClient(cfg.TrainSearchURL, nil)
	case mongoDB != nil:
		inventory := mongoadapter.NewTrainInventory(mongoDB, logger)
		if err := inventory.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create train indexes: %v", err)
		}
		searcher = inventory
		logger.Info("serving train searches from the local inventory")
	default:
		log.Fatal("either TRAIN_SEARCH_URL or MONGO_URI is required")
	}

	var submitOpts []submit.Option
	var ledger httphandler.Submissions
	if cfg.CRDBDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		repo := crdb.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to prepare schema: %v", err)
		}
		submitOpts = append(submitOpts, submit.WithRecorder(repo))
		ledger = repo
		checks["crdb"] = repo.Ping
	}
	submitter := submit.New(railapi.NewBookingClient(cfg.BookingAPIURL, nil), cfg.ExternalCallTimeout, logger, submitOpts...)

	registry := httphandler.NewRegistry(func(ctx context.Context, sid string, start workflow.Step) (*workflow.Controller, error) {
		sessLog := logger.WithField("session", sid)
		return workflow.New(ctx, workflow.Deps{
			Store:     store,
			Catalog:   catalog.New(searcher, cfg.SearchPageSize, cfg.ExternalCallTimeout, sessLog),
			Submitter: submitter,
			Observer:  observers,
			Logger:    sessLog,
		}, workflow.Options{SessionKey: sid, StartStep: start})
	})

	auth, err := httphandler.NewAuthenticator(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("failed to load JWT key: %v", err)
	}
	handlers := httphandler.NewHandlers(registry, idemp, ledger, logger, checks)
	r := httphandler.SetupRouter(handlers, logger, auth, rl)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := registry.Sweep(sessionIdle); n > 0 {
					logger.WithField("dropped", n).Info("dropped idle booking sessions")
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	logger.Info("Server exiting")
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mongoadapter "github.com/robertarktes/rail-booking/internal/adapters/mongo"
	"github.com/robertarktes/rail-booking/internal/config"
	"github.com/robertarktes/rail-booking/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	file := flag.String("file", "trains.json", "JSON array of trains to load into the local inventory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open seed file: %v", err)
	}
	defer f.Close()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer client.Disconnect(context.Background())

	inventory := mongoadapter.NewTrainInventory(client.Database("rail"), logger)
	if err := inventory.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to create train indexes: %v", err)
	}
	n, err := inventory.Seed(ctx, f)
	if err != nil {
		log.Fatalf("failed to seed trains: %v", err)
	}
	logger.WithField("created", n).WithField("file", *file).Info("seed complete")
}

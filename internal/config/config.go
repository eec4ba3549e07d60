package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string
	CRDBDSN             string
	MongoURI            string
	RedisAddr           string
	RabbitURL           string
	JWTPublicKey        string
	OTLPEndpoint        string
	TrainSearchURL      string
	BookingAPIURL       string
	ExternalCallTimeout time.Duration
	DraftTTL            time.Duration
	SearchPageSize      int
	OutboxInterval      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		CRDBDSN:             os.Getenv("CRDB_DSN"),
		MongoURI:            os.Getenv("MONGO_URI"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		JWTPublicKey:        os.Getenv("JWT_PUBLIC_KEY"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TrainSearchURL:      os.Getenv("TRAIN_SEARCH_URL"),
		BookingAPIURL:       os.Getenv("BOOKING_API_URL"),
		ExternalCallTimeout: durationOr("EXTERNAL_CALL_TIMEOUT", 10*time.Second),
		DraftTTL:            durationOr("DRAFT_TTL", 30*24*time.Hour),
		SearchPageSize:      intOr("SEARCH_PAGE_SIZE", 10),
		OutboxInterval:      durationOr("OUTBOX_INTERVAL", 5*time.Second),
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d <= 0 {
		return def
	}
	return d
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

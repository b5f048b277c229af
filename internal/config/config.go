package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreCRDB   = "crdb"
	StoreRedis  = "redis"
)

type Config struct {
	HTTPAddr string

	HoldTTL       time.Duration
	SweepInterval time.Duration

	VenueRows           int
	VenueSeatsPerRow    int
	VenueCenterRowSeats int
	SeatRanking         string

	HoldStore string
	CRDBDSN   string
	MongoURI  string
	MongoDB   string
	RedisAddr string
	RabbitURL string

	OTLPEndpoint string
	LogLevel     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		SeatRanking:  getenv("SEAT_RANKING", "comprehensive"),
		HoldStore:    getenv("HOLD_STORE", StoreMemory),
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getenv("MONGO_DB", "seats"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.HoldTTL, err = duration("HOLD_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = duration("SWEEP_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.VenueRows, err = integer("VENUE_ROWS", 10); err != nil {
		return nil, err
	}
	if cfg.VenueSeatsPerRow, err = integer("VENUE_SEATS_PER_ROW", 20); err != nil {
		return nil, err
	}
	if cfg.VenueCenterRowSeats, err = integer("VENUE_CENTER_ROW_SEATS", 10); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SeatRanking {
	case "row", "comprehensive":
	default:
		return errors.Newf("config: unknown SEAT_RANKING %q", c.SeatRanking)
	}

	switch c.HoldStore {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: HOLD_STORE=mongo requires MONGO_URI")
		}
	case StoreCRDB:
		if c.CRDBDSN == "" {
			return errors.New("config: HOLD_STORE=crdb requires CRDB_DSN")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: HOLD_STORE=redis requires REDIS_ADDR")
		}
	default:
		return errors.Newf("config: unknown HOLD_STORE %q", c.HoldStore)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %s", key)
	}
	if d <= 0 {
		return 0, errors.Newf("config: %s must be positive, got %s", key, d)
	}
	return d, nil
}

func integer(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %s", key)
	}
	return n, nil
}

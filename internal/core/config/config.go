package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	GroupID string
}

type SearchEventsCfg struct {
	Enabled   bool
	Topic     string
	Brokers   []string
	QueueSize int
}

type DBCfg struct {
	Driver                 string // "postgres" or "sqlite"
	DSN                    string
	File                   string
	MaxConns               int
	User                   string
	Pass                   string
	Name                   string
	InstanceConnectionName string
}

type Config struct {
	Addr              string
	LogLevel          string
	DB                DBCfg
	CacheDriver       string // "memory" or "redis"
	RedisAddr         string
	CacheTTL          time.Duration
	CacheSize         int
	CacheOpTimeout    time.Duration
	GoogleAPIKey      string
	DistanceMatrixURL string
	DistanceBatchSize int
	DistanceWorkers   int
	NearbyLimit       int
	ApplicantLimit    int
	H3Res             int
	H3PrefilterK      int
	CORSOrigins       []string
	RateLimitRPS      float64
	RateLimitBurst    int
	OTLPEndpoint      string
	Invalidation      InvalidationCfg
	SearchEvents      SearchEventsCfg
}

// LoadDotEnv reads a .env file for local development. Variables already set
// in the environment win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func FromEnv() Config {
	res := getint("H3_RES", 8)
	if res < 0 || res > 15 {
		res = 8
	}

	batch := getint("DISTANCE_BATCH_SIZE", 25)
	if batch <= 0 || batch > 25 {
		// distance matrix free tier caps destinations per request at 25
		batch = 25
	}

	brokers := splitCSV(getenv("KAFKA_BROKERS", "localhost:9092"))

	return Config{
		Addr:     getenv("ADDR", ":"+getenv("PORT", "8080")),
		LogLevel: getenv("LOG_LEVEL", "info"),
		DB: DBCfg{
			Driver:                 strings.ToLower(getenv("DB_DRIVER", "postgres")),
			DSN:                    getenv("DB_DSN", ""),
			File:                   getenv("DB_FILE", "facilities.db"),
			MaxConns:               getint("DB_MAX_CONNS", 10),
			User:                   getenv("DB_USER", ""),
			Pass:                   getenv("DB_PASS", ""),
			Name:                   getenv("DB_NAME", ""),
			InstanceConnectionName: getenv("INSTANCE_CONNECTION_NAME", ""),
		},
		CacheDriver:       strings.ToLower(getenv("CACHE_DRIVER", "memory")),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:          getduration("CACHE_TTL", time.Hour),
		CacheSize:         getint("CACHE_SIZE", 4096),
		CacheOpTimeout:    getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		GoogleAPIKey:      getenv("GOOGLE_API_KEY", ""),
		DistanceMatrixURL: getenv("DISTANCE_MATRIX_URL", "https://maps.googleapis.com/maps/api/distancematrix/json"),
		DistanceBatchSize: batch,
		DistanceWorkers:   getint("DISTANCE_WORKERS", 5),
		NearbyLimit:       getint("NEARBY_LIMIT", 5),
		ApplicantLimit:    getint("APPLICANT_LIMIT", 30),
		H3Res:             res,
		H3PrefilterK:      getint("H3_PREFILTER_K", 0),
		CORSOrigins:       splitCSV(getenv("CORS_ORIGINS", "*")),
		RateLimitRPS:      getfloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:    getint("RATE_LIMIT_BURST", 20),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_INVALIDATION_TOPIC", "permit-invalidation"),
			Brokers: brokers,
			GroupID: getenv("KAFKA_GROUP_ID", "facility-cache-invalidator"),
		},
		SearchEvents: SearchEventsCfg{
			Enabled:   getbool("SEARCH_EVENTS_ENABLED", false),
			Topic:     getenv("KAFKA_SEARCH_EVENTS_TOPIC", "search-events"),
			Brokers:   brokers,
			QueueSize: getint("SEARCH_EVENTS_QUEUE", 1024),
		},
	}
}

// PostgresDSN returns DB_DSN when set, otherwise a Cloud SQL unix socket DSN
// built from DB_USER, DB_PASS, DB_NAME and INSTANCE_CONNECTION_NAME.
func (c DBCfg) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Name == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Pass),
		Path:   "/" + c.Name,
	}
	if c.InstanceConnectionName != "" {
		q := url.Values{}
		q.Set("host", "/cloudsql/"+c.InstanceConnectionName)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Validate reports configuration that cannot work at all.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.PostgresDSN() == "" {
			return fmt.Errorf("DB_DSN or DB_NAME is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (postgres|sqlite)", c.DB.Driver)
	}
	switch c.CacheDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q (memory|redis)", c.CacheDriver)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

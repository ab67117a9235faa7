package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	EnvDev = "dev"

	// DevJWTSecret is the built-in signing secret. It is refused outside dev.
	DevJWTSecret = "dev-secret-change-me"
)

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set to a non-default value outside dev")

type Config struct {
	Env     string `env:"APP_ENV, default=dev"`
	Port    int    `env:"PORT, default=8080"`
	Storage string `env:"STORAGE, default=postgres"`

	// DBURL wins over the DB_* parts when set.
	DBURL string `env:"DATABASE_URL"`
	DB    DBConfig

	Redis RedisConfig

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES, default=15"`
	JWTRefreshTTLDays   int    `env:"JWT_REFRESH_TTL_DAYS, default=7"`
	BcryptCost          int    `env:"BCRYPT_COST, default=10"`

	MaxPageSize     int           `env:"MAX_PAGE_SIZE, default=100"`
	AccessLogBuffer int           `env:"ACCESS_LOG_BUFFER, default=1024"`
	ListCacheTTL    time.Duration `env:"LIST_CACHE_TTL, default=5s"`

	OTelEnabled  bool    `env:"OTEL_ENABLED, default=false"`
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT, default=localhost:4317"`
	OTelSample   float64 `env:"OTEL_SAMPLE_RATIO, default=1"`

	SeedUsersPath      string   `env:"SEED_USERS_PATH"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	MaxBodyBytes       int64    `env:"MAX_BODY_BYTES, default=1048576"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST, default=127.0.0.1"`
	Port     string `env:"DB_PORT, default=5432"`
	User     string `env:"DB_USER, default=productapi"`
	Password string `env:"DB_PASSWORD, default=productapi"`
	Name     string `env:"DB_NAME, default=productapi"`
	SSLMode  string `env:"DB_SSLMODE, default=disable"`
	MaxConns int32  `env:"DB_MAX_CONNS, default=10"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=10"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.JWTSecret == "" && cfg.Env == EnvDev {
		cfg.JWTSecret = DevJWTSecret
	}
	if cfg.Env != EnvDev && (cfg.JWTSecret == "" || cfg.JWTSecret == DevJWTSecret) {
		return Config{}, fmt.Errorf("load config: env %q: %w", cfg.Env, ErrInsecureJWTSecret)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL(cfg.DB)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if cfg.Storage != StorageMemory {
		cfg.Storage = StoragePostgres
	}

	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}

	return cfg, nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func buildDBURL(db DBConfig) string {
	return "postgres://" + db.User + ":" + db.Password + "@" + db.Host + ":" + db.Port + "/" + db.Name + "?sslmode=" + db.SSLMode
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

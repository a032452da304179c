package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Defaults
const (
	DefaultPort             = 3318
	DefaultDatabaseType     = "sqlite"
	DefaultCacheTTL         = 30 * time.Second
	DefaultCacheSize        = 1024
	DefaultStoreTimeout     = 5 * time.Second
	DefaultSweepInterval    = 15 * time.Second
	DefaultHistoryWindowMax = 30 * 24 * time.Hour
	DefaultLogLevel         = "info"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string

	CacheTTL         time.Duration
	CacheSize        int
	StoreTimeout     time.Duration
	SweepInterval    time.Duration
	HistoryWindowMax time.Duration

	NotifyRules string
	CORSOrigins []string
	LogLevel    string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ParseFlags parses command-line flags, falling back to environment
// variables and then to defaults. Flags always win over the environment.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := pflag.NewFlagSet("quickly-agree", pflag.ContinueOnError)

	// Network and storage
	fs.IntVarP(&cfg.Port, "port", "p", DefaultPort, "Server port (PORT)")
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", "", "Database URL (DATABASE_URL)")
	fs.StringVarP(&cfg.DatabaseType, "database-type", "t", DefaultDatabaseType, "Database type, sqlite or postgres (DATABASE_TYPE)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (ADMIN_KEY_SALT)")

	// Engine tuning
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", DefaultCacheTTL, "Consensus cache TTL (CACHE_TTL)")
	fs.IntVar(&cfg.CacheSize, "cache-size", DefaultCacheSize, "Maximum cached decisions (CACHE_SIZE)")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", DefaultStoreTimeout, "Timeout for a single store operation (STORE_TIMEOUT)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", DefaultSweepInterval, "Due transition sweep interval (SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.HistoryWindowMax, "history-window-max", DefaultHistoryWindowMax, "Largest history window a client may request (HISTORY_WINDOW_MAX)")

	fs.StringVar(&cfg.NotifyRules, "notify-rules", "", "Notification rules YAML file (NOTIFY_RULES)")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origins", nil, "Allowed CORS origins (CORS_ORIGINS, comma separated)")
	fs.StringVar(&cfg.LogLevel, "log-level", DefaultLogLevel, "Log level: debug, info, warn, error (LOG_LEVEL)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	env := envFallback{fs: fs}
	env.int("port", "PORT", &cfg.Port)
	env.string("database-url", "DATABASE_URL", &cfg.DatabaseURL)
	env.string("database-type", "DATABASE_TYPE", &cfg.DatabaseType)
	env.string("admin-salt", "ADMIN_KEY_SALT", &cfg.AdminKeySalt)
	env.duration("cache-ttl", "CACHE_TTL", &cfg.CacheTTL)
	env.int("cache-size", "CACHE_SIZE", &cfg.CacheSize)
	env.duration("store-timeout", "STORE_TIMEOUT", &cfg.StoreTimeout)
	env.duration("sweep-interval", "SWEEP_INTERVAL", &cfg.SweepInterval)
	env.duration("history-window-max", "HISTORY_WINDOW_MAX", &cfg.HistoryWindowMax)
	env.string("notify-rules", "NOTIFY_RULES", &cfg.NotifyRules)
	env.list("cors-origins", "CORS_ORIGINS", &cfg.CORSOrigins)
	env.string("log-level", "LOG_LEVEL", &cfg.LogLevel)
	if env.err != nil {
		return Config{}, env.err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q (use sqlite or postgres)", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.CacheTTL <= 0 {
		return Config{}, errors.New("cache TTL must be positive")
	}
	if cfg.CacheSize <= 0 {
		return Config{}, errors.New("cache size must be positive")
	}
	if cfg.StoreTimeout <= 0 {
		return Config{}, errors.New("store timeout must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, errors.New("sweep interval must be positive")
	}
	if cfg.HistoryWindowMax < time.Hour {
		return Config{}, errors.New("history window max must be at least 1h")
	}

	return cfg, nil
}

// envFallback copies environment values into flags the user did not set.
// The first parse failure is kept in err.
type envFallback struct {
	fs  *pflag.FlagSet
	err error
}

func (e *envFallback) lookup(flag, key string) (string, bool) {
	if e.err != nil || e.fs.Changed(flag) {
		return "", false
	}
	v := os.Getenv(key)
	return v, v != ""
}

func (e *envFallback) string(flag, key string, dst *string) {
	if v, ok := e.lookup(flag, key); ok {
		*dst = v
	}
}

func (e *envFallback) int(flag, key string, dst *int) {
	v, ok := e.lookup(flag, key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s env variable", key)
		return
	}
	*dst = n
}

func (e *envFallback) duration(flag, key string, dst *time.Duration) {
	v, ok := e.lookup(flag, key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s env variable", key)
		return
	}
	*dst = d
}

func (e *envFallback) list(flag, key string, dst *[]string) {
	v, ok := e.lookup(flag, key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

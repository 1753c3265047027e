package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string // mysql | memory
	MySQLDSN    string

	RedisAddr string // empty disables the public cache
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	UseMock          bool
	MockPath         string
	HostawayBase     string
	HostawayAccount  string
	HostawayAPIKey   string
	HostawayRPS      int
	ChannelOverrides map[string]string

	SessionSecret   string
	SessionTTL      time.Duration
	CookieName      string
	AdminUser       string
	AdminPassHash   string
	FrontendOrigins []string

	AdminPageSize  int
	PublicPageSize int

	Workers   int
	BatchSize int
}

func (c Config) IsProd() bool { return c.AppEnv == "prod" || c.AppEnv == "production" }

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the environment win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("ignoring unreadable .env")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "dev"),
		LogLevel:    env("LOG_LEVEL", ""),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		StoreDriver: strings.ToLower(env("STORE_DRIVER", "mysql")),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/flex_reviews?parseTime=true&charset=utf8mb4&loc=UTC"),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 60)) * time.Second,

		UseMock:          env("USE_MOCK", "true") != "false",
		MockPath:         env("HOSTAWAY_MOCK_PATH", "data/hostaway_mock.json"),
		HostawayBase:     env("HOSTAWAY_BASE_URL", "https://api.hostaway.com/v1"),
		HostawayAccount:  env("HOSTAWAY_ACCOUNT_ID", ""),
		HostawayAPIKey:   env("HOSTAWAY_API_KEY", ""),
		HostawayRPS:      atoi("HOSTAWAY_RPS", 5),
		ChannelOverrides: pairs(os.Getenv("HOSTAWAY_CHANNELS")),

		SessionSecret:   env("SESSION_SECRET", ""),
		SessionTTL:      time.Duration(atoi("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		CookieName:      env("COOKIE_NAME", "flex_admin"),
		AdminUser:       env("ADMIN_USER", ""),
		AdminPassHash:   env("ADMIN_PASS_HASH", ""),
		FrontendOrigins: list(env("FRONTEND_ORIGINS", "http://localhost:3000")),

		AdminPageSize:  atoi("ADMIN_PAGE_SIZE", 50),
		PublicPageSize: atoi("PUBLIC_PAGE_SIZE", 12),

		Workers:   atoi("INGEST_WORKERS", 4),
		BatchSize: atoi("INGEST_BATCH_SIZE", 100),
	}
	if !c.UseMock && c.HostawayAPIKey == "" {
		log.Warn().Msg("HOSTAWAY_API_KEY is empty")
	}
	return c
}

// Validate checks the settings the API server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	if c.AdminUser == "" {
		errs = append(errs, errors.New("ADMIN_USER is required"))
	}
	if _, err := bcrypt.Cost([]byte(c.AdminPassHash)); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_PASS_HASH must be a bcrypt hash: %w", err))
	}
	if c.StoreDriver != "mysql" && c.StoreDriver != "memory" {
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want mysql or memory", c.StoreDriver))
	}
	for name, n := range map[string]int{"ADMIN_PAGE_SIZE": c.AdminPageSize, "PUBLIC_PAGE_SIZE": c.PublicPageSize} {
		if n < 1 || n > 200 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 200", name))
		}
	}
	if !c.UseMock && (c.HostawayAccount == "" || c.HostawayAPIKey == "") {
		errs = append(errs, errors.New("HOSTAWAY_ACCOUNT_ID and HOSTAWAY_API_KEY are required when USE_MOCK=false"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pairs parses "2005=direct,2010=vrbo".
func pairs(s string) map[string]string {
	out := map[string]string{}
	for _, p := range list(s) {
		k, v, ok := strings.Cut(p, "=")
		if ok && strings.TrimSpace(k) != "" {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

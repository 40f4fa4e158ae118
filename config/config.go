package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Remote     RemoteConfig     `yaml:"remote"`
	Database   DatabaseConfig   `yaml:"database"`
	Sessions   SessionConfig    `yaml:"sessions"`
	Engine     EngineConfig     `yaml:"engine"`
	Media      MediaConfig      `yaml:"media"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig sizes the pool that deletes dropped images during a save.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RequestIPHeader string   `yaml:"request_ip_header"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// RemoteConfig describes the marketplace API the sessions save to.
type RemoteConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Token                   string        `yaml:"token"`
	HTTPProxy               string        `yaml:"http_proxy"`
	TimeoutSeconds          int           `yaml:"timeout_seconds"`
	Timeout                 time.Duration `yaml:"-"`
	RateLimitPerSec         float64       `yaml:"rate_limit_per_sec"`
	BreakerFailures         uint32        `yaml:"breaker_failures"`
	BreakerOpenSeconds      int           `yaml:"breaker_open_seconds"`
	BreakerOpen             time.Duration `yaml:"-"`
	AvailabilityPayloadKeys []string      `yaml:"availability_payload_keys"`
}

// DatabaseConfig holds the save journal connection. A DSN prefixed with "sqlite:"
// opens a SQLite file instead of Postgres.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// SessionConfig selects where edit sessions live between requests.
type SessionConfig struct {
	Backend    string        `yaml:"backend"`
	TTLMinutes int           `yaml:"ttl_minutes"`
	TTL        time.Duration `yaml:"-"`
	RedisURL   string        `yaml:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

// EngineConfig tunes slot authoring.
type EngineConfig struct {
	DefaultStart           string `yaml:"default_start"`
	DefaultDurationMinutes int    `yaml:"default_duration_minutes"`
	MinDurationMinutes     int    `yaml:"min_duration_minutes"`
	LockOnEdit             bool   `yaml:"lock_on_edit"`
	Timezone               string `yaml:"timezone"`
}

// MediaConfig is where uploaded images wait until a save sends them.
type MediaConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig picks the zap preset and level.
type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Load reads the configuration from the given path. Variables from a .env file in the
// working directory are loaded first and override secrets in the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for tools that run
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyEnv() {
	overrides := map[string]*string{
		"REMOTE_BASE_URL": &cfg.Remote.BaseURL,
		"REMOTE_TOKEN":    &cfg.Remote.Token,
		"DATABASE_DSN":    &cfg.Database.DSN,
		"REDIS_URL":       &cfg.Sessions.RedisURL,
		"LOG_ENV":         &cfg.Log.Env,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 30
	}
	cfg.Remote.Timeout = time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	if cfg.Remote.RateLimitPerSec <= 0 {
		cfg.Remote.RateLimitPerSec = 5
	}
	if cfg.Remote.BreakerFailures == 0 {
		cfg.Remote.BreakerFailures = 5
	}
	if cfg.Remote.BreakerOpenSeconds <= 0 {
		cfg.Remote.BreakerOpenSeconds = 30
	}
	cfg.Remote.BreakerOpen = time.Duration(cfg.Remote.BreakerOpenSeconds) * time.Second
	if len(cfg.Remote.AvailabilityPayloadKeys) == 0 {
		cfg.Remote.AvailabilityPayloadKeys = []string{"availabilities", "availability", "availability_list"}
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "sqlite:availability.db"
	}

	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = "memory"
	}
	if cfg.Sessions.TTLMinutes <= 0 {
		cfg.Sessions.TTLMinutes = 120
	}
	cfg.Sessions.TTL = time.Duration(cfg.Sessions.TTLMinutes) * time.Minute
	if cfg.Sessions.KeyPrefix == "" {
		cfg.Sessions.KeyPrefix = "avail:session:"
	}

	if cfg.Engine.DefaultStart == "" {
		cfg.Engine.DefaultStart = "10:00"
	}
	if cfg.Engine.DefaultDurationMinutes <= 0 {
		cfg.Engine.DefaultDurationMinutes = 60
	}
	if cfg.Engine.MinDurationMinutes < 0 {
		cfg.Engine.MinDurationMinutes = 0
	}
	if cfg.Engine.Timezone == "" {
		cfg.Engine.Timezone = "Local"
	}

	if cfg.Media.Dir == "" {
		cfg.Media.Dir = "./media"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 4")
		cfg.WorkerPool.Size = 4
	}

	if cfg.Log.Env == "" {
		cfg.Log.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Location resolves the engine timezone used to decide what "today" is.
func (e EngineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

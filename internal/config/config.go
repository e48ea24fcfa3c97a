// Package config loads the service configuration from YAML with
// environment overrides for deployment-sensitive fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Sources struct {
	AttemptsPerSource int      `yaml:"attempts_per_source"`
	AttemptTimeoutSec int      `yaml:"attempt_timeout_sec"`
	BackoffMs         int      `yaml:"backoff_ms"`
	Relays            []string `yaml:"relays"`
	Yahoo             Endpoint `yaml:"yahoo"`
	Stooq             Endpoint `yaml:"stooq"`
}

type Endpoint struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type Cache struct {
	QuoteTTLSec int `yaml:"quote_ttl_sec"`
	BarTTLSec   int `yaml:"bar_ttl_sec"`
}

type Feed struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	LiveTickMs      int `yaml:"live_tick_ms"`
}

type Synth struct {
	IntradayVolScale float64 `yaml:"intraday_vol_scale"`
	WickFactor       float64 `yaml:"wick_factor"`
	OpenCloseBoost   float64 `yaml:"open_close_boost"`
	TrendBiasMax     float64 `yaml:"trend_bias_max"`
	BaseVolume       float64 `yaml:"base_volume"`
}

type Config struct {
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
	Sources Sources `yaml:"sources"`
	Cache   Cache   `yaml:"cache"`
	Feed    Feed    `yaml:"feed"`
	Synth   Synth   `yaml:"synth"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Log:    Log{Level: "info"},
		Sources: Sources{
			AttemptsPerSource: 3,
			AttemptTimeoutSec: 4,
			BackoffMs:         400,
			Relays: []string{
				"https://api.allorigins.win/raw?url=",
				"https://corsproxy.io/?url=",
			},
			Yahoo: Endpoint{Enabled: true},
			Stooq: Endpoint{Enabled: true},
		},
		Cache: Cache{QuoteTTLSec: 30, BarTTLSec: 300},
		Feed:  Feed{PollIntervalSec: 15, LiveTickMs: 2000},
	}
}

// Load reads YAML config from path. If path is empty or the file does
// not exist, defaults are used. Environment variables override select
// fields afterward.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// AttemptTimeout converts the per-attempt timeout.
func (s Sources) AttemptTimeout() time.Duration {
	return time.Duration(s.AttemptTimeoutSec) * time.Second
}

// Backoff converts the base backoff delay.
func (s Sources) Backoff() time.Duration {
	return time.Duration(s.BackoffMs) * time.Millisecond
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := envInt("REQUEST_TIMEOUT_SEC"); v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RELAYS"); v != "" {
		cfg.Sources.Relays = splitCSV(v)
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Sources.Yahoo.BaseURL = v
	}
	if v := os.Getenv("STOOQ_BASE_URL"); v != "" {
		cfg.Sources.Stooq.BaseURL = v
	}
	if v := envInt("SOURCE_ATTEMPTS"); v > 0 {
		cfg.Sources.AttemptsPerSource = v
	}
	if v := envInt("SOURCE_ATTEMPT_TIMEOUT_SEC"); v > 0 {
		cfg.Sources.AttemptTimeoutSec = v
	}
	if v := envInt("SOURCE_BACKOFF_MS"); v > 0 {
		cfg.Sources.BackoffMs = v
	}
	if v := envInt("CACHE_QUOTE_TTL_SEC"); v > 0 {
		cfg.Cache.QuoteTTLSec = v
	}
	if v := envInt("CACHE_BAR_TTL_SEC"); v > 0 {
		cfg.Cache.BarTTLSec = v
	}
	if v := envInt("POLL_INTERVAL_SEC"); v > 0 {
		cfg.Feed.PollIntervalSec = v
	}
	if v := envInt("LIVE_TICK_MS"); v > 0 {
		cfg.Feed.LiveTickMs = v
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return x
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package relay

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// RateLimitConfig bounds how fast one connection may issue commands.
type RateLimitConfig struct {
	PerSecond float64 `toml:"per_second"`
	Burst     int     `toml:"burst"`
}

// Config holds the relay runtime settings. Durations are expressed in
// seconds in both the TOML file and the environment.
type Config struct {
	Addr            string          `toml:"addr"`
	MetricsAddr     string          `toml:"metrics_addr"`
	IdleTimeoutSec  int             `toml:"idle_timeout_seconds"`
	ReapIntervalSec int             `toml:"reap_interval_seconds"`
	WriteTimeoutSec int             `toml:"write_timeout_seconds"`
	MaxMessageLen   int             `toml:"max_message_len"`
	RateLimit       RateLimitConfig `toml:"rate_limit"`
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":4000",
		MetricsAddr:     ":9090",
		IdleTimeoutSec:  60,
		ReapIntervalSec: 30,
		WriteTimeoutSec: 10,
		MaxMessageLen:   512,
		RateLimit: RateLimitConfig{
			PerSecond: 5,
			Burst:     10,
		},
	}
}

// LoadFile overlays settings from a TOML file onto c.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. CHAT_SERVER_PORT keeps
// its historical meaning: a bare port number.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("CHAT_SERVER_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			c.Addr = fmt.Sprintf(":%d", n)
		}
	}
	if addr := os.Getenv("CHAT_METRICS_ADDR"); addr != "" {
		c.MetricsAddr = addr
	}
	c.IdleTimeoutSec = envInt("CHAT_IDLE_TIMEOUT", c.IdleTimeoutSec)
	c.ReapIntervalSec = envInt("CHAT_REAP_INTERVAL", c.ReapIntervalSec)
	c.WriteTimeoutSec = envInt("CHAT_WRITE_TIMEOUT", c.WriteTimeoutSec)
	c.MaxMessageLen = envInt("CHAT_MAX_MESSAGE_LEN", c.MaxMessageLen)
	c.RateLimit.Burst = envInt("CHAT_RATE_LIMIT_BURST", c.RateLimit.Burst)
	if v := os.Getenv("CHAT_RATE_LIMIT_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.RateLimit.PerSecond = f
		}
	}
}

// Sanitize replaces empty or non-positive settings with defaults.
func (c *Config) Sanitize() {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = def.MetricsAddr
	}
	if c.IdleTimeoutSec <= 0 {
		c.IdleTimeoutSec = def.IdleTimeoutSec
	}
	if c.ReapIntervalSec <= 0 {
		c.ReapIntervalSec = def.ReapIntervalSec
	}
	if c.WriteTimeoutSec <= 0 {
		c.WriteTimeoutSec = def.WriteTimeoutSec
	}
	if c.MaxMessageLen <= 0 {
		c.MaxMessageLen = def.MaxMessageLen
	}
	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = def.RateLimit.PerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

func (c Config) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSec) * time.Second
}

func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

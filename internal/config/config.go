package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DefaultSessionSecret is only good for local runs. Validate refuses it
// in production.
const DefaultSessionSecret = "change-me"

type Config struct {
	HTTPPort    string
	Environment string
	LogLevel    string

	MarketAPIURL    string
	UpstreamTimeout time.Duration

	NominatimURL      string
	GeocoderUserAgent string

	RedisAddr string

	SessionSecret string
	SessionTTL    time.Duration

	CacheTTL         time.Duration
	CategoryCacheTTL time.Duration

	UploadTTL         time.Duration
	MaxUploadBytes    int64
	ImageMaxBytes     int64
	ImageMaxDimension int
	CloudinaryURL     string

	RateLimitPerMinute int
	TrustedProxies     []string
	DropdownLimit      int

	StubPort string
}

// NewConfig reads the environment, after loading .env when one exists.
func NewConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MarketAPIURL:    getEnv("MARKET_API_URL", "http://localhost:8000/api"),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		NominatimURL:      getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "buskalo-bff/1.0"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		SessionSecret: getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 720*time.Hour),

		CacheTTL:         getEnvAsDuration("CACHE_TTL", 30*time.Second),
		CategoryCacheTTL: getEnvAsDuration("CATEGORY_CACHE_TTL", 10*time.Minute),

		UploadTTL:         getEnvAsDuration("UPLOAD_TTL", 30*time.Minute),
		MaxUploadBytes:    getEnvAsInt64("MAX_UPLOAD_BYTES", 5<<20),
		ImageMaxBytes:     getEnvAsInt64("IMAGE_MAX_BYTES", 1<<20),
		ImageMaxDimension: getEnvAsInt("IMAGE_MAX_DIMENSION", 1200),
		CloudinaryURL:     getEnv("CLOUDINARY_URL", ""),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvAsList("TRUSTED_PROXIES"),
		DropdownLimit:      getEnvAsInt("DROPDOWN_LIMIT", 5),

		StubPort: getEnv("STUB_PORT", "8000"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate reports settings the gateway must not start with.
func (c *Config) Validate() error {
	if c.IsProduction() {
		switch strings.TrimSpace(c.SessionSecret) {
		case "":
			return errors.New("SESSION_SECRET must be set in production")
		case DefaultSessionSecret:
			return errors.New("SESSION_SECRET still has the development default")
		}
	}
	if _, err := c.ProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// ProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c *Config) ProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Fields returns the non-secret settings for the startup log line.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("port", c.HTTPPort),
		zap.String("environment", c.Environment),
		zap.String("market_api_url", c.MarketAPIURL),
		zap.String("nominatim_url", c.NominatimURL),
		zap.Bool("redis", c.RedisAddr != ""),
		zap.Bool("cloudinary", c.CloudinaryURL != ""),
		zap.Duration("cache_ttl", c.CacheTTL),
		zap.Strings("trusted_proxies", c.TrustedProxies),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

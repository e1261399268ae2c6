// Package config loads VidHub settings from the environment.
// Values come from process environment variables, optionally seeded from
// .env and .env.local files in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads .env files if present. godotenv never overrides variables that
// are already set, so the process environment wins over both files.
func init() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s file: %v\n", file, err)
		}
	}
}

// Config captures environment-driven settings for vidhubd.
type Config struct {
	Env     string // Deployment environment (dev, staging, prod)
	Port    string // HTTP server port
	BaseURL string // Public origin used for share links and redirects

	DatabaseDSN string // PostgreSQL DSN; empty selects the in-memory backend
	NATSURL     string // NATS server URL; empty selects the noop publisher

	// Object storage
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string // Prefix for public object URLs; defaults to the endpoint
	Buckets         Buckets

	// Authentication
	JWTIssuer   string
	JWTAudience string
	JWTSecret   string // HS256 shared secret; when empty tokens are verified against JWKSURL
	JWKSURL     string
	AuthURL     string // Optional auth service used for user lookup and sign-out
	AuthAPIKey  string

	// Media limits
	MaxVideoSize      int64
	MaxImageSize      int64
	AllowedVideoTypes []string
	AllowedImageTypes []string
	FFprobePath       string
	FFmpegPath        string
	TempDir           string

	BatchConcurrency int           // Parallel items per batch upload
	PaymentDelay     time.Duration // Simulated payment processing time
	PublishSchedule  string        // Cron spec for the scheduled-publish job

	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
	RateLimitRPS       float64  // Mutations per second per caller; 0 disables
	RateLimitBurst     int
}

// Buckets names the object storage buckets.
type Buckets struct {
	Videos     string
	Thumbnails string
	Avatars    string
	Banners    string
}

const (
	defaultPort             = "8080"
	defaultEnv              = "dev"
	defaultS3Region         = "us-east-1"
	defaultMaxVideoSize     = 2 << 30 // 2GiB
	defaultMaxImageSize     = 5 << 20 // 5MiB
	defaultBatchConcurrency = 3
	defaultPaymentDelay     = 2 * time.Second
	defaultPublishSchedule  = "@every 1m"
)

// Load reads environment variables and produces a Config suitable for wiring the service.
// Returns an error if required parameters are missing or a typed value does not parse.
func Load() (Config, error) {
	cfg := Config{
		Env:         getEnv("VIDHUB_ENV", defaultEnv),
		Port:        getEnv("VIDHUB_PORT", defaultPort),
		DatabaseDSN: os.Getenv("VIDHUB_DB_DSN"),
		NATSURL:     os.Getenv("VIDHUB_NATS_URL"),

		S3Endpoint:      os.Getenv("VIDHUB_S3_ENDPOINT"),
		S3Region:        getEnv("VIDHUB_S3_REGION", defaultS3Region),
		S3AccessKey:     os.Getenv("VIDHUB_S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("VIDHUB_S3_SECRET_KEY"),
		S3PublicBaseURL: os.Getenv("VIDHUB_S3_PUBLIC_BASE_URL"),
		Buckets: Buckets{
			Videos:     getEnv("VIDHUB_BUCKET_VIDEOS", "videos"),
			Thumbnails: getEnv("VIDHUB_BUCKET_THUMBNAILS", "thumbnails"),
			Avatars:    getEnv("VIDHUB_BUCKET_AVATARS", "avatars"),
			Banners:    getEnv("VIDHUB_BUCKET_BANNERS", "banners"),
		},

		JWTIssuer:   os.Getenv("VIDHUB_JWT_ISSUER"),
		JWTAudience: os.Getenv("VIDHUB_JWT_AUDIENCE"),
		JWTSecret:   os.Getenv("VIDHUB_JWT_SECRET"),
		JWKSURL:     os.Getenv("VIDHUB_JWKS_URL"),
		AuthURL:     os.Getenv("VIDHUB_AUTH_URL"),
		AuthAPIKey:  os.Getenv("VIDHUB_AUTH_API_KEY"),

		AllowedVideoTypes: getList("VIDHUB_ALLOWED_VIDEO_TYPES", []string{"video/mp4", "video/webm", "video/quicktime"}),
		AllowedImageTypes: getList("VIDHUB_ALLOWED_IMAGE_TYPES", []string{"image/jpeg", "image/png", "image/webp"}),
		FFprobePath:       getEnv("VIDHUB_FFPROBE_PATH", "ffprobe"),
		FFmpegPath:        getEnv("VIDHUB_FFMPEG_PATH", "ffmpeg"),
		TempDir:           getEnv("VIDHUB_TEMP_DIR", os.TempDir()),

		PublishSchedule:    getEnv("VIDHUB_PUBLISH_SCHEDULE", defaultPublishSchedule),
		CORSAllowedOrigins: getList("VIDHUB_CORS_ALLOWED_ORIGINS", nil),
	}
	cfg.BaseURL = getEnv("VIDHUB_BASE_URL", "http://localhost:"+cfg.Port)

	var err error
	if cfg.MaxVideoSize, err = getInt64("VIDHUB_MAX_VIDEO_SIZE", defaultMaxVideoSize); err != nil {
		return cfg, err
	}
	if cfg.MaxImageSize, err = getInt64("VIDHUB_MAX_IMAGE_SIZE", defaultMaxImageSize); err != nil {
		return cfg, err
	}
	concurrency, err := getInt64("VIDHUB_BATCH_CONCURRENCY", defaultBatchConcurrency)
	if err != nil {
		return cfg, err
	}
	cfg.BatchConcurrency = int(concurrency)
	if cfg.BatchConcurrency < 1 {
		return cfg, fmt.Errorf("VIDHUB_BATCH_CONCURRENCY must be positive")
	}
	if cfg.PaymentDelay, err = getDuration("VIDHUB_PAYMENT_DELAY", defaultPaymentDelay); err != nil {
		return cfg, err
	}
	if v, ok := os.LookupEnv("VIDHUB_RATE_LIMIT_RPS"); ok {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, fmt.Errorf("VIDHUB_RATE_LIMIT_RPS: %w", err)
		}
	}
	burst, err := getInt64("VIDHUB_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}
	cfg.RateLimitBurst = int(burst)

	// Validate required parameters
	if cfg.JWTIssuer == "" {
		return cfg, fmt.Errorf("VIDHUB_JWT_ISSUER is required")
	}
	if cfg.JWTAudience == "" {
		return cfg, fmt.Errorf("VIDHUB_JWT_AUDIENCE is required")
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		cfg.JWKSURL = strings.TrimRight(cfg.JWTIssuer, "/") + "/.well-known/jwks.json"
	}

	return cfg, nil
}

// IsDev reports whether the service runs in the development environment.
func (c Config) IsDev() bool { return c.Env == "dev" }

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// getList splits a comma separated variable and trims each element.
func getList(key string, fallback []string) []string {
	v, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt64(key string, fallback int64) (int64, error) {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

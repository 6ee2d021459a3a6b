package common

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Normalize  NormalizeConfig
	Arithmetic ArithmeticConfig
	Dedupe     DedupeConfig
	Fraud      FraudConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string
	AuditLogCap int
}

// StoreConfig selects and configures the duplicate store backend.
type StoreConfig struct {
	Backend       string // memory | bolt | redis | postgres
	BoltPath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
	MaxConns      int32
	Timeout       time.Duration
}

// NormalizeConfig holds field-normalizer configuration.
type NormalizeConfig struct {
	DateFormats     []string
	DefaultCurrency string
}

// ArithmeticConfig holds reconciliation tolerances. A mismatch is flagged only
// when it exceeds max(absolute, relative×|expected|).
type ArithmeticConfig struct {
	AbsoluteToleranceMinor int64
	RelativeTolerance      float64
	SanityCeilingMinor     int64
}

// DedupeConfig holds duplicate-detection tuning.
type DedupeConfig struct {
	SimilarityThreshold float64
}

// FraudWeights holds per-signal weights for the combined score.
type FraudWeights struct {
	Whitening         float64 `json:"whitening"`
	FontInconsistency float64 `json:"font_inconsistency"`
	Arithmetic        float64 `json:"arithmetic"`
	Duplicate         float64 `json:"duplicate"`
}

// FraudConfig holds fraud-engine tuning. Saturation constants shape the
// diminishing-returns curves of the accumulating signals.
type FraudConfig struct {
	Weights              FraudWeights
	NonMonetaryWeight    float64
	WhiteningSaturation  float64
	FontSaturation       float64
	ArithmeticSaturation float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        getEnv("HTTP_ADDR", ":8080"),
			AuditLogCap: getEnvAsInt("AUDIT_LOG_CAP", 1000),
		},
		Store: StoreConfig{
			Backend:       getEnv("STORE_BACKEND", "memory"),
			BoltPath:      getEnv("STORE_BOLT_PATH", "billaudit.db"),
			RedisAddr:     getEnv("STORE_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("STORE_REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("STORE_REDIS_DB", 0),
			PostgresDSN:   getEnv("STORE_POSTGRES_DSN", ""),
			MaxConns:      getEnvAsInt32("STORE_PG_MAX_CONNS", 10),
			Timeout:       getEnvAsDuration("STORE_TIMEOUT", 2*time.Second),
		},
		Normalize: NormalizeConfig{
			DateFormats:     getEnvAsList("DATE_FORMATS", defaultDateFormats),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "INR"),
		},
		Arithmetic: ArithmeticConfig{
			AbsoluteToleranceMinor: getEnvAsInt64("TOLERANCE_ABS_MINOR", 1),
			RelativeTolerance:      getEnvAsFloat64("TOLERANCE_REL", 0.005),
			SanityCeilingMinor:     getEnvAsInt64("SANITY_CEILING_MINOR", 1_000_000_000), // 10,000,000.00
		},
		Dedupe: DedupeConfig{
			SimilarityThreshold: getEnvAsFloat64("DEDUPE_SIMILARITY_THRESHOLD", 0.85),
		},
		Fraud: FraudConfig{
			Weights: FraudWeights{
				Whitening:         getEnvAsFloat64("FRAUD_WEIGHT_WHITENING", 0.25),
				FontInconsistency: getEnvAsFloat64("FRAUD_WEIGHT_FONT", 0.25),
				Arithmetic:        getEnvAsFloat64("FRAUD_WEIGHT_ARITHMETIC", 0.25),
				Duplicate:         getEnvAsFloat64("FRAUD_WEIGHT_DUPLICATE", 0.25),
			},
			NonMonetaryWeight:    getEnvAsFloat64("FRAUD_WHITENING_NONMONETARY_WEIGHT", 0.25),
			WhiteningSaturation:  getEnvAsFloat64("FRAUD_WHITENING_SATURATION", 1.5),
			FontSaturation:       getEnvAsFloat64("FRAUD_FONT_SATURATION", 0.7),
			ArithmeticSaturation: getEnvAsFloat64("FRAUD_ARITHMETIC_SATURATION", 0.9),
		},
	}
}

var defaultDateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// Validate rejects configurations that would violate engine invariants.
func (c *Config) Validate() error {
	if c.Arithmetic.AbsoluteToleranceMinor < 0 {
		return NewAppError("CONFIG_ERROR", "TOLERANCE_ABS_MINOR must be >= 0", ErrInvalidInput)
	}
	if c.Arithmetic.RelativeTolerance < 0 || math.IsNaN(c.Arithmetic.RelativeTolerance) {
		return NewAppError("CONFIG_ERROR", "TOLERANCE_REL must be a number >= 0", ErrInvalidInput)
	}
	if c.Arithmetic.SanityCeilingMinor <= 0 {
		return NewAppError("CONFIG_ERROR", "SANITY_CEILING_MINOR must be > 0", ErrInvalidInput)
	}
	if t := c.Dedupe.SimilarityThreshold; math.IsNaN(t) || t <= 0 || t > 1 {
		return NewAppError("CONFIG_ERROR", "DEDUPE_SIMILARITY_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	w := c.Fraud.Weights
	sum := 0.0
	for _, v := range []float64{w.Whitening, w.FontInconsistency, w.Arithmetic, w.Duplicate} {
		if math.IsNaN(v) || v < 0 {
			return NewAppError("CONFIG_ERROR", "fraud weights must be numbers >= 0", ErrInvalidInput)
		}
		sum += v
	}
	if sum == 0 {
		return NewAppError("CONFIG_ERROR", "at least one fraud weight must be > 0", ErrInvalidInput)
	}
	if len(c.Normalize.DateFormats) == 0 {
		return NewAppError("CONFIG_ERROR", "DATE_FORMATS must not be empty", ErrInvalidInput)
	}
	switch c.Store.Backend {
	case "memory", "bolt", "redis", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "STORE_BACKEND must be one of memory|bolt|redis|postgres", ErrInvalidInput)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return NewAppError("CONFIG_ERROR", "STORE_POSTGRES_DSN is required for the postgres backend", ErrInvalidInput)
	}
	return nil
}

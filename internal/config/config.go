// Package config
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPeriodMillis    = 10
	DefaultAddress         = ":8980"
	DefaultAcceleratorAddr = "localhost:8981"
	DefaultLocale          = "USA"
)

type Config struct {
	Address        string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	PeriodMillis    int
	OutputDir       string
	Locale          string
	IntensitiesPath string
	UseAccelerator  bool
	AcceleratorAddr string
	JWTSecret       string
	JWTExpiry       time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	// Logs
	logLevel := getEnv("LOG_LEVEL", "info")
	logFormat := getEnv("LOG_FORMAT", "text")

	// RPC Address
	addr := getEnv("YUCA_HTTP_ADDR", DefaultAddress)

	// Websocket Allowed Origins
	var origins []string
	rawOrigins := os.Getenv("YUCA_ALLOWED_ORIGINS")
	if rawOrigins != "" {
		parts := strings.SplitSeq(rawOrigins, ",")
		for o := range parts {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	// Sampling
	period := ParsePeriodMillis(os.Getenv("YUCA_PERIOD_MILLIS"))

	// Emissions
	locale := getEnv("YUCA_LOCALE", DefaultLocale)
	intensities := os.Getenv("YUCA_LOCALE_INTENSITIES")

	// Dumps
	outputDir := getEnv("YUCA_OUTPUT_DIR", ".")

	// Accelerator collaborator
	useAccelerator := getBool("YUCA_ACCELERATOR", false)
	acceleratorAddr := getEnv("YUCA_ACCELERATOR_ADDR", DefaultAcceleratorAddr)

	// JWT Secret and Expiry
	jwtSecret := getEnv("YUCA_JWT_SECRET", "")
	jwtExpiry := 24 * time.Hour
	if raw := os.Getenv("YUCA_JWT_EXPIRY"); raw != "" {
		if duration, err := time.ParseDuration(raw); err == nil && duration > 0 {
			jwtExpiry = duration
		}
	}

	return &Config{
		LogLevel:  logLevel,
		LogFormat: logFormat,

		Address:        addr,
		AllowedOrigins: origins,

		PeriodMillis:    period,
		OutputDir:       outputDir,
		Locale:          locale,
		IntensitiesPath: intensities,
		UseAccelerator:  useAccelerator,
		AcceleratorAddr: acceleratorAddr,
		JWTSecret:       jwtSecret,
		JWTExpiry:       jwtExpiry,
	}
}

// ParsePeriodMillis keeps 0 (end-to-end mode) and falls back to the default
// for anything negative or unparsable.
func ParsePeriodMillis(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPeriodMillis
	}

	period, err := strconv.Atoi(raw)
	if err != nil || period < 0 {
		return DefaultPeriodMillis
	}

	return period
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const APIKeyEnv = "GOOGLE_MAPS_API_KEY"

// ErrMissingAPIKey is returned when no Places API key is configured.
var ErrMissingAPIKey = errors.New(APIKeyEnv + " not set")

// LoadEnv loads .env files into the process environment. Missing files are not an
// error; variables already set are kept.
func LoadEnv(log zerolog.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded, using process environment")
	}
}

// APIKey returns the Places API key from the environment.
func APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: add it to .env or export it", ErrMissingAPIKey)
	}
	return key, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

// MinReviews returns EYESCAN_MIN_REVIEWS or def.
func MinReviews(def int) int { return getenvInt("EYESCAN_MIN_REVIEWS", def) }

// Concurrency returns EYESCAN_CONCURRENCY or def.
func Concurrency(def int) int { return getenvInt("EYESCAN_CONCURRENCY", def) }

// ProxyURL returns EYESCAN_PROXY, empty when unset.
func ProxyURL() string { return getenv("EYESCAN_PROXY", "") }

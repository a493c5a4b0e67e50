// Package config loads the bot settings from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:8000"
	DefaultAPITimeout = 30 * time.Second
	DefaultAPIRPS     = 10.0
	DefaultAPIBurst   = 5
)

// Config holds everything needed to run the bot
type Config struct {
	Token         string
	APIURL        string
	APITimeout    time.Duration
	APIRPS        float64
	APIBurst      int
	SessionDBPath string        // empty keeps sessions in memory
	SessionTTL    time.Duration // zero keeps sessions forever
	Debug         bool
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		APIURL:     DefaultAPIURL,
		APITimeout: DefaultAPITimeout,
		APIRPS:     DefaultAPIRPS,
		APIBurst:   DefaultAPIBurst,
	}
}

// Load reads envFile (if it exists) into the process environment and builds a Config from it.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Token = v
	} else if v := os.Getenv("TOKEN_TELEGRAM"); v != "" {
		c.Token = v
	}

	if v := os.Getenv("WEATHER_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("SESSION_DB_PATH"); v != "" {
		c.SessionDBPath = v
	}

	if v := os.Getenv("WEATHER_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid WEATHER_API_TIMEOUT %q: %w", v, err)
		}
		c.APITimeout = d
	}
	if v := os.Getenv("WEATHER_API_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid WEATHER_API_RPS %q: %w", v, err)
		}
		c.APIRPS = rps
	}
	if v := os.Getenv("WEATHER_API_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WEATHER_API_BURST %q: %w", v, err)
		}
		c.APIBurst = burst
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL %q: %w", v, err)
		}
		c.SessionTTL = d
	}
	if v := os.Getenv("DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG %q: %w", v, err)
		}
		c.Debug = debug
	}
	return nil
}

// Validate reports the first problem that would prevent the bot from starting
func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("telegram bot token is required: set TELEGRAM_BOT_TOKEN or pass --token")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid weather API URL %q: %w", c.APIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid weather API URL %q: expected http(s)://host", c.APIURL)
	}

	if c.APITimeout < 0 {
		return fmt.Errorf("weather API timeout must not be negative, got %s", c.APITimeout)
	}
	if c.APIRPS < 0 {
		return fmt.Errorf("weather API rate must not be negative, got %v", c.APIRPS)
	}
	if c.APIBurst < 0 {
		return fmt.Errorf("weather API burst must not be negative, got %d", c.APIBurst)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session TTL must not be negative, got %s", c.SessionTTL)
	}
	return nil
}

package cmd

import (
	"os"
	"strings"
	"time"

	"imrs-backend/internal/components/configutil"
	"imrs-backend/internal/components/telemetry"
)

type ImageConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ImdbConfig struct {
	BaseUrl              string `json:"base_url"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
	SeasonTimeoutSeconds int    `json:"season_timeout_seconds"`
	RetryAttempts        int    `json:"retry_attempts"`
	RetryDelayMs         int    `json:"retry_delay_ms"`
	MaxConcurrency       int    `json:"max_concurrency"`
}

type Config struct {
	LogLevel  string           `json:"log_level"`
	LogFile   string           `json:"log_file"`
	Addr      string           `json:"addr"`
	Port      int              `json:"port"`
	StaticDir string           `json:"static_dir"`
	UrlPrefix string           `json:"url_prefix"`
	Image     ImageConfig      `json:"image"`
	Imdb      ImdbConfig       `json:"imdb"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		Addr:      "::1",
		Port:      8080,
		StaticDir: "./dist",
		UrlPrefix: "http://localhost:8080",
		Image: ImageConfig{
			Width:  1200,
			Height: 400,
		},
		Imdb: ImdbConfig{
			BaseUrl:              "https://www.imdb.com",
			TimeoutSeconds:       15,
			SeasonTimeoutSeconds: 30,
			RetryAttempts:        3,
			RetryDelayMs:         250,
		},
	}
}

// LoadConfig reads path (and its .local override) on top of the defaults.
// A missing file is not an error. URL_PREFIX in the environment wins over
// the file.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfigOr(path, DefaultConfig())
	if err != nil {
		return Config{}, err
	}
	if prefix, ok := os.LookupEnv("URL_PREFIX"); ok && strings.TrimSpace(prefix) != "" {
		cfg.UrlPrefix = strings.TrimSpace(prefix)
	}
	return cfg, nil
}

func (c ImdbConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ImdbConfig) seasonTimeout() time.Duration {
	return time.Duration(c.SeasonTimeoutSeconds) * time.Second
}

func (c ImdbConfig) retryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

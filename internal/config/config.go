package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/adpulse/internal/engine"
	"github.com/AngelCh415/adpulse/internal/models"
)

var ErrInvalidThresholds = errors.New("invalid thresholds")

type Config struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	AdsURL       string        `envconfig:"ADS_API_URL"`
	ContractsURL string        `envconfig:"CONTRACTS_API_URL"`
	SinkURL      string        `envconfig:"SINK_URL"`
	SinkSecret   string        `envconfig:"SINK_SECRET"`

	// AssumedCPM prices impressions for ROAS when the data has no spend.
	AssumedCPM     float64 `envconfig:"ASSUMED_CPM" default:"0"`
	ThresholdsFile string  `envconfig:"THRESHOLDS_FILE"`
	// ExcludedCampaigns are case-insensitive substrings; matching campaigns
	// are dropped at ingestion and from every query.
	ExcludedCampaigns []string `envconfig:"EXCLUDED_CAMPAIGN_PATTERNS"`

	Thresholds engine.Thresholds `ignored:"true"`
}

// FromEnv reads the environment and, when THRESHOLDS_FILE is set, overlays
// the detector thresholds from that YAML file.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load env config: %w", err)
	}
	th := engine.DefaultThresholds()
	if cfg.ThresholdsFile != "" {
		var err error
		if th, err = LoadThresholds(cfg.ThresholdsFile, th); err != nil {
			return Config{}, err
		}
	}
	if cfg.AssumedCPM > 0 {
		th.AssumedCPM = cfg.AssumedCPM
	}
	cfg.Thresholds = th
	return cfg, nil
}

// Default is the configuration with every default applied and no sources.
func Default() Config {
	return Config{Port: "8080", LogLevel: "info", HTTPTimeout: 15 * time.Second, Thresholds: engine.DefaultThresholds()}
}

// LoadThresholds overlays the fields present in a YAML file onto base and
// checks the result.
func LoadThresholds(path string, base engine.Thresholds) (engine.Thresholds, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read thresholds file: %w", err)
	}
	th := base
	th.Metrics = append([]models.Metric(nil), base.Metrics...)
	if err := yaml.Unmarshal(b, &th); err != nil {
		return base, fmt.Errorf("parse thresholds file: %w", err)
	}
	if err := checkThresholds(&th); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return th, nil
}

// checkThresholds rejects negative limits, empty week minimums and unknown
// metric names. Metric names are normalized in place.
func checkThresholds(th *engine.Thresholds) error {
	if err := validator.New().Struct(th); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidThresholds, err)
	}
	for i, name := range th.Metrics {
		m, ok := models.ParseMetric(string(name))
		if !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidThresholds, name)
		}
		th.Metrics[i] = m
	}
	return nil
}

func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// CampaignFilter keeps campaigns matching none of the excluded patterns.
func (c Config) CampaignFilter() engine.CampaignFilter {
	var pats []string
	for _, p := range c.ExcludedCampaigns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			pats = append(pats, p)
		}
	}
	if len(pats) == 0 {
		return nil
	}
	return func(campaign string) bool {
		name := strings.ToLower(campaign)
		for _, p := range pats {
			if strings.Contains(name, p) {
				return false
			}
		}
		return true
	}
}

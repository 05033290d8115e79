package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adpulse/internal/engine"
	"github.com/AngelCh415/adpulse/internal/models"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "HTTP_TIMEOUT", "ASSUMED_CPM", "THRESHOLDS_FILE", "EXCLUDED_CAMPAIGN_PATTERNS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, engine.DefaultThresholds(), cfg.Thresholds)
	assert.Nil(t, cfg.CampaignFilter())
}

func TestFromEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daily_stddev_multiplier: 3\nmin_weeks: 4\nmetrics: [impressions]\n"), 0o600))

	t.Setenv("PORT", "9090")
	t.Setenv("HTTP_TIMEOUT", "2s")
	t.Setenv("ASSUMED_CPM", "12.5")
	t.Setenv("THRESHOLDS_FILE", path)
	t.Setenv("EXCLUDED_CAMPAIGN_PATTERNS", "test, internal")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3.0, cfg.Thresholds.DailyStdDevMultiplier)
	assert.Equal(t, 4, cfg.Thresholds.MinWeeks)
	assert.Equal(t, []models.Metric{models.Impressions}, cfg.Thresholds.Metrics)
	assert.Equal(t, 15.0, cfg.Thresholds.WeekOverWeekPercent)
	assert.Equal(t, 12.5, cfg.Thresholds.AssumedCPM)

	keep := cfg.CampaignFilter()
	require.NotNil(t, keep)
	assert.False(t, keep("QA TEST run"))
	assert.False(t, keep("Internal Promo"))
	assert.True(t, keep("Spring Sale"))
}

func TestFromEnvBadValue(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err := FromEnv()
	assert.Error(t, err)
}

func writeThresholds(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadThresholdsErrors(t *testing.T) {
	base := engine.DefaultThresholds()
	_, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml"), base)
	assert.Error(t, err)

	_, err = LoadThresholds(writeThresholds(t, "min_weeks: [oops"), base)
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"unknown metric", "metrics: [impressions, ctr]"},
		{"zero min weeks", "min_weeks: 0"},
		{"negative min weeks", "min_weeks: -2"},
		{"zero min rows per week", "min_rows_per_week: 0"},
		{"negative daily multiplier", "daily_stddev_multiplier: -1"},
		{"negative weekly multiplier", "weekly_stddev_multiplier: -0.5"},
		{"negative relative floor", "daily_min_relative_percent: -10"},
		{"zero headroom", "impression_goal_headroom: 0"},
		{"negative assumed cpm", "assumed_cpm: -3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadThresholds(writeThresholds(t, tt.body), base)
			assert.ErrorIs(t, err, ErrInvalidThresholds)
			assert.Equal(t, base, got)
		})
	}
}

func TestLoadThresholdsNormalizesMetrics(t *testing.T) {
	got, err := LoadThresholds(writeThresholds(t, "metrics: [Impressions, ' REVENUE ']"), engine.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, []models.Metric{models.Impressions, models.Revenue}, got.Metrics)
}

func TestFromEnvRejectsInvalidThresholds(t *testing.T) {
	t.Setenv("THRESHOLDS_FILE", writeThresholds(t, "metrics: [ctr]"))
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "DEBUG"}.Level())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warning"}.Level())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.Level())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "chatty"}.Level())
}

package engine

import "github.com/AngelCh415/adpulse/internal/models"

// Thresholds collects every tunable constant used by the detectors and the
// pacing calculator. Zero values are not meaningful; start from
// DefaultThresholds and override.
type Thresholds struct {
	// Daily: |v-mean| > DailyStdDevMultiplier*stddev and relative deviation > DailyMinRelativePercent.
	DailyStdDevMultiplier   float64 `yaml:"daily_stddev_multiplier" validate:"gte=0"`
	DailyMinRelativePercent float64 `yaml:"daily_min_relative_percent" validate:"gte=0"`

	// Weekly week-over-week change limit, in percent.
	WeekOverWeekPercent float64 `yaml:"week_over_week_percent" validate:"gte=0"`
	// Weekly week-vs-average: relative deviation and stddev multiplier, both must be exceeded.
	WeekVsAveragePercent   float64 `yaml:"week_vs_average_percent" validate:"gte=0"`
	WeeklyStdDevMultiplier float64 `yaml:"weekly_stddev_multiplier" validate:"gte=0"`
	MinWeeks               int     `yaml:"min_weeks" validate:"gte=1"`
	MinRowsPerWeek         int     `yaml:"min_rows_per_week" validate:"gte=1"`

	// Goal = actual impressions * ImpressionGoalHeadroom when no contract exists.
	ImpressionGoalHeadroom float64 `yaml:"impression_goal_headroom" validate:"gt=0"`
	// AssumedCPM prices impressions when a data set has no spend column.
	AssumedCPM float64         `yaml:"assumed_cpm" validate:"gte=0"`
	Metrics    []models.Metric `yaml:"metrics"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DailyStdDevMultiplier:   2,
		DailyMinRelativePercent: 10,
		WeekOverWeekPercent:     15,
		WeekVsAveragePercent:    15,
		WeeklyStdDevMultiplier:  1.2,
		MinWeeks:                2,
		MinRowsPerWeek:          3,
		ImpressionGoalHeadroom:  1.10,
		Metrics:                 []models.Metric{models.Impressions, models.Clicks, models.Revenue},
	}
}

func (t Thresholds) metrics() []models.Metric {
	if len(t.Metrics) == 0 {
		return DefaultThresholds().Metrics
	}
	return t.Metrics
}

// CampaignFilter reports whether a campaign takes part in a computation.
type CampaignFilter func(campaign string) bool

// Filter keeps rows whose campaign passes keep. A nil keep returns rows as is.
func Filter(rows []models.Row, keep CampaignFilter) []models.Row {
	if keep == nil {
		return rows
	}
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if keep(r.CampaignName) {
			out = append(out, r)
		}
	}
	return out
}

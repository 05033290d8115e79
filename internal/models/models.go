package models

import (
	"strings"
	"time"
)

// TotalsLabel marks the summary row some exports append to the data.
const TotalsLabel = "Totals"

// Row is one day of delivery for one campaign.
type Row struct {
	Date         time.Time `json:"date"`
	CampaignName string    `json:"campaign_name"`
	Impressions  int64     `json:"impressions"`
	Clicks       int64     `json:"clicks"`
	Transactions int64     `json:"transactions"`
	Revenue      float64   `json:"revenue"`
	Spend        float64   `json:"spend"`
}

// IsTotals reports whether the row is the export's summary sentinel.
func (r Row) IsTotals() bool {
	return strings.EqualFold(strings.TrimSpace(r.CampaignName), TotalsLabel)
}

// CampaignGroup maps a campaign name to its rows.
type CampaignGroup map[string][]Row

type Metric string

const (
	Impressions  Metric = "impressions"
	Clicks       Metric = "clicks"
	Transactions Metric = "transactions"
	Revenue      Metric = "revenue"
	Spend        Metric = "spend"
)

// AllMetrics lists every summable field, in display order.
var AllMetrics = []Metric{Impressions, Clicks, Transactions, Revenue, Spend}

func ParseMetric(s string) (Metric, bool) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range AllMetrics {
		if k == m {
			return m, true
		}
	}
	return "", false
}

type Sums struct {
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Transactions int64   `json:"transactions"`
	Revenue      float64 `json:"revenue"`
	Spend        float64 `json:"spend"`
}

func (s *Sums) Add(r Row) {
	s.Impressions += r.Impressions
	s.Clicks += r.Clicks
	s.Transactions += r.Transactions
	s.Revenue += r.Revenue
	s.Spend += r.Spend
}

func (s *Sums) Merge(o Sums) {
	s.Impressions += o.Impressions
	s.Clicks += o.Clicks
	s.Transactions += o.Transactions
	s.Revenue += o.Revenue
	s.Spend += o.Spend
}

// Value returns the named field as a float. Unknown metrics yield 0.
func (s Sums) Value(m Metric) float64 {
	switch m {
	case Impressions:
		return float64(s.Impressions)
	case Clicks:
		return float64(s.Clicks)
	case Transactions:
		return float64(s.Transactions)
	case Revenue:
		return s.Revenue
	case Spend:
		return s.Spend
	}
	return 0
}

type DailyBucket struct {
	Key  string    `json:"key"`
	Date time.Time `json:"date"`
	Sums Sums      `json:"sums"`
	Rows int       `json:"rows"`
}

type DayOfWeekBucket struct {
	Key     string       `json:"key"`
	Weekday time.Weekday `json:"weekday"`
	Sums    Sums         `json:"sums"`
	Rows    int          `json:"rows"`
}

// Window is an inclusive [Start, End] date range with the rows it holds.
type Window struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Sums     Sums      `json:"sums"`
	RowCount int       `json:"row_count"`
}

// Summary is a set of totals with the derived KPIs applied.
type Summary struct {
	CampaignName string  `json:"campaign_name,omitempty"`
	Sums         Sums    `json:"sums"`
	CTR          float64 `json:"ctr"`
	ROAS         float64 `json:"roas"`
	AOV          float64 `json:"aov"`
	CPM          float64 `json:"cpm"`
	CPC          float64 `json:"cpc"`
	// EstimatedSpend is set when ROAS was computed from an assumed CPM.
	EstimatedSpend bool `json:"estimated_spend,omitempty"`
}

// PeriodComparison pairs a complete window with the one immediately before it.
type PeriodComparison struct {
	Current         Window             `json:"current"`
	Previous        Window             `json:"previous"`
	Deltas          map[Metric]float64 `json:"deltas"`
	KPIDeltas       map[string]float64 `json:"kpi_deltas"`
	CurrentSummary  Summary            `json:"current_summary"`
	PreviousSummary Summary            `json:"previous_summary"`
}

type PeriodType string

const (
	PeriodDaily  PeriodType = "daily"
	PeriodWeekly PeriodType = "weekly"
)

type AnomalyCheck string

const (
	CheckDailyOutlier  AnomalyCheck = "daily_outlier"
	CheckWeekOverWeek  AnomalyCheck = "week_over_week"
	CheckWeekVsAverage AnomalyCheck = "week_vs_average"
)

type Anomaly struct {
	CampaignName     string       `json:"campaign_name"`
	PeriodLabel      string       `json:"period_label"`
	PeriodStart      time.Time    `json:"period_start"`
	PeriodEnd        time.Time    `json:"period_end"`
	Metric           Metric       `json:"metric"`
	BaselineMean     float64      `json:"baseline_mean"`
	ActualValue      float64      `json:"actual_value"`
	DeviationPercent float64      `json:"deviation_percent"`
	PeriodType       PeriodType   `json:"period_type"`
	Check            AnomalyCheck `json:"check"`
	Direction        string       `json:"direction"` // spike, drop
}

// ContractTerms are the flight and delivery goals agreed for a campaign.
type ContractTerms struct {
	CampaignName    string    `json:"campaign_name" validate:"required"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Budget          float64   `json:"budget" validate:"gte=0"`
	CPM             float64   `json:"cpm" validate:"gte=0"`
	ImpressionsGoal float64   `json:"impressions_goal" validate:"gte=0"`
}

type PacingStatus string

const (
	PacingOnTarget PacingStatus = "on_target"
	PacingMinor    PacingStatus = "minor_deviation"
	PacingModerate PacingStatus = "moderate_deviation"
	PacingMajor    PacingStatus = "major_deviation"
)

type PacingMetrics struct {
	CampaignName           string        `json:"campaign_name"`
	Terms                  ContractTerms `json:"terms"`
	Synthesized            bool          `json:"synthesized"`
	DaysIntoCampaign       int           `json:"days_into_campaign"`
	DaysUntilEnd           int           `json:"days_until_end"`
	ActualImpressions      float64       `json:"actual_impressions"`
	ExpectedImpressions    float64       `json:"expected_impressions"`
	ImpressionGoal         float64       `json:"impression_goal"`
	CurrentPacing          float64       `json:"current_pacing"`
	ExpectedPacing         float64       `json:"expected_pacing"`
	YesterdayImpressions   float64       `json:"yesterday_impressions"`
	NeededDailyImpressions float64       `json:"needed_daily_impressions"`
	YesterdayVsNeeded      float64       `json:"yesterday_vs_needed"`
	Status                 PacingStatus  `json:"status"`
}

// RawRecord is one row as handed over by an upstream export: column name to
// string or number.
type RawRecord map[string]any

// Export column names.
const (
	ColDate         = "DATE"
	ColCampaign     = "CAMPAIGN ORDER NAME"
	ColImpressions  = "IMPRESSIONS"
	ColClicks       = "CLICKS"
	ColTransactions = "TRANSACTIONS"
	ColRevenue      = "REVENUE"
	ColSpend        = "SPEND"
)

package engine

import (
	"math"

	"github.com/AngelCh415/adpulse/internal/models"
)

// SafeDiv returns a/b, or 0 when b is zero or the result is not finite.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	v := a / b
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CTR is clicks per hundred impressions.
func CTR(clicks, impressions float64) float64 { return SafeDiv(clicks, impressions) * 100 }

func ROAS(revenue, spend float64) float64 { return SafeDiv(revenue, spend) }

func AOV(revenue, transactions float64) float64 { return SafeDiv(revenue, transactions) }

func CPM(spend, impressions float64) float64 { return SafeDiv(spend, impressions) * 1000 }

func CPC(spend, clicks float64) float64 { return SafeDiv(spend, clicks) }

// EstimateSpend prices impressions at an assumed CPM.
func EstimateSpend(impressions, assumedCPM float64) float64 {
	return impressions / 1000 * assumedCPM
}

// PercentChange is (cur-prev)/prev*100, 0 when prev is 0.
func PercentChange(cur, prev float64) float64 {
	return SafeDiv(cur-prev, prev) * 100
}

// Summarize derives the KPIs from totals. When the totals carry no spend and
// assumedCPM is positive, spend is estimated from impressions for ROAS and CPC.
func Summarize(s models.Sums, assumedCPM float64) models.Summary {
	spend := s.Spend
	estimated := false
	if spend == 0 && assumedCPM > 0 {
		spend = EstimateSpend(float64(s.Impressions), assumedCPM)
		estimated = spend > 0
	}
	return models.Summary{
		Sums:           s,
		CTR:            CTR(float64(s.Clicks), float64(s.Impressions)),
		ROAS:           ROAS(s.Revenue, spend),
		AOV:            AOV(s.Revenue, float64(s.Transactions)),
		CPM:            CPM(spend, float64(s.Impressions)),
		CPC:            CPC(spend, float64(s.Clicks)),
		EstimatedSpend: estimated,
	}
}

// Total sums every row.
func Total(rows []models.Row) models.Sums {
	var s models.Sums
	for _, r := range rows {
		s.Add(r)
	}
	return s
}

// SummarizeCampaigns returns one summary per campaign, ordered by name.
func SummarizeCampaigns(rows []models.Row, assumedCPM float64) []models.Summary {
	groups := GroupByCampaign(ExcludeTotals(rows))
	out := make([]models.Summary, 0, len(groups))
	for _, name := range campaignNames(groups) {
		sm := Summarize(Total(groups[name]), assumedCPM)
		sm.CampaignName = name
		out = append(out, sm)
	}
	return out
}

package engine

import (
	"time"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/models"
)

// ClassifyPacing maps a pacing percentage (currentPacing*100) to a band.
// Bands are checked tightest first:
//
//	on target  [95, 105]
//	minor      [85, 95)  or (105, 115]
//	moderate   [70, 85)  or (115, 130]
//	major      everything else
func ClassifyPacing(pct float64) models.PacingStatus {
	switch {
	case pct >= 95 && pct <= 105:
		return models.PacingOnTarget
	case (pct >= 85 && pct < 95) || (pct > 105 && pct <= 115):
		return models.PacingMinor
	case (pct >= 70 && pct < 85) || (pct > 115 && pct <= 130):
		return models.PacingModerate
	default:
		return models.PacingMajor
	}
}

// SynthesizeTerms builds contract terms from a campaign's own delivery: the
// flight spans the observed dates, the budget is the spend so far and the
// goal is actual impressions times headroom. rows must not be empty.
func SynthesizeTerms(rows []models.Row, headroom float64) models.ContractTerms {
	first, last := dateRange(rows)
	s := Total(rows)
	return models.ContractTerms{
		CampaignName:    rows[0].CampaignName,
		StartDate:       first,
		EndDate:         last,
		Budget:          s.Spend,
		CPM:             CPM(s.Spend, float64(s.Impressions)),
		ImpressionsGoal: float64(s.Impressions) * headroom,
	}
}

// ImpressionGoal returns the contracted goal, falling back to budget/CPM.
func ImpressionGoal(t models.ContractTerms) float64 {
	if t.ImpressionsGoal > 0 {
		return t.ImpressionsGoal
	}
	return SafeDiv(t.Budget, t.CPM) * 1000
}

// ComputePacing measures a campaign's delivery against its contract. terms
// may be nil, in which case they are synthesized from delivery. all is the
// unfiltered data set; its latest date is taken as "today" so every campaign
// is paced against the same reference day. Returns nil when there is neither
// a contract nor any delivery, or when the flight ends before it starts.
func ComputePacing(terms *models.ContractTerms, delivery, all []models.Row, th Thresholds) *models.PacingMetrics {
	delivery = ExcludeTotals(delivery)
	synthesized := false
	var t models.ContractTerms
	switch {
	case terms != nil:
		t = *terms
	case len(delivery) > 0:
		t = SynthesizeTerms(delivery, th.ImpressionGoalHeadroom)
		synthesized = true
	default:
		return nil
	}

	start, end := dates.Day(t.StartDate), dates.Day(t.EndDate)
	if end.Before(start) {
		return nil
	}
	ref, ok := referenceDay(all, delivery)
	if !ok {
		ref = start.AddDate(0, 0, -1)
	}

	totalDays := dates.DaysBetween(start, end) + 1
	daysInto := clamp(dates.DaysBetween(start, ref)+1, 0, totalDays)
	daysLeft := dates.DaysBetween(ref, end)
	if daysLeft < 0 {
		daysLeft = 0
	}

	var actual, yesterday float64
	for _, r := range delivery {
		d := dates.Day(r.Date)
		if d.Before(start) || d.After(ref) || d.After(end) {
			continue
		}
		actual += float64(r.Impressions)
		if d.Equal(ref) {
			yesterday += float64(r.Impressions)
		}
	}

	goal := ImpressionGoal(t)
	expected := goal * SafeDiv(float64(daysInto), float64(totalDays))

	needed := actual
	if daysLeft > 0 {
		needed = (goal - actual) / float64(daysLeft)
	}
	if needed < 0 {
		needed = 0
	}

	current := SafeDiv(actual, goal)
	return &models.PacingMetrics{
		CampaignName:           t.CampaignName,
		Terms:                  t,
		Synthesized:            synthesized,
		DaysIntoCampaign:       daysInto,
		DaysUntilEnd:           daysLeft,
		ActualImpressions:      actual,
		ExpectedImpressions:    expected,
		ImpressionGoal:         goal,
		CurrentPacing:          current,
		ExpectedPacing:         SafeDiv(actual, expected),
		YesterdayImpressions:   yesterday,
		NeededDailyImpressions: needed,
		YesterdayVsNeeded:      SafeDiv(yesterday, needed),
		Status:                 ClassifyPacing(current * 100),
	}
}

// referenceDay is the latest date in all, or in fallback when all is empty.
func referenceDay(all, fallback []models.Row) (time.Time, bool) {
	for _, set := range [][]models.Row{ExcludeTotals(all), fallback} {
		if len(set) > 0 {
			_, last := dateRange(set)
			return last, true
		}
	}
	return time.Time{}, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

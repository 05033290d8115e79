package engine

import (
	"math"
	"sort"
	"time"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/models"
)

type Mode string

const (
	ModeDaily  Mode = "daily"
	ModeWeekly Mode = "weekly"
)

// Detect runs the detector for the given mode. Unknown modes yield nothing.
func Detect(rows []models.Row, mode Mode, th Thresholds) []models.Anomaly {
	switch mode {
	case ModeDaily:
		return DetectDaily(rows, th)
	case ModeWeekly:
		return DetectWeekly(rows, th)
	}
	return []models.Anomaly{}
}

// DetectDaily flags, per campaign and metric, days whose value is more than
// DailyStdDevMultiplier population standard deviations from the campaign's
// daily mean and more than DailyMinRelativePercent away from it in relative
// terms. A zero mean never flags.
func DetectDaily(rows []models.Row, th Thresholds) []models.Anomaly {
	out := []models.Anomaly{}
	groups := GroupByCampaign(ExcludeTotals(rows))
	for _, name := range campaignNames(groups) {
		series := dailySeries(groups[name])
		for _, m := range th.metrics() {
			values := make([]float64, len(series))
			for i, d := range series {
				values[i] = d.sums.Value(m)
			}
			mean, sd := meanStdDev(values)
			if mean == 0 {
				continue
			}
			for i, v := range values {
				diff := v - mean
				rel := diff / mean * 100
				if math.Abs(diff) <= th.DailyStdDevMultiplier*sd || math.Abs(rel) <= th.DailyMinRelativePercent {
					continue
				}
				day := series[i].date
				out = append(out, models.Anomaly{
					CampaignName:     name,
					PeriodLabel:      dates.Key(day),
					PeriodStart:      day,
					PeriodEnd:        day,
					Metric:           m,
					BaselineMean:     mean,
					ActualValue:      v,
					DeviationPercent: rel,
					PeriodType:       models.PeriodDaily,
					Check:            models.CheckDailyOutlier,
					Direction:        direction(diff),
				})
			}
		}
	}
	sortAnomalies(out)
	return out
}

type week struct {
	start time.Time
	sums  models.Sums
	days  int
}

// DetectWeekly groups each campaign into Sunday-start weeks and runs two
// checks per metric over the weeks holding at least MinRowsPerWeek days:
// week-over-week change against the calendar week immediately before, when
// that week is eligible too, then deviation from the mean of all eligible
// weeks for weeks the first check left alone.
// Campaigns with fewer than MinWeeks weeks are skipped.
func DetectWeekly(rows []models.Row, th Thresholds) []models.Anomaly {
	out := []models.Anomaly{}
	groups := GroupByCampaign(ExcludeTotals(rows))
	for _, name := range campaignNames(groups) {
		weeks := weeklySeries(groups[name])
		if len(weeks) < th.MinWeeks {
			continue
		}
		eligible := make([]week, 0, len(weeks))
		for _, w := range weeks {
			if w.days >= th.MinRowsPerWeek {
				eligible = append(eligible, w)
			}
		}
		if len(eligible) < 2 {
			continue
		}
		for _, m := range th.metrics() {
			out = append(out, weeklyAnomalies(name, eligible, m, th)...)
		}
	}
	sortAnomalies(out)
	return out
}

func weeklyAnomalies(name string, weeks []week, m models.Metric, th Thresholds) []models.Anomaly {
	var out []models.Anomaly
	values := make([]float64, len(weeks))
	for i, w := range weeks {
		values[i] = w.sums.Value(m)
	}

	flagged := make([]bool, len(weeks))
	for i := 1; i < len(weeks); i++ {
		if !weeks[i-1].start.Equal(weeks[i].start.AddDate(0, 0, -7)) {
			continue
		}
		prev, cur := values[i-1], values[i]
		if prev == 0 {
			continue
		}
		change := (cur - prev) / prev * 100
		if math.Abs(change) <= th.WeekOverWeekPercent {
			continue
		}
		flagged[i] = true
		out = append(out, weekAnomaly(name, weeks[i], m, prev, cur, change, models.CheckWeekOverWeek))
	}

	mean, sd := meanStdDev(values)
	if mean == 0 {
		return out
	}
	for i, v := range values {
		if flagged[i] {
			continue
		}
		diff := v - mean
		dev := diff / mean * 100
		if math.Abs(dev) <= th.WeekVsAveragePercent || math.Abs(diff) <= th.WeeklyStdDevMultiplier*sd {
			continue
		}
		out = append(out, weekAnomaly(name, weeks[i], m, mean, v, dev, models.CheckWeekVsAverage))
	}
	return out
}

func weekAnomaly(name string, w week, m models.Metric, baseline, actual, dev float64, check models.AnomalyCheck) models.Anomaly {
	end := w.start.AddDate(0, 0, 6)
	return models.Anomaly{
		CampaignName:     name,
		PeriodLabel:      dates.Key(w.start) + " to " + dates.Key(end),
		PeriodStart:      w.start,
		PeriodEnd:        end,
		Metric:           m,
		BaselineMean:     baseline,
		ActualValue:      actual,
		DeviationPercent: dev,
		PeriodType:       models.PeriodWeekly,
		Check:            check,
		Direction:        direction(actual - baseline),
	}
}

// weeklySeries sums one campaign's rows per Sunday-start week, ascending.
// days counts distinct dates seen in the week.
func weeklySeries(rows []models.Row) []week {
	idx := make(map[time.Time]int)
	var out []week
	for _, d := range dailySeries(rows) {
		ws := dates.WeekStart(d.date)
		i, ok := idx[ws]
		if !ok {
			i = len(out)
			idx[ws] = i
			out = append(out, week{start: ws})
		}
		out[i].sums.Merge(d.sums)
		out[i].days++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func direction(diff float64) string {
	if diff < 0 {
		return "drop"
	}
	return "spike"
}

// sortAnomalies orders by descending absolute deviation; ties fall back to
// campaign, period, metric and check so output is stable.
func sortAnomalies(a []models.Anomaly) {
	sort.SliceStable(a, func(i, j int) bool {
		di, dj := math.Abs(a[i].DeviationPercent), math.Abs(a[j].DeviationPercent)
		if di != dj {
			return di > dj
		}
		if a[i].CampaignName != a[j].CampaignName {
			return a[i].CampaignName < a[j].CampaignName
		}
		if !a[i].PeriodStart.Equal(a[j].PeriodStart) {
			return a[i].PeriodStart.Before(a[j].PeriodStart)
		}
		if a[i].Metric != a[j].Metric {
			return a[i].Metric < a[j].Metric
		}
		return a[i].Check < a[j].Check
	})
}

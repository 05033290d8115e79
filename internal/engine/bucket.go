// Package engine holds the pure computations behind the dashboard: bucketing,
// rolling windows, anomaly detection, pacing and derived KPIs. Every function
// takes rows and returns freshly built values; nothing here does I/O or keeps
// state between calls.
package engine

import (
	"sort"
	"time"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/models"
)

// ExcludeTotals drops the summary sentinel and rows without a usable date.
func ExcludeTotals(rows []models.Row) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if r.IsTotals() || r.Date.IsZero() {
			continue
		}
		out = append(out, r)
	}
	return out
}

type DateBucketOptions struct {
	// FillGaps emits zero buckets for days missing between the first and last observed date.
	FillGaps bool
}

// BucketByDate sums rows per calendar day, ascending by date.
func BucketByDate(rows []models.Row, opts DateBucketOptions) []models.DailyBucket {
	rows = ExcludeTotals(rows)
	if len(rows) == 0 {
		return []models.DailyBucket{}
	}
	byDay := make(map[time.Time]*models.DailyBucket)
	for _, r := range rows {
		d := dates.Day(r.Date)
		b, ok := byDay[d]
		if !ok {
			b = &models.DailyBucket{Key: dates.Key(d), Date: d}
			byDay[d] = b
		}
		b.Sums.Add(r)
		b.Rows++
	}

	if opts.FillGaps {
		first, last := dateRange(rows)
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			if _, ok := byDay[d]; !ok {
				byDay[d] = &models.DailyBucket{Key: dates.Key(d), Date: d}
			}
		}
	}

	out := make([]models.DailyBucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// BucketByDayOfWeek sums rows into seven buckets, Sunday first. Days with no
// rows stay at zero; nothing is interpolated.
func BucketByDayOfWeek(rows []models.Row) [7]models.DayOfWeekBucket {
	var out [7]models.DayOfWeekBucket
	for i := range out {
		wd := time.Weekday(i)
		out[i] = models.DayOfWeekBucket{Key: wd.String(), Weekday: wd}
	}
	for _, r := range ExcludeTotals(rows) {
		b := &out[r.Date.Weekday()]
		b.Sums.Add(r)
		b.Rows++
	}
	return out
}

// GroupByCampaign splits rows by campaign, each slice sorted by date.
func GroupByCampaign(rows []models.Row) models.CampaignGroup {
	g := make(models.CampaignGroup)
	for _, r := range rows {
		g[r.CampaignName] = append(g[r.CampaignName], r)
	}
	for name := range g {
		sortByDate(g[name])
	}
	return g
}

func campaignNames(g models.CampaignGroup) []string {
	names := make([]string, 0, len(g))
	for n := range g {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortByDate(rows []models.Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
}

// dateRange returns the first and last day present. rows must not be empty.
func dateRange(rows []models.Row) (time.Time, time.Time) {
	first, last := dates.Day(rows[0].Date), dates.Day(rows[0].Date)
	for _, r := range rows[1:] {
		d := dates.Day(r.Date)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last
}

type dayTotal struct {
	date time.Time
	sums models.Sums
}

// dailySeries sums rows per day for one campaign, ascending.
func dailySeries(rows []models.Row) []dayTotal {
	idx := make(map[time.Time]int)
	var out []dayTotal
	for _, r := range rows {
		d := dates.Day(r.Date)
		i, ok := idx[d]
		if !ok {
			i = len(out)
			idx[d] = i
			out = append(out, dayTotal{date: d})
		}
		out[i].sums.Add(r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}

package engine

import (
	"strconv"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/models"
)

// PeriodLength is a rolling window size in days.
type PeriodLength int

const (
	Period7  PeriodLength = 7
	Period14 PeriodLength = 14
	Period30 PeriodLength = 30
)

// StandardPeriods are the lengths offered for period-over-period comparison.
var StandardPeriods = []PeriodLength{Period7, Period14, Period30}

func (p PeriodLength) Days() int { return int(p) }

func (p PeriodLength) String() string { return strconv.Itoa(int(p)) + "d" }

// ParsePeriod accepts "7", "14", "30" with an optional "d" suffix.
func ParsePeriod(s string) (PeriodLength, bool) {
	if n := len(s); n > 0 && (s[n-1] == 'd' || s[n-1] == 'D') {
		s = s[:n-1]
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	for _, p := range StandardPeriods {
		if int(p) == v {
			return p, true
		}
	}
	return 0, false
}

// Windows partitions rows into complete, contiguous windows of length p,
// most recent first. The first window ends on the latest date present; each
// further window ends the day before the previous one starts. A window whose
// start would fall before the earliest date is not emitted, and rows older
// than the last complete window are left out.
func Windows(rows []models.Row, p PeriodLength) []models.Window {
	rows = ExcludeTotals(rows)
	if len(rows) == 0 || p <= 0 {
		return []models.Window{}
	}
	first, last := dateRange(rows)

	var out []models.Window
	for end := last; ; end = end.AddDate(0, 0, -p.Days()) {
		start := end.AddDate(0, 0, -p.Days()+1)
		if start.Before(first) {
			break
		}
		out = append(out, models.Window{Start: start, End: end})
	}
	if len(out) == 0 {
		return []models.Window{}
	}

	oldest := out[len(out)-1].Start
	for _, r := range rows {
		d := dates.Day(r.Date)
		if d.Before(oldest) {
			continue
		}
		i := dates.DaysBetween(d, last) / p.Days()
		out[i].Sums.Add(r)
		out[i].RowCount++
	}
	return out
}

// AvailablePeriods returns the candidate lengths (StandardPeriods when none
// are given) for which the data spans at least two complete windows.
func AvailablePeriods(rows []models.Row, candidates ...PeriodLength) []PeriodLength {
	if len(candidates) == 0 {
		candidates = StandardPeriods
	}
	rows = ExcludeTotals(rows)
	out := []PeriodLength{}
	if len(rows) == 0 {
		return out
	}
	first, last := dateRange(rows)
	span := dates.DaysBetween(first, last) + 1
	for _, p := range candidates {
		if p > 0 && span >= 2*p.Days() {
			out = append(out, p)
		}
	}
	return out
}

// ComparePeriods pairs every complete window with the one before it and
// reports percent changes for each metric and KPI. Fewer than two windows
// yields an empty result.
func ComparePeriods(rows []models.Row, p PeriodLength, assumedCPM float64) []models.PeriodComparison {
	ws := Windows(rows, p)
	out := []models.PeriodComparison{}
	for i := 0; i+1 < len(ws); i++ {
		cur, prev := ws[i], ws[i+1]
		cs, ps := Summarize(cur.Sums, assumedCPM), Summarize(prev.Sums, assumedCPM)
		deltas := make(map[models.Metric]float64, len(models.AllMetrics))
		for _, m := range models.AllMetrics {
			deltas[m] = PercentChange(cur.Sums.Value(m), prev.Sums.Value(m))
		}
		out = append(out, models.PeriodComparison{
			Current:  cur,
			Previous: prev,
			Deltas:   deltas,
			KPIDeltas: map[string]float64{
				"ctr":  PercentChange(cs.CTR, ps.CTR),
				"roas": PercentChange(cs.ROAS, ps.ROAS),
				"aov":  PercentChange(cs.AOV, ps.AOV),
			},
			CurrentSummary:  cs,
			PreviousSummary: ps,
		})
	}
	return out
}

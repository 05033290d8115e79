package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/engine"
	"github.com/AngelCh415/adpulse/internal/models"
)

// Skip reasons.
const (
	SkipTotals          = "totals_row"
	SkipInvalidDate     = "invalid_date"
	SkipMissingCampaign = "missing_campaign"
	SkipFiltered        = "filtered_campaign"
)

type Options struct {
	ParseDate dates.Parser
	Keep      engine.CampaignFilter
	// Since drops rows dated before it when set.
	Since *time.Time
}

type Skip struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
}

type Report struct {
	Accepted int    `json:"accepted"`
	Skipped  []Skip `json:"skipped"`
}

// SkipCounts tallies skips by reason.
func (r Report) SkipCounts() map[string]int {
	out := map[string]int{}
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}

// NormalizeRecords turns raw export records into rows. Bad dates, the totals
// sentinel and filtered campaigns are reported and dropped; numeric fields
// that do not parse become 0.
func NormalizeRecords(records []models.RawRecord, opts Options) ([]models.Row, Report) {
	parse := opts.ParseDate
	if parse == nil {
		parse = dates.Parse
	}
	rep := Report{Skipped: []Skip{}}
	rows := make([]models.Row, 0, len(records))
	for i, rec := range records {
		rawDate := strings.TrimSpace(field(rec, models.ColDate))
		if strings.EqualFold(rawDate, models.TotalsLabel) {
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Reason: SkipTotals})
			continue
		}
		d, err := parse(rawDate)
		if err != nil {
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Reason: SkipInvalidDate, Value: rawDate})
			continue
		}
		if opts.Since != nil && d.Before(dates.Day(*opts.Since)) {
			continue
		}
		name := strings.TrimSpace(field(rec, models.ColCampaign))
		if strings.EqualFold(name, models.TotalsLabel) {
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Reason: SkipTotals})
			continue
		}
		if name == "" {
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Reason: SkipMissingCampaign})
			continue
		}
		if opts.Keep != nil && !opts.Keep(name) {
			rep.Skipped = append(rep.Skipped, Skip{Index: i, Reason: SkipFiltered, Value: name})
			continue
		}
		rows = append(rows, models.Row{
			Date:         d,
			CampaignName: name,
			Impressions:  count(lookup(rec, models.ColImpressions)),
			Clicks:       count(lookup(rec, models.ColClicks)),
			Transactions: count(lookup(rec, models.ColTransactions)),
			Revenue:      ParseNumber(lookup(rec, models.ColRevenue)),
			Spend:        ParseNumber(lookup(rec, models.ColSpend)),
		})
	}
	rep.Accepted = len(rows)
	return rows, rep
}

// maxCount is 2^63, the first float64 past the int64 range.
const maxCount = float64(math.MaxInt64)

// count reads a whole-number metric. Values too large for int64 are treated
// like any other unusable input and become 0.
func count(v any) int64 {
	f := math.Round(ParseNumber(v))
	if f >= maxCount {
		return 0
	}
	return int64(f)
}

// lookup finds a column, matching the name case-insensitively.
func lookup(rec models.RawRecord, col string) any {
	if v, ok := rec[col]; ok {
		return v
	}
	for k, v := range rec {
		if strings.EqualFold(strings.TrimSpace(k), col) {
			return v
		}
	}
	return nil
}

// field reads a column as text.
func field(rec models.RawRecord, col string) string {
	switch t := lookup(rec, col).(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return strings.Trim(string(b), `"`)
	}
}

// ParseNumber reads a metric value that may be a JSON number or a string with
// thousands separators, currency symbols or a percent sign. Anything that
// does not parse, is negative or is not finite yields 0.
func ParseNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0
		}
		f = p
	case string:
		s := strings.Map(func(r rune) rune {
			switch r {
			case ',', '$', '€', '£', '%', ' ', '\u00a0':
				return -1
			}
			return r
		}, strings.TrimSpace(t))
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/engine"
	"github.com/AngelCh415/adpulse/internal/models"
	"github.com/AngelCh415/adpulse/internal/store"
	"github.com/AngelCh415/adpulse/internal/telemetry"
)

var (
	ErrInvalidPeriod = errors.New("invalid period: want 7, 14 or 30")
	ErrInvalidMode   = errors.New("invalid mode: want daily or weekly")
	ErrInvalidRange  = errors.New("invalid date range")
)

// Service answers dashboard queries by reading the store and running the
// engine on the selected rows.
type Service struct {
	st   *store.MemoryStore
	th   engine.Thresholds
	keep engine.CampaignFilter
	log  *slog.Logger
	tel  *telemetry.Metrics
}

func NewService(st *store.MemoryStore, th engine.Thresholds, keep engine.CampaignFilter, log *slog.Logger, tel *telemetry.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &Service{st: st, th: th, keep: keep, log: log, tel: tel}
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = norm(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

type filter struct {
	from, to  time.Time
	campaigns map[string]struct{}
}

func parseFilter(v url.Values) (filter, error) {
	var f filter
	var err error
	if s := v.Get("from"); s != "" {
		if f.from, err = dates.Parse(s); err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
	}
	if s := v.Get("to"); s != "" {
		if f.to, err = dates.Parse(s); err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
	}
	if !f.from.IsZero() && !f.to.IsZero() && f.to.Before(f.from) {
		return f, ErrInvalidRange
	}
	f.campaigns = csvSet(v.Get("campaign"))
	return f, nil
}

// rows applies the exclusion filter, the date range and the campaign set.
func (s *Service) rows(f filter) []models.Row {
	return s.st.Query(f.from, f.to, func(r models.Row) bool {
		if s.keep != nil && !s.keep(r.CampaignName) {
			return false
		}
		if len(f.campaigns) > 0 {
			if _, ok := f.campaigns[norm(r.CampaignName)]; !ok {
				return false
			}
		}
		return true
	})
}

// contextRows is every row that survives the exclusion filter, regardless of the
// request's campaign or date selection.
func (s *Service) contextRows() []models.Row {
	return s.st.Query(time.Time{}, time.Time{}, func(r models.Row) bool {
		return s.keep == nil || s.keep(r.CampaignName)
	})
}

func (s *Service) Daily(v url.Values) ([]models.DailyBucket, error) {
	f, err := parseFilter(v)
	if err != nil {
		return nil, err
	}
	fill, _ := strconv.ParseBool(v.Get("fill_gaps"))
	return engine.BucketByDate(s.rows(f), engine.DateBucketOptions{FillGaps: fill}), nil
}

func (s *Service) Weekday(v url.Values) ([7]models.DayOfWeekBucket, error) {
	f, err := parseFilter(v)
	if err != nil {
		return [7]models.DayOfWeekBucket{}, err
	}
	return engine.BucketByDayOfWeek(s.rows(f)), nil
}

func parsePeriod(v url.Values) (engine.PeriodLength, error) {
	p, ok := engine.ParsePeriod(v.Get("period"))
	if !ok {
		return 0, ErrInvalidPeriod
	}
	return p, nil
}

func (s *Service) Windows(v url.Values) ([]models.Window, error) {
	p, err := parsePeriod(v)
	if err != nil {
		return nil, err
	}
	f, err := parseFilter(v)
	if err != nil {
		return nil, err
	}
	return engine.Windows(s.rows(f), p), nil
}

// Periods lists the period lengths with at least two complete windows.
func (s *Service) Periods(v url.Values) ([]int, error) {
	f, err := parseFilter(v)
	if err != nil {
		return nil, err
	}
	out := []int{}
	for _, p := range engine.AvailablePeriods(s.rows(f)) {
		out = append(out, p.Days())
	}
	return out, nil
}

func (s *Service) Compare(v url.Values) ([]models.PeriodComparison, error) {
	p, err := parsePeriod(v)
	if err != nil {
		return nil, err
	}
	f, err := parseFilter(v)
	if err != nil {
		return nil, err
	}
	return engine.ComparePeriods(s.rows(f), p, s.th.AssumedCPM), nil
}

func (s *Service) Anomalies(v url.Values) ([]models.Anomaly, error) {
	mode := engine.Mode(norm(v.Get("mode")))
	if mode == "" {
		mode = engine.ModeDaily
	}
	if mode != engine.ModeDaily && mode != engine.ModeWeekly {
		return nil, ErrInvalidMode
	}
	f, err := parseFilter(v)
	if err != nil {
		return nil, err
	}
	out := engine.Detect(s.rows(f), mode, s.th)
	if n := len(out); n > 0 {
		s.tel.AnomaliesFlagged.WithLabelValues(string(mode)).Add(float64(n))
		s.log.Debug("anomalies detected", slog.String("mode", string(mode)), slog.Int("count", n))
	}
	return out, nil
}

// Pacing returns pacing for the requested campaigns, or for every campaign
// with delivery or a contract when none is named. Campaigns with neither are
// left out; if that leaves nothing, store.ErrNotFound is returned.
func (s *Service) Pacing(v url.Values) ([]models.PacingMetrics, error) {
	f, err := parseFilter(v)
	if err != nil {
		return nil, err
	}
	all := s.contextRows()
	groups := engine.GroupByCampaign(all)

	names := map[string]struct{}{}
	for name := range groups {
		names[name] = struct{}{}
	}
	for _, t := range s.st.Contracts() {
		if s.keep == nil || s.keep(t.CampaignName) {
			names[t.CampaignName] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		if len(f.campaigns) > 0 {
			if _, ok := f.campaigns[norm(name)]; !ok {
				continue
			}
		}
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	out := []models.PacingMetrics{}
	for _, name := range sorted {
		var terms *models.ContractTerms
		if t, err := s.st.Contract(name); err == nil {
			terms = &t
		}
		if p := engine.ComputePacing(terms, groups[name], all, s.th); p != nil {
			out = append(out, *p)
		}
	}
	if len(out) == 0 && len(f.campaigns) > 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

type SummaryResult struct {
	Total     models.Summary   `json:"total"`
	Campaigns []models.Summary `json:"campaigns"`
}

func (s *Service) Summary(v url.Values) (SummaryResult, error) {
	f, err := parseFilter(v)
	if err != nil {
		return SummaryResult{}, err
	}
	rows := s.rows(f)
	return SummaryResult{
		Total:     engine.Summarize(engine.Total(rows), s.th.AssumedCPM),
		Campaigns: engine.SummarizeCampaigns(rows, s.th.AssumedCPM),
	}, nil
}

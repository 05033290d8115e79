package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/AngelCh415/adpulse/internal/config"
	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/engine"
	"github.com/AngelCh415/adpulse/internal/models"
	"github.com/AngelCh415/adpulse/internal/store"
	"github.com/AngelCh415/adpulse/internal/telemetry"
)

var ErrSinkNotConfigured = errors.New("sink not configured")

type ETL struct {
	c   HTTPClient
	st  *store.MemoryStore
	log *slog.Logger
	cfg config.Config
	tel *telemetry.Metrics
}

func NewETL(c HTTPClient, st *store.MemoryStore, log *slog.Logger, cfg config.Config, tel *telemetry.Metrics) *ETL {
	if log == nil {
		log = slog.Default()
	}
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &ETL{c: c, st: st, log: log, cfg: cfg, tel: tel}
}

type contractResp []struct {
	CampaignName    string      `json:"campaign_name"`
	StartDate       string      `json:"start_date"`
	EndDate         string      `json:"end_date"`
	Budget          json.Number `json:"budget"`
	CPM             json.Number `json:"cpm"`
	ImpressionsGoal json.Number `json:"impressions_goal"`
}

// Run pulls delivery records (and contracts when a URL is configured) and
// stores them. Rows dated before since are ignored.
func (e *ETL) Run(ctx context.Context, since *time.Time) (Report, error) {
	var recs []models.RawRecord
	if err := GetJSONWithRetry(ctx, e.c, e.cfg.AdsURL, &recs); err != nil {
		return Report{}, fmt.Errorf("fetch delivery: %w", err)
	}
	rep := e.ingest(ctx, recs, since)

	if e.cfg.ContractsURL != "" {
		var cResp contractResp
		if err := GetJSONWithRetry(ctx, e.c, e.cfg.ContractsURL, &cResp); err != nil {
			return rep, fmt.Errorf("fetch contracts: %w", err)
		}
		n := 0
		for _, c := range cResp {
			t, err := contractTerms(c.CampaignName, c.StartDate, c.EndDate, ParseNumber(c.Budget), ParseNumber(c.CPM), ParseNumber(c.ImpressionsGoal))
			if err != nil {
				e.log.WarnContext(ctx, "contract skipped", slog.String("campaign", c.CampaignName), slog.String("err", err.Error()))
				continue
			}
			e.st.UpsertContract(t)
			n++
		}
		e.log.InfoContext(ctx, "contracts loaded", slog.Int("count", n))
	}
	return rep, nil
}

// Ingest normalizes pushed records and stores the accepted rows.
func (e *ETL) Ingest(ctx context.Context, recs []models.RawRecord) Report {
	return e.ingest(ctx, recs, nil)
}

func (e *ETL) ingest(ctx context.Context, recs []models.RawRecord, since *time.Time) Report {
	rows, rep := NormalizeRecords(recs, Options{
		ParseDate: dates.Parse,
		Keep:      e.cfg.CampaignFilter(),
		Since:     since,
	})
	for _, s := range rep.Skipped {
		e.log.DebugContext(ctx, "row skipped", slog.Int("index", s.Index), slog.String("reason", s.Reason), slog.String("value", s.Value))
		e.tel.RowsSkipped.WithLabelValues(s.Reason).Inc()
	}
	written := e.st.UpsertRows(rows)
	e.tel.RowsIngested.Add(float64(rep.Accepted))
	e.log.InfoContext(ctx, "ingest complete",
		slog.Int("received", len(recs)),
		slog.Int("accepted", rep.Accepted),
		slog.Int("skipped", len(rep.Skipped)),
		slog.Int("day_campaign_pairs", written),
	)
	return rep
}

// contractTerms validates and builds terms from loosely typed input.
func contractTerms(name, start, end string, budget, cpm, goal float64) (models.ContractTerms, error) {
	if name == "" {
		return models.ContractTerms{}, errors.New("campaign name required")
	}
	s, err := dates.Parse(start)
	if err != nil {
		return models.ContractTerms{}, fmt.Errorf("start date: %w", err)
	}
	en, err := dates.Parse(end)
	if err != nil {
		return models.ContractTerms{}, fmt.Errorf("end date: %w", err)
	}
	if en.Before(s) {
		return models.ContractTerms{}, errors.New("end date before start date")
	}
	return models.ContractTerms{CampaignName: name, StartDate: s, EndDate: en, Budget: budget, CPM: cpm, ImpressionsGoal: goal}, nil
}

type exportRecord struct {
	Date         string  `json:"date"`
	CampaignName string  `json:"campaign_name"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Transactions int64   `json:"transactions"`
	Revenue      float64 `json:"revenue"`
	Spend        float64 `json:"spend"`
	CTR          float64 `json:"ctr"`
	ROAS         float64 `json:"roas"`
	AOV          float64 `json:"aov"`
}

// ExportDay posts the per-campaign summaries for one day to the sink, signed
// with HMAC-SHA256 in X-Signature.
func (e *ETL) ExportDay(ctx context.Context, date time.Time) (int, error) {
	if e.cfg.SinkURL == "" || e.cfg.SinkSecret == "" {
		return 0, ErrSinkNotConfigured
	}
	d := dates.Day(date)
	rows := e.st.Query(d, d, nil)
	payload := e.toExport(d, engine.SummarizeCampaigns(rows, e.cfg.Thresholds.AssumedCPM))
	if len(payload) == 0 {
		return 0, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	mac := hmac.New(sha256.New, []byte(e.cfg.SinkSecret))
	mac.Write(b)
	sig := hex.EncodeToString(mac.Sum(nil))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.SinkURL, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)
	resp, err := e.c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("export sink non-2xx: %d", resp.StatusCode)
	}
	e.log.InfoContext(ctx, "export complete", slog.String("date", dates.Key(d)), slog.Int("records", len(payload)))
	return len(payload), nil
}

func (e *ETL) toExport(d time.Time, sums []models.Summary) []exportRecord {
	out := make([]exportRecord, 0, len(sums))
	for _, s := range sums {
		out = append(out, exportRecord{
			Date:         dates.Key(d),
			CampaignName: s.CampaignName,
			Impressions:  s.Sums.Impressions,
			Clicks:       s.Sums.Clicks,
			Transactions: s.Sums.Transactions,
			Revenue:      round2(s.Sums.Revenue),
			Spend:        round2(s.Sums.Spend),
			CTR:          round3(s.CTR),
			ROAS:         round2(s.ROAS),
			AOV:          round2(s.AOV),
		})
	}
	return out
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }

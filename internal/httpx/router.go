package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/ingest"
	"github.com/AngelCh415/adpulse/internal/metrics"
	"github.com/AngelCh415/adpulse/internal/models"
	"github.com/AngelCh415/adpulse/internal/store"
	"github.com/AngelCh415/adpulse/internal/telemetry"
	"github.com/AngelCh415/adpulse/internal/utils"
)

type handlers struct {
	log      *slog.Logger
	etl      *ingest.ETL
	mSvc     *metrics.Service
	st       *store.MemoryStore
	validate *validator.Validate
}

func NewRouter(log *slog.Logger, etl *ingest.ETL, mSvc *metrics.Service, st *store.MemoryStore, tel *telemetry.Metrics, gatherer prometheus.Gatherer) http.Handler {
	h := &handlers{log: log, etl: etl, mSvc: mSvc, st: st, validate: validator.New()}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	mux.Use(utils.Instrument(tel))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.Post("/ingest/run", h.ingestRun)
	mux.Post("/rows", h.pushRows)
	mux.Post("/contracts", h.upsertContract)
	mux.Post("/export/run", h.exportRun)

	// Prometheus owns /metrics itself, so the query routes are registered flat.
	mux.Get("/metrics/daily", query(h, h.mSvc.Daily))
	mux.Get("/metrics/weekday", query(h, h.mSvc.Weekday))
	mux.Get("/metrics/windows", query(h, h.mSvc.Windows))
	mux.Get("/metrics/periods", query(h, h.mSvc.Periods))
	mux.Get("/metrics/compare", query(h, h.mSvc.Compare))
	mux.Get("/metrics/anomalies", query(h, h.mSvc.Anomalies))
	mux.Get("/metrics/pacing", query(h, h.mSvc.Pacing))
	mux.Get("/metrics/summary", query(h, h.mSvc.Summary))

	return mux
}

// query adapts a service lookup into a JSON GET handler.
func query[T any](h *handlers, fn func(url.Values) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		render.JSON(w, r, v)
	}
}

func (h *handlers) ingestRun(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if q := r.URL.Query().Get("since"); q != "" {
		t, err := dates.Parse(q)
		if err != nil {
			http.Error(w, "bad since date", http.StatusBadRequest)
			return
		}
		since = &t
	}
	rep, err := h.etl.Run(r.Context(), since)
	if err != nil {
		h.log.ErrorContext(r.Context(), "ingest failed", slog.String("err", err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, rep)
}

func (h *handlers) pushRows(w http.ResponseWriter, r *http.Request) {
	var recs []models.RawRecord
	if err := render.DecodeJSON(r.Body, &recs); err != nil {
		http.Error(w, "body must be a JSON array of records", http.StatusBadRequest)
		return
	}
	if err := h.validate.Var(recs, "required,min=1"); err != nil {
		http.Error(w, "no records", http.StatusBadRequest)
		return
	}
	render.JSON(w, r, h.etl.Ingest(r.Context(), recs))
}

type contractRequest struct {
	CampaignName    string  `json:"campaign_name" validate:"required"`
	StartDate       string  `json:"start_date" validate:"required"`
	EndDate         string  `json:"end_date" validate:"required"`
	Budget          float64 `json:"budget" validate:"gte=0"`
	CPM             float64 `json:"cpm" validate:"gte=0"`
	ImpressionsGoal float64 `json:"impressions_goal" validate:"gte=0"`
}

func (h *handlers) upsertContract(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := dates.Parse(req.StartDate)
	if err != nil {
		http.Error(w, "start_date: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := dates.Parse(req.EndDate)
	if err != nil {
		http.Error(w, "end_date: "+err.Error(), http.StatusBadRequest)
		return
	}
	terms := models.ContractTerms{
		CampaignName:    req.CampaignName,
		StartDate:       start,
		EndDate:         end,
		Budget:          req.Budget,
		CPM:             req.CPM,
		ImpressionsGoal: req.ImpressionsGoal,
	}
	if err := h.validate.Struct(terms); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.st.UpsertContract(terms)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, terms)
}

func (h *handlers) exportRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("date")
	if q == "" {
		http.Error(w, "date required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	t, err := dates.Parse(q)
	if err != nil {
		http.Error(w, "bad date", http.StatusBadRequest)
		return
	}
	n, err := h.etl.ExportDay(r.Context(), t)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, ingest.ErrSinkNotConfigured) {
			code = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), code)
		return
	}
	render.JSON(w, r, map[string]any{"exported": n})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dates.ErrInvalidDate),
		errors.Is(err, metrics.ErrInvalidPeriod),
		errors.Is(err, metrics.ErrInvalidMode),
		errors.Is(err, metrics.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.ErrorContext(r.Context(), "query failed", slog.String("path", r.URL.Path), slog.String("err", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

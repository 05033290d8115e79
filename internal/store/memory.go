package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AngelCh415/adpulse/internal/dates"
	"github.com/AngelCh415/adpulse/internal/models"
)

var ErrNotFound = errors.New("not found")

type rowKey struct {
	Date     time.Time
	Campaign string
}

// MemoryStore keeps one summed row per (day, campaign) plus the contract
// terms per campaign.
type MemoryStore struct {
	mu        sync.RWMutex
	rows      map[rowKey]models.Row
	contracts map[string]models.ContractTerms
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:      make(map[rowKey]models.Row),
		contracts: make(map[string]models.ContractTerms),
	}
}

// UpsertRows replaces whatever was stored for each (day, campaign) present in
// the batch with the batch's sum for that pair, so re-ingesting an export is
// idempotent. Returns the number of pairs written.
func (s *MemoryStore) UpsertRows(rows []models.Row) int {
	batch := make(map[rowKey]models.Row)
	for _, r := range rows {
		if r.IsTotals() || r.Date.IsZero() {
			continue
		}
		k := rowKey{Date: dates.Day(r.Date), Campaign: r.CampaignName}
		agg, ok := batch[k]
		if !ok {
			agg = models.Row{Date: k.Date, CampaignName: k.Campaign}
		}
		agg.Impressions += max0(r.Impressions)
		agg.Clicks += max0(r.Clicks)
		agg.Transactions += max0(r.Transactions)
		agg.Revenue += maxf(r.Revenue)
		agg.Spend += maxf(r.Spend)
		batch[k] = agg
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range batch {
		s.rows[k] = r
	}
	return len(batch)
}

func (s *MemoryStore) UpsertContract(t models.ContractTerms) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[t.CampaignName] = t
}

func (s *MemoryStore) Contract(campaign string) (models.ContractTerms, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.contracts[campaign]
	if !ok {
		return models.ContractTerms{}, ErrNotFound
	}
	return t, nil
}

// Contracts returns every stored contract ordered by campaign.
func (s *MemoryStore) Contracts() []models.ContractTerms {
	s.mu.RLock()
	out := make([]models.ContractTerms, 0, len(s.contracts))
	for _, t := range s.contracts {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignName < out[j].CampaignName })
	return out
}

func (s *MemoryStore) All() []models.Row {
	return s.Query(time.Time{}, time.Time{}, nil)
}

// Query returns rows dated within [from, to] that pass f, ordered by date then
// campaign. A zero from or to leaves that side open.
func (s *MemoryStore) Query(from, to time.Time, f func(models.Row) bool) []models.Row {
	s.mu.RLock()
	out := make([]models.Row, 0, len(s.rows))
	for k, v := range s.rows {
		if !from.IsZero() && k.Date.Before(dates.Day(from)) {
			continue
		}
		if !to.IsZero() && k.Date.After(dates.Day(to)) {
			continue
		}
		if f == nil || f(v) {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CampaignName < out[j].CampaignName
	})
	return out
}

func max0(i int64) int64 {
	if i < 0 {
		return 0
	}
	return i
}
func maxf(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

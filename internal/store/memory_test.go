package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adpulse/internal/models"
)

func d(day int) time.Time { return time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC) }

func TestUpsertRows_SumsBatchAndReplaces(t *testing.T) {
	st := NewMemoryStore()
	n := st.UpsertRows([]models.Row{
		{Date: d(1), CampaignName: "A", Impressions: 100, Revenue: 10},
		{Date: d(1).Add(5 * time.Hour), CampaignName: "A", Impressions: 50, Revenue: 5},
		{Date: d(1), CampaignName: "B", Impressions: 7},
		{Date: d(1), CampaignName: "Totals", Impressions: 999},
		{CampaignName: "A", Impressions: 1},
		{Date: d(2), CampaignName: "A", Impressions: -4, Spend: -1},
	})
	assert.Equal(t, 3, n)

	rows := st.All()
	require.Len(t, rows, 3)
	assert.Equal(t, models.Row{Date: d(1), CampaignName: "A", Impressions: 150, Revenue: 15}, rows[0])
	assert.Equal(t, "B", rows[1].CampaignName)
	assert.Equal(t, models.Row{Date: d(2), CampaignName: "A"}, rows[2])

	// A second export for day 1 replaces, it does not add.
	st.UpsertRows([]models.Row{{Date: d(1), CampaignName: "A", Impressions: 120}})
	rows = st.All()
	require.Len(t, rows, 3)
	assert.Equal(t, int64(120), rows[0].Impressions)
	assert.Equal(t, int64(7), rows[1].Impressions)
}

func TestQuery(t *testing.T) {
	st := NewMemoryStore()
	for i := 1; i <= 5; i++ {
		st.UpsertRows([]models.Row{
			{Date: d(i), CampaignName: "B", Impressions: int64(i)},
			{Date: d(i), CampaignName: "A", Impressions: int64(i * 10)},
		})
	}

	got := st.Query(d(2), d(3), nil)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"A", "B", "A", "B"}, []string{got[0].CampaignName, got[1].CampaignName, got[2].CampaignName, got[3].CampaignName})
	assert.Equal(t, d(2), got[0].Date)
	assert.Equal(t, d(3), got[3].Date)

	assert.Len(t, st.Query(d(4), time.Time{}, nil), 4)
	assert.Len(t, st.Query(time.Time{}, d(1), nil), 2)

	onlyB := st.Query(time.Time{}, time.Time{}, func(r models.Row) bool { return r.CampaignName == "B" })
	assert.Len(t, onlyB, 5)
}

func TestContracts(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.Contract("A")
	assert.ErrorIs(t, err, ErrNotFound)

	st.UpsertContract(models.ContractTerms{CampaignName: "Z", StartDate: d(1), EndDate: d(30)})
	st.UpsertContract(models.ContractTerms{CampaignName: "A", StartDate: d(1), EndDate: d(10), Budget: 100})
	st.UpsertContract(models.ContractTerms{CampaignName: "A", StartDate: d(1), EndDate: d(10), Budget: 200})

	got, err := st.Contract("A")
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.Budget)

	all := st.Contracts()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].CampaignName)
	assert.Equal(t, "Z", all[1].CampaignName)
}

func TestConcurrentAccess(t *testing.T) {
	st := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			st.UpsertRows([]models.Row{{Date: d(i), CampaignName: "A", Impressions: 1}})
		}(i)
		go func() {
			defer wg.Done()
			_ = st.All()
		}()
	}
	wg.Wait()
	assert.Len(t, st.All(), 20)
}

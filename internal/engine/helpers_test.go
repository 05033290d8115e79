package engine

import (
	"time"

	"github.com/AngelCh415/adpulse/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func row(date, campaign string, impressions int64) models.Row {
	return models.Row{Date: day(date), CampaignName: campaign, Impressions: impressions}
}

// dailyRows returns one row per day starting at start.
func dailyRows(campaign, start string, impressions ...int64) []models.Row {
	d := day(start)
	out := make([]models.Row, 0, len(impressions))
	for i, v := range impressions {
		out = append(out, models.Row{Date: d.AddDate(0, 0, i), CampaignName: campaign, Impressions: v})
	}
	return out
}

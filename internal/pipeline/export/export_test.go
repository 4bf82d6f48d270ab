package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/models"
)

func sample() *models.Itinerary {
	return &models.Itinerary{
		ID:           "itin-1",
		Title:        "Goa Trip",
		Summary:      "Sun & sand",
		TotalBudget:  80000,
		Location:     "Goa",
		Participants: 4,
		Days: []models.Day{
			{Day: 1, Date: "2025-03-01", Theme: "Beaches", TotalCost: 6500.5, Activities: []models.ItineraryActivity{
				{ID: "day1_activity1", TimeSlot: "9:00 AM - 11:30 AM", Title: "Beach walk", Description: "Morning stroll",
					Cost: 0, Venue: &models.ActivityVenue{Name: "Baga Beach", Address: "Baga, North Goa"}},
				{ID: "day1_activity2", TimeSlot: "7:00 PM - 9:00 PM", Title: "Dinner", Description: "Seafood, local",
					Cost: 6500.5, Location: "Calangute"},
			}},
		},
	}
}

// ==========================
// Formats
// ==========================

func TestExport_JSON(t *testing.T) {
	it := sample()

	first, err := Export(it, "json")
	require.NoError(t, err)
	second, err := Export(it, "JSON")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Contains(t, first, "\n  \"id\": \"itin-1\"")
	assert.Contains(t, first, "Sun & sand")

	var back models.Itinerary
	require.NoError(t, json.Unmarshal([]byte(first), &back))
	assert.Equal(t, it.Title, back.Title)

	def, err := Export(it, "")
	require.NoError(t, err)
	assert.Equal(t, first, def)
}

func TestExport_Markdown(t *testing.T) {
	out, err := Export(sample(), "markdown")
	require.NoError(t, err)

	want := "# Goa Trip\n\n" +
		"Sun & sand\n\n" +
		"**Location:** Goa\n" +
		"**Participants:** 4\n" +
		"**Total Budget:** INR 80000\n\n" +
		"## Day 1: Beaches\n\n" +
		"### 9:00 AM - 11:30 AM: Beach walk\n" +
		"Morning stroll\n" +
		"- **Cost:** INR 0\n" +
		"- **Location:** Baga Beach\n" +
		"- **Address:** Baga, North Goa\n" +
		"\n" +
		"### 7:00 PM - 9:00 PM: Dinner\n" +
		"Seafood, local\n" +
		"- **Cost:** INR 6500.5\n" +
		"- **Location:** Calangute\n" +
		"\n" +
		"**Daily Total:** INR 6500.5\n\n"
	assert.Equal(t, want, out)
}

func TestExport_Text(t *testing.T) {
	it := sample()
	it.Currency = "USD"
	it.Days[0].Activities = it.Days[0].Activities[:1]

	out, err := Export(it, "text")
	require.NoError(t, err)

	want := "Goa Trip\n========\n\n" +
		"Sun & sand\n\n" +
		"Location: Goa\n" +
		"Participants: 4\n" +
		"Total Budget: USD 80000\n\n" +
		"Day 1: Beaches\n" +
		"------------------------------\n" +
		"9:00 AM - 11:30 AM: Beach walk\n" +
		"  Morning stroll\n" +
		"  Cost: USD 0\n" +
		"  Location: Baga Beach\n" +
		"\n" +
		"Daily Total: USD 6500.5\n\n"
	assert.Equal(t, want, out)
}

func TestExport_Calendar(t *testing.T) {
	it := sample()
	it.Days = append(it.Days, models.Day{Day: 2, Date: "TBD", Activities: []models.ItineraryActivity{
		{ID: "day2_activity1", TimeSlot: "10:00 AM - 12:00 PM", Title: "Market"},
	}})

	out, err := Export(it, "ics")
	require.NoError(t, err)

	want := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Itinerary LLM//Event//EN\r\n" +
		"X-WR-CALNAME:Goa Trip\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:1-day1_activity1@itin-1\r\n" +
		"SUMMARY:Beach walk\r\n" +
		"DESCRIPTION:Morning stroll\r\n" +
		"LOCATION:Baga Beach\r\n" +
		"DTSTART:20250301T090000\r\n" +
		"DTEND:20250301T113000\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:1-day1_activity2@itin-1\r\n" +
		"SUMMARY:Dinner\r\n" +
		"DESCRIPTION:Seafood\\, local\r\n" +
		"LOCATION:Calangute\r\n" +
		"DTSTART:20250301T190000\r\n" +
		"DTEND:20250301T210000\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:2-day2_activity1@itin-1\r\n" +
		"SUMMARY:Market\r\n" +
		"DESCRIPTION:\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	assert.Equal(t, want, out)
}

func TestExport_CalendarFoldsEmbeddedLineBreaks(t *testing.T) {
	it := sample()
	it.Days[0].Activities[0].Description = "Morning\r\nstroll"

	out, err := Export(it, "ics")
	require.NoError(t, err)

	assert.Contains(t, out, "DESCRIPTION:Morning\\nstroll\r\n")
	assert.Equal(t, strings.Count(out, "\n"), strings.Count(out, "\r\n"))
}

func TestExport_UnknownFormat(t *testing.T) {
	_, err := Export(sample(), "pdf")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExportFailed, apperrors.CodeOf(err))
}

func TestContentType(t *testing.T) {
	f, err := ParseFormat(" Markdown ")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	assert.Equal(t, "text/markdown; charset=utf-8", ContentType(f))
	assert.Equal(t, "application/json", ContentType(FormatJSON))
}

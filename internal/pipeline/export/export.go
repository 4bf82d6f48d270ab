// internal/pipeline/export/export.go
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/finalize"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatICS      Format = "ics"
)

const defaultCurrency = "INR"

var contentTypes = map[Format]string{
	FormatJSON:     "application/json",
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatText:     "text/plain; charset=utf-8",
	FormatICS:      "text/calendar; charset=utf-8",
}

// ParseFormat normalizes a format name; the empty string means json.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "" {
		return FormatJSON, nil
	}
	if _, ok := contentTypes[f]; !ok {
		return "", apperrors.NewExportFailedError(name)
	}
	return f, nil
}

// ContentType returns the MIME type for a supported format.
func ContentType(f Format) string {
	return contentTypes[f]
}

// Export renders an itinerary as json, markdown, text or an ics calendar.
// Output depends only on the itinerary, so identical input exports
// byte-identically.
func Export(it *models.Itinerary, format string) (string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return "", err
	}

	switch f {
	case FormatMarkdown:
		return Markdown(it), nil
	case FormatText:
		return Text(it), nil
	case FormatICS:
		return Calendar(it), nil
	default:
		return JSON(it)
	}
}

// JSON is the itinerary indented by two spaces, without HTML escaping.
func JSON(it *models.Itinerary) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(it); err != nil {
		return "", fmt.Errorf("encode itinerary: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func Markdown(it *models.Itinerary) string {
	cur := currency(it)
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", it.Title)
	fmt.Fprintf(&b, "%s\n\n", it.Summary)
	fmt.Fprintf(&b, "**Location:** %s\n", it.Location)
	fmt.Fprintf(&b, "**Participants:** %d\n", it.Participants)
	fmt.Fprintf(&b, "**Total Budget:** %s %s\n\n", cur, number(it.TotalBudget))

	for _, d := range it.Days {
		fmt.Fprintf(&b, "## Day %d: %s\n\n", d.Day, d.Theme)
		for _, a := range d.Activities {
			fmt.Fprintf(&b, "### %s: %s\n", a.TimeSlot, a.Title)
			fmt.Fprintf(&b, "%s\n", a.Description)
			fmt.Fprintf(&b, "- **Cost:** %s %s\n", cur, number(a.Cost))
			if loc := location(a); loc != "" {
				fmt.Fprintf(&b, "- **Location:** %s\n", loc)
			}
			if addr := address(a); addr != "" {
				fmt.Fprintf(&b, "- **Address:** %s\n", addr)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**Daily Total:** %s %s\n\n", cur, number(d.TotalCost))
	}
	return b.String()
}

func Text(it *models.Itinerary) string {
	cur := currency(it)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n%s\n\n", it.Title, strings.Repeat("=", len(it.Title)))
	fmt.Fprintf(&b, "%s\n\n", it.Summary)
	fmt.Fprintf(&b, "Location: %s\n", it.Location)
	fmt.Fprintf(&b, "Participants: %d\n", it.Participants)
	fmt.Fprintf(&b, "Total Budget: %s %s\n\n", cur, number(it.TotalBudget))

	for _, d := range it.Days {
		fmt.Fprintf(&b, "Day %d: %s\n%s\n", d.Day, d.Theme, strings.Repeat("-", 30))
		for _, a := range d.Activities {
			fmt.Fprintf(&b, "%s: %s\n", a.TimeSlot, a.Title)
			fmt.Fprintf(&b, "  %s\n", a.Description)
			fmt.Fprintf(&b, "  Cost: %s %s\n", cur, number(a.Cost))
			if loc := location(a); loc != "" {
				fmt.Fprintf(&b, "  Location: %s\n", loc)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Daily Total: %s %s\n\n", cur, number(d.TotalCost))
	}
	return b.String()
}

// Calendar renders one VEVENT per activity. Start and end times are only
// written when the day has a YYYY-MM-DD date and the time slot parses.
func Calendar(it *models.Itinerary) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//Itinerary LLM//Event//EN\r\n")
	fmt.Fprintf(&b, "X-WR-CALNAME:%s\r\n", icsText(it.Title))

	for _, d := range it.Days {
		date := icsDate(d.Date)
		for _, a := range d.Activities {
			b.WriteString("BEGIN:VEVENT\r\n")
			fmt.Fprintf(&b, "UID:%d-%s@%s\r\n", d.Day, a.ID, it.ID)
			fmt.Fprintf(&b, "SUMMARY:%s\r\n", icsText(a.Title))
			fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", icsText(a.Description.String()))
			if loc := location(a); loc != "" {
				fmt.Fprintf(&b, "LOCATION:%s\r\n", icsText(loc))
			}
			if slot, ok := finalize.ParseTimeSlot(a.TimeSlot); ok && date != "" {
				fmt.Fprintf(&b, "DTSTART:%sT%s00\r\n", date, clock(slot.StartMinutes))
				fmt.Fprintf(&b, "DTEND:%sT%s00\r\n", date, clock(slot.EndMinutes))
			}
			b.WriteString("END:VEVENT\r\n")
		}
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func currency(it *models.Itinerary) string {
	if it.Currency == "" {
		return defaultCurrency
	}
	return it.Currency
}

func number(n models.FlexNumber) string {
	return strconv.FormatFloat(n.Float(), 'f', -1, 64)
}

func location(a models.ItineraryActivity) string {
	if a.Location != "" {
		return a.Location.String()
	}
	return a.VenueName()
}

func address(a models.ItineraryActivity) string {
	if a.Address != "" {
		return a.Address.String()
	}
	if a.Venue != nil {
		return a.Venue.Address.String()
	}
	return ""
}

// icsDate turns "2025-03-01" into "20250301"; anything else yields "".
func icsDate(date string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(date), "-", "")
	if len(compact) != 8 {
		return ""
	}
	if _, err := strconv.Atoi(compact); err != nil {
		return ""
	}
	return compact
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d%02d", minutes/60, minutes%60)
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`, "\r", "")

func icsText(s string) string {
	return icsEscaper.Replace(s)
}

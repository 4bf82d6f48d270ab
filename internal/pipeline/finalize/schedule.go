// internal/pipeline/finalize/schedule.go
package finalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"itinerary-workers/internal/models"
)

var timeSlotRe = regexp.MustCompile(`(?i)(\d{1,2}):?(\d{0,2})\s*(AM|PM)?\s*-\s*(\d{1,2}):?(\d{0,2})\s*(AM|PM)?`)

// TimeSlot is a parsed "9:00 AM - 10:30 AM" range. Minutes count from
// midnight; a side without AM/PM is read as a 24-hour clock.
type TimeSlot struct {
	StartHour    int
	StartMinute  int
	StartPeriod  string
	EndHour      int
	EndMinute    int
	EndPeriod    string
	StartMinutes int
	EndMinutes   int
	// Duration is "1h 30m" style; an end before the start wraps past midnight.
	Duration string
}

func ParseTimeSlot(s string) (TimeSlot, bool) {
	m := timeSlotRe.FindStringSubmatch(s)
	if m == nil {
		return TimeSlot{}, false
	}
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}

	slot := TimeSlot{
		StartHour:   atoi(m[1]),
		StartMinute: atoi(m[2]),
		StartPeriod: strings.ToUpper(m[3]),
		EndHour:     atoi(m[4]),
		EndMinute:   atoi(m[5]),
		EndPeriod:   strings.ToUpper(m[6]),
	}
	slot.StartMinutes = toMinutes(slot.StartHour, slot.StartMinute, slot.StartPeriod)
	slot.EndMinutes = toMinutes(slot.EndHour, slot.EndMinute, slot.EndPeriod)

	d := slot.EndMinutes - slot.StartMinutes
	if d < 0 {
		d += 24 * 60
	}
	if d >= 60 {
		slot.Duration = fmt.Sprintf("%dh %dm", d/60, d%60)
	} else {
		slot.Duration = fmt.Sprintf("%dm", d)
	}
	return slot, true
}

func toMinutes(hour, minute int, period string) int {
	switch {
	case period == "PM" && hour != 12:
		hour += 12
	case period == "AM" && hour == 12:
		hour = 0
	}
	return hour*60 + minute
}

// Conflict is a scheduling or budget problem found in an itinerary.
type Conflict struct {
	Type       string   `json:"type"`
	Day        int      `json:"day"`
	Activities []string `json:"activities,omitempty"`
	Message    string   `json:"message"`
}

// FindConflicts reports consecutive activities whose time slots overlap and
// days that cost more than half the total budget.
func FindConflicts(it *models.Itinerary) []Conflict {
	var out []Conflict
	for di, d := range it.Days {
		for i := 0; i+1 < len(d.Activities); i++ {
			cur, next := d.Activities[i], d.Activities[i+1]
			a, okA := ParseTimeSlot(cur.TimeSlot)
			b, okB := ParseTimeSlot(next.TimeSlot)
			if okA && okB && a.EndMinutes > b.StartMinutes {
				out = append(out, Conflict{
					Type:       "timeConflict",
					Day:        di + 1,
					Activities: []string{cur.Title, next.Title},
					Message:    fmt.Sprintf("Time overlap between %q and %q", cur.Title, next.Title),
				})
			}
		}
		if d.TotalCost.Float() > it.TotalBudget.Float()*0.5 {
			out = append(out, Conflict{
				Type:    "budgetConflict",
				Day:     di + 1,
				Message: fmt.Sprintf("Day %d budget (%.0f) exceeds 50%% of total budget", di+1, d.TotalCost.Float()),
			})
		}
	}
	return out
}

type Suggestion struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Day      int    `json:"day,omitempty"`
	Message  string `json:"message"`
}

// SuggestOptimizations flags overspending beyond 10%, days with more than
// eight activities, and fewer than three activity categories overall.
func SuggestOptimizations(it *models.Itinerary) []Suggestion {
	var out []Suggestion

	spent := 0.0
	for _, d := range it.Days {
		spent += d.TotalCost.Float()
	}
	if spent > it.TotalBudget.Float()*1.1 {
		out = append(out, Suggestion{
			Type:     "budget",
			Priority: "high",
			Message:  "Consider reducing activity costs or duration to meet budget constraints",
		})
	}

	categories := make(map[string]bool)
	for di, d := range it.Days {
		if len(d.Activities) > 8 {
			out = append(out, Suggestion{
				Type:     "schedule",
				Priority: "medium",
				Day:      di + 1,
				Message:  fmt.Sprintf("Day %d has many activities (%d). Consider spreading them across multiple days.", di+1, len(d.Activities)),
			})
		}
		for _, a := range d.Activities {
			categories[a.Category] = true
		}
	}
	if len(categories) < 3 {
		out = append(out, Suggestion{
			Type:     "variety",
			Priority: "low",
			Message:  "Consider adding more variety in activity types for a better experience",
		})
	}
	return out
}

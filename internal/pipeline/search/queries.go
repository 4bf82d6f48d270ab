// internal/pipeline/search/queries.go
package search

import (
	"fmt"
	"strings"

	"itinerary-workers/internal/models"
)

// PlanQueries builds the category and priority tagged query set for a
// request. Corporate and travel requests use disjoint templates.
func PlanQueries(req *models.ParsedRequest) []models.SearchQuery {
	if req.IsCorporate() {
		return corporateQueries(req)
	}
	return travelQueries(req)
}

func query(text, category string, priority models.Priority, maxResults int) models.SearchQuery {
	return models.SearchQuery{
		Query:      text,
		Category:   category,
		Priority:   priority,
		MaxResults: maxResults,
	}
}

func corporateQueries(req *models.ParsedRequest) []models.SearchQuery {
	loc := req.Location
	n := req.Participants
	eventType := req.EventType
	if eventType == "" {
		eventType = "training"
	}

	queries := []models.SearchQuery{
		query(fmt.Sprintf(`"%s" venues "%s" conference halls meeting rooms capacity %d`, eventType, loc, n), "venues", models.PriorityHigh, 8),
		query(fmt.Sprintf(`business hotels "%s" group booking %d conference facilities`, loc, n), "accommodation", models.PriorityHigh, 6),
	}

	if strings.Contains(strings.ToLower(req.Focus), "team") {
		queries = append(queries,
			query(fmt.Sprintf(`team building activities "%s" corporate groups %d people indoor outdoor`, loc, n), "activities", models.PriorityHigh, 8),
			query(fmt.Sprintf(`adventure team building "%s" corporate retreat activities`, loc), "activities", models.PriorityMedium, 6),
		)
	}

	queries = append(queries,
		query(fmt.Sprintf(`corporate catering "%s" business lunch group dining %d`, loc, n), "catering", models.PriorityHigh, 7),
		query(fmt.Sprintf(`banquet halls "%s" corporate events group dining capacity %d`, loc, n), "catering", models.PriorityMedium, 5),
	)

	if n > 15 {
		queries = append(queries,
			query(fmt.Sprintf(`group transportation "%s" bus rental corporate travel %d passengers`, loc, n), "transport", models.PriorityMedium, 5))
	}

	return append(queries,
		query(fmt.Sprintf(`corporate event planners "%s" %s planning services`, loc, eventType), "services", models.PriorityMedium, 4),
		query(fmt.Sprintf(`corporate group visits "%s" attractions museums cultural sites`, loc), "attractions", models.PriorityMedium, 6),
		query(fmt.Sprintf(`meeting room rental "%s" AV equipment projector capacity %d`, loc, n), "venues", models.PriorityHigh, 6),
	)
}

func travelQueries(req *models.ParsedRequest) []models.SearchQuery {
	loc := req.Location
	n := req.Participants

	queries := []models.SearchQuery{
		query(fmt.Sprintf(`"%s" top attractions must visit places tourist guide`, loc), "attractions", models.PriorityHigh, 10),
		query(fmt.Sprintf(`"%s" hidden gems off beaten path local attractions`, loc), "attractions", models.PriorityMedium, 6),
	}

	if n > 4 {
		queries = append(queries,
			query(fmt.Sprintf(`group accommodation "%s" hotels %d people multiple rooms`, loc, n), "accommodation", models.PriorityHigh, 7))
	} else {
		queries = append(queries,
			query(fmt.Sprintf(`best hotels "%s" accommodation booking tourist`, loc), "accommodation", models.PriorityHigh, 7))
	}

	for _, pref := range req.Preferences {
		lower := strings.ToLower(pref)
		if strings.Contains(lower, "adventure") || strings.Contains(lower, "outdoor") {
			queries = append(queries,
				query(fmt.Sprintf(`adventure activities "%s" outdoor sports trekking water sports`, loc), "adventure", models.PriorityHigh, 8))
		}
		if strings.Contains(lower, "cultural") || strings.Contains(lower, "heritage") {
			queries = append(queries,
				query(fmt.Sprintf(`cultural attractions "%s" heritage sites museums temples historical`, loc), "cultural", models.PriorityHigh, 8))
		}
		if strings.Contains(lower, "food") || strings.Contains(lower, "culinary") {
			queries = append(queries,
				query(fmt.Sprintf(`food tours "%s" culinary experiences local cuisine restaurants`, loc), "dining", models.PriorityHigh, 7))
		}
	}

	return append(queries,
		query(fmt.Sprintf(`best restaurants "%s" local cuisine dining recommendations`, loc), "dining", models.PriorityHigh, 8),
		query(fmt.Sprintf(`street food "%s" local markets food stalls authentic cuisine`, loc), "dining", models.PriorityMedium, 6),
		query(fmt.Sprintf(`transportation "%s" local transport taxi bus metro airport transfer`, loc), "transport", models.PriorityMedium, 5),
		query(fmt.Sprintf(`shopping "%s" markets malls handicrafts souvenirs local crafts`, loc), "shopping", models.PriorityLow, 5),
		query(fmt.Sprintf(`nightlife "%s" entertainment bars clubs live music`, loc), "entertainment", models.PriorityLow, 4),
		query(fmt.Sprintf(`"%s" travel guide tips weather best time visit practical information`, loc), "practical", models.PriorityMedium, 4),
		query(fmt.Sprintf(`day trips from "%s" nearby attractions excursions tours`, loc), "excursions", models.PriorityMedium, 6),
	)
}

// CategoryQuery builds a single follow-up query for one category, used when
// a caller wants more coverage of a specific area.
func CategoryQuery(location, category string, params map[string]string) models.SearchQuery {
	switch category {
	case "venues":
		eventType := params["eventType"]
		if eventType == "" {
			eventType = "meeting"
		}
		return query(collapse(fmt.Sprintf(`"%s" %s venues halls capacity %s`, location, eventType, params["capacity"])), category, models.PriorityMedium, 8)
	case "restaurants":
		return query(collapse(fmt.Sprintf(`"%s" restaurants %s %s group dining`, location, params["cuisine"], params["dietary"])), category, models.PriorityMedium, 7)
	case "activities":
		return query(collapse(fmt.Sprintf(`"%s" activities %s things to do %s`, location, params["activityType"], params["groupSize"])), category, models.PriorityMedium, 8)
	case "accommodation":
		return query(collapse(fmt.Sprintf(`"%s" hotels accommodation %s people booking`, location, params["participants"])), category, models.PriorityMedium, 6)
	default:
		return query(fmt.Sprintf(`"%s" %s`, location, category), category, models.PriorityMedium, 6)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// internal/pipeline/summarize/consolidate.go
package summarize

import (
	"sort"
	"strings"

	"itinerary-workers/internal/models"
)

// Consolidate merges chunk findings. Venues are unique by lowercase
// (name, location) and activities by lowercase (name, type); the first
// occurrence wins and each list is ordered by descending relevance.
// Practical tips are kept as ordered sets. Items without a name are dropped.
func Consolidate(findings []models.StructuredFinding, sourceCount int) models.ConsolidatedResearch {
	out := models.ConsolidatedResearch{
		Venues:      []models.Venue{},
		Activities:  []models.Activity{},
		SourceCount: sourceCount,
	}

	seenVenues := make(map[ItemKey]bool)
	seenActivities := make(map[ItemKey]bool)
	transport := newStringSet()
	budget := newStringSet()
	seasonal := newStringSet()
	local := newStringSet()

	for _, f := range findings {
		for _, v := range f.Venues {
			if strings.TrimSpace(v.Name) == "" {
				continue
			}
			key := VenueKey(v)
			if seenVenues[key] {
				continue
			}
			seenVenues[key] = true
			out.Venues = append(out.Venues, v)
		}
		for _, a := range f.Activities {
			if strings.TrimSpace(a.Name) == "" {
				continue
			}
			key := ActivityKey(a)
			if seenActivities[key] {
				continue
			}
			seenActivities[key] = true
			out.Activities = append(out.Activities, a)
		}
		transport.add(f.PracticalInfo.Transportation...)
		budget.add(f.PracticalInfo.BudgetInsights...)
		seasonal.add(f.PracticalInfo.SeasonalTips...)
		local.add(f.PracticalInfo.LocalTips...)
	}

	sort.SliceStable(out.Venues, func(i, j int) bool {
		return out.Venues[i].RelevanceScore > out.Venues[j].RelevanceScore
	})
	sort.SliceStable(out.Activities, func(i, j int) bool {
		return out.Activities[i].RelevanceScore > out.Activities[j].RelevanceScore
	})

	out.PracticalInfo = models.PracticalInfo{
		Transportation: transport.items,
		BudgetInsights: budget.items,
		SeasonalTips:   seasonal.items,
		LocalTips:      local.items,
	}
	return out
}

// ItemKey identifies a venue by (name, location) or an activity by
// (name, type), both lowercased and trimmed.
type ItemKey struct {
	Name   string
	Detail string
}

func VenueKey(v models.Venue) ItemKey {
	return ItemKey{Name: fold(v.Name), Detail: fold(v.Location)}
}

func ActivityKey(a models.Activity) ItemKey {
	return ItemKey{Name: fold(a.Name), Detail: fold(a.Type)}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type stringSet struct {
	seen  map[string]bool
	items models.FlexList
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]bool), items: models.FlexList{}}
}

func (s *stringSet) add(values ...string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || s.seen[v] {
			continue
		}
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}

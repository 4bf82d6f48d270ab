package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/config"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/websearch"
	"itinerary-workers/internal/models"
)

type searchCall struct {
	query string
	opts  websearch.SearchOptions
}

type fakeDiscovery struct {
	hits  map[string][]websearch.Hit
	fail  map[string]error
	calls []searchCall
}

func (f *fakeDiscovery) Search(ctx context.Context, query string, opts websearch.SearchOptions) ([]websearch.Hit, error) {
	f.calls = append(f.calls, searchCall{query: query, opts: opts})
	for key, err := range f.fail {
		if strings.Contains(query, key) {
			return nil, err
		}
	}
	for key, hits := range f.hits {
		if strings.Contains(query, key) {
			return hits, nil
		}
	}
	return nil, nil
}

func (f *fakeDiscovery) Extract(ctx context.Context, urls []string) ([]websearch.Page, error) {
	return nil, errors.New("not used")
}

func settings() config.Settings {
	return config.DefaultPipeline().Settings()
}

func corporateRequest() *models.ParsedRequest {
	return &models.ParsedRequest{
		Type:         models.RequestCorporate,
		Location:     "Bangalore",
		Participants: 50,
		Duration:     2,
		EventType:    "training",
		Focus:        "team bonding",
	}
}

// ==========================
// Query planning
// ==========================

func TestPlanQueries_Corporate(t *testing.T) {
	queries := PlanQueries(corporateRequest())

	// venues, hotels, 2 team building, 2 catering, transport, planners, visits, meeting rooms
	require.Len(t, queries, 10)
	assert.Equal(t, "venues", queries[0].Category)
	assert.Equal(t, models.PriorityHigh, queries[0].Priority)
	assert.Contains(t, queries[0].Query, `"training" venues "Bangalore"`)

	categories := map[string]int{}
	for _, q := range queries {
		categories[q.Category]++
	}
	assert.Equal(t, 2, categories["activities"])
	assert.Equal(t, 1, categories["transport"])
}

func TestPlanQueries_CorporateSmallGroupWithoutTeamFocus(t *testing.T) {
	req := corporateRequest()
	req.Participants = 12
	req.Focus = "sales"

	queries := PlanQueries(req)
	assert.Len(t, queries, 7)
	for _, q := range queries {
		assert.NotEqual(t, "transport", q.Category)
		assert.NotEqual(t, "activities", q.Category)
	}
}

func TestPlanQueries_TravelExpandsPreferences(t *testing.T) {
	req := &models.ParsedRequest{
		Type:         models.RequestTravel,
		Location:     "Jaipur",
		Participants: 3,
		Preferences:  []string{"Heritage walks", "street food", "shopping"},
	}

	queries := PlanQueries(req)
	// attractions x2, hotels, cultural, food, 7 general
	require.Len(t, queries, 12)
	assert.Contains(t, queries[2].Query, "best hotels")
	assert.Equal(t, "cultural", queries[3].Category)
	assert.Equal(t, "dining", queries[4].Category)
	assert.Equal(t, models.PriorityLow, queries[8].Priority)
}

func TestCategoryQuery(t *testing.T) {
	q := CategoryQuery("Goa", "restaurants", map[string]string{"cuisine": "seafood"})
	assert.Equal(t, `"Goa" restaurants seafood group dining`, q.Query)
	assert.Equal(t, 7, q.MaxResults)

	q = CategoryQuery("Goa", "spas", nil)
	assert.Equal(t, `"Goa" spas`, q.Query)
}

// ==========================
// Execution
// ==========================

func TestExecute_SequentialWithPriorityPauses(t *testing.T) {
	discovery := &fakeDiscovery{
		hits: map[string][]websearch.Hit{
			"venues": {
				{Title: "Conference halls in Bangalore for groups", URL: "https://www.tripadvisor.com/x", Content: "corporate venue"},
				{Title: "Unrelated page", URL: "https://example.com", Content: "nothing"},
			},
		},
		fail: map[string]error{"catering": errors.New("503 from provider")},
	}
	recorder := &backoff.Recorder{}
	e := New(discovery, settings(), logger.NewTestLogger(t), WithSleeper(recorder.Sleep))

	queries := []models.SearchQuery{
		{Query: "training venues Bangalore", Category: "venues", Priority: models.PriorityHigh},
		{Query: "corporate catering Bangalore", Category: "catering", Priority: models.PriorityMedium, MaxResults: 3},
		{Query: "group visits Bangalore", Category: "attractions", Priority: models.PriorityLow},
	}
	outcomes := e.Execute(context.Background(), corporateRequest(), queries)

	require.Len(t, outcomes, 3)
	require.Len(t, discovery.calls, 3)
	assert.Equal(t, websearch.SearchOptions{MaxResults: 6, SearchDepth: websearch.DepthAdvanced}, discovery.calls[0].opts)
	assert.Equal(t, websearch.SearchOptions{MaxResults: 3, SearchDepth: websearch.DepthBasic}, discovery.calls[1].opts)

	assert.Equal(t, []time.Duration{300 * time.Millisecond, 200 * time.Millisecond}, recorder.Pauses())

	require.Len(t, outcomes[0].Results, 2)
	assert.Equal(t, "https://www.tripadvisor.com/x", outcomes[0].Results[0].URL)
	assert.Equal(t, 1.0, outcomes[0].Results[0].RelevanceScore)
	assert.Equal(t, 0.5, outcomes[0].Results[1].RelevanceScore)
	assert.Equal(t, "venues", outcomes[0].Results[0].Category)

	assert.Equal(t, "503 from provider", outcomes[1].Error)
	assert.Empty(t, outcomes[1].Results)
	assert.Empty(t, outcomes[2].Error)

	summary := Summarize(outcomes)
	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, summary.TotalResults)
	assert.InDelta(t, 0.75, summary.AverageRelevance, 1e-9)
	assert.InDelta(t, 33.33, Quality(summary), 0.01)
}

func TestExecute_StopsWhenContextCancelled(t *testing.T) {
	discovery := &fakeDiscovery{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(discovery, settings(), logger.NewNoOpLogger(), WithSleeper(backoff.Sleep))
	outcomes := e.Execute(ctx, corporateRequest(), PlanQueries(corporateRequest()))

	assert.Len(t, outcomes, 1)
}

// ==========================
// Scoring
// ==========================

func TestScore(t *testing.T) {
	travel := &models.ParsedRequest{Type: models.RequestTravel, Location: "New Delhi", Participants: 2, Preferences: []string{"Food"}}

	tests := []struct {
		name     string
		hit      websearch.Hit
		req      *models.ParsedRequest
		expected float64
	}{
		{"base only", websearch.Hit{Title: "Something", URL: "https://a.com"}, travel, 0.5},
		{"full location", websearch.Hit{Title: "Best of New Delhi", URL: "https://a.com"}, travel, 1.0},
		{"location words scattered", websearch.Hit{Title: "delhi is new", URL: "https://a.com"}, travel, 0.7},
		{"preference only", websearch.Hit{Title: "street food", URL: "https://a.com"}, travel, 0.65},
		{"quality domain", websearch.Hit{Title: "x", URL: "https://www.lonelyplanet.com/india"}, travel, 0.65},
		{"long content", websearch.Hit{Title: "x", URL: "https://a.com", Content: strings.Repeat("a", 501)}, travel, 0.6},
		{"corporate terms ignored for travel", websearch.Hit{Title: "business meeting", URL: "https://a.com"}, travel, 0.5},
		{"corporate terms and group", websearch.Hit{Title: "business meeting for groups", URL: "https://a.com"}, corporateRequest(), 0.9},
		{"unparseable url", websearch.Hit{Title: "x", URL: "://bad"}, travel, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.hit, tt.req)
			assert.InDelta(t, tt.expected, got, 1e-9)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestQuality_NoQueries(t *testing.T) {
	assert.Equal(t, 0.0, Quality(Summarize(nil)))
}

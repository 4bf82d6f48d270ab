// internal/pipeline/search/search.go
package search

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/common/websearch"
	"itinerary-workers/internal/models"
)

const Stage = "searching"

var corporateTerms = []string{"corporate", "business", "conference", "meeting", "seminar", "team building"}

var groupTerms = []string{"group", "groups", "party", "bulk", "multiple"}

var highQualityDomains = []string{
	"tourism.gov.in", "incredibleindia.org", "tripadvisor.com",
	"lonelyplanet.com", "makemytrip.com", "goibibo.com",
}

// Executor runs planned queries against the discovery service one at a time.
type Executor struct {
	discovery websearch.Discovery
	settings  config.Settings
	sleep     backoff.Sleeper
	logger    logger.Logger
}

type Option func(*Executor)

// WithSleeper replaces the pause used between queries.
func WithSleeper(s backoff.Sleeper) Option {
	return func(e *Executor) {
		e.sleep = s
	}
}

func New(discovery websearch.Discovery, settings config.Settings, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		discovery: discovery,
		settings:  settings,
		sleep:     backoff.Sleep,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run plans and executes the queries for req.
func (e *Executor) Run(ctx context.Context, req *models.ParsedRequest) []models.QueryOutcome {
	return e.Execute(ctx, req, PlanQueries(req))
}

// Execute issues queries sequentially in the given order. A failed query is
// recorded on its outcome and never aborts the batch. High priority queries
// use the advanced depth and a longer pause before the next query.
func (e *Executor) Execute(ctx context.Context, req *models.ParsedRequest, queries []models.SearchQuery) []models.QueryOutcome {
	defer metrics.ObserveStage(Stage, time.Now())

	e.logger.Info("starting search", map[string]interface{}{
		"queries":  len(queries),
		"location": req.Location,
		"type":     req.Type,
	})

	outcomes := make([]models.QueryOutcome, 0, len(queries))
	for i, q := range queries {
		outcome := e.executeOne(ctx, req, q)
		outcomes = append(outcomes, outcome)

		if i == len(queries)-1 {
			break
		}
		if err := e.sleep(ctx, e.delayFor(q.Priority)); err != nil {
			e.logger.Warn("search interrupted", map[string]interface{}{
				"completed": len(outcomes),
				"remaining": len(queries) - len(outcomes),
				"error":     err.Error(),
			})
			break
		}
	}

	summary := Summarize(outcomes)
	e.logger.Info("search completed", map[string]interface{}{
		"successful":   summary.Successful,
		"failed":       summary.Failed,
		"totalResults": summary.TotalResults,
	})
	return outcomes
}

func (e *Executor) executeOne(ctx context.Context, req *models.ParsedRequest, q models.SearchQuery) models.QueryOutcome {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = e.settings.DefaultMaxResults
	}
	depth := websearch.DepthBasic
	if q.Priority == models.PriorityHigh {
		depth = websearch.DepthAdvanced
	}

	outcome := models.QueryOutcome{
		Query:      q,
		Results:    []models.SearchResult{},
		ExecutedAt: time.Now().UTC(),
	}

	hits, err := e.discovery.Search(ctx, q.Query, websearch.SearchOptions{
		MaxResults:  maxResults,
		SearchDepth: depth,
	})
	if err != nil {
		e.logger.Warn("search query failed", map[string]interface{}{
			"query":    q.Query,
			"category": q.Category,
			"code":     apperrors.CodeOf(err),
			"error":    err.Error(),
		})
		outcome.Error = err.Error()
		return outcome
	}

	for _, hit := range hits {
		score := Score(hit, req)
		if score <= e.settings.MinResultRelevance {
			continue
		}
		outcome.Results = append(outcome.Results, models.SearchResult{
			URL:            hit.URL,
			Title:          hit.Title,
			Content:        hit.Content,
			Category:       q.Category,
			Priority:       q.Priority,
			RelevanceScore: score,
			ProviderScore:  hit.Score,
		})
	}
	sort.SliceStable(outcome.Results, func(i, j int) bool {
		return outcome.Results[i].RelevanceScore > outcome.Results[j].RelevanceScore
	})
	return outcome
}

func (e *Executor) delayFor(p models.Priority) time.Duration {
	if p == models.PriorityHigh {
		return e.settings.SearchDelayHigh
	}
	return e.settings.SearchDelayDefault
}

// Score rates how well a hit matches the request, in [0,1].
func Score(hit websearch.Hit, req *models.ParsedRequest) float64 {
	score := 0.5
	text := strings.ToLower(hit.Title + " " + hit.Content)
	location := strings.ToLower(strings.TrimSpace(req.Location))

	if location != "" && strings.Contains(text, location) {
		score += 0.4
	}
	if words := strings.Fields(location); len(words) > 0 && containsAll(text, words) {
		score += 0.2
	}
	if req.IsCorporate() && containsAny(text, corporateTerms) {
		score += 0.3
	}
	for _, pref := range req.Preferences {
		if p := strings.ToLower(strings.TrimSpace(pref)); p != "" && strings.Contains(text, p) {
			score += 0.15
		}
	}
	if req.Participants > 10 && containsAny(text, groupTerms) {
		score += 0.1
	}
	if domain := Domain(hit.URL); domain != "" && containsAny(domain, highQualityDomains) {
		score += 0.15
	}
	if len(hit.Content) > 500 {
		score += 0.1
	}
	return math.Min(score, 1.0)
}

// Domain returns the lowercase host of rawURL, or "" when it cannot be parsed.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Results flattens the outcomes in query order.
func Results(outcomes []models.QueryOutcome) []models.SearchResult {
	var out []models.SearchResult
	for _, o := range outcomes {
		out = append(out, o.Results...)
	}
	return out
}

// Summarize aggregates query outcomes. A query counts as successful when it
// did not fail and kept at least one result.
func Summarize(outcomes []models.QueryOutcome) models.SearchSummary {
	summary := models.SearchSummary{
		TotalQueries: len(outcomes),
		Categories:   make(map[string]int),
		Priorities:   make(map[string]int),
	}

	var relevanceSum float64
	var scored int
	for _, o := range outcomes {
		if o.Error == "" && len(o.Results) > 0 {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.TotalResults += len(o.Results)
		if o.Query.Category != "" {
			summary.Categories[o.Query.Category]++
		}
		if o.Query.Priority != "" {
			summary.Priorities[string(o.Query.Priority)]++
		}

		if len(o.Results) > 0 {
			var sum float64
			for _, r := range o.Results {
				sum += r.RelevanceScore
			}
			relevanceSum += sum / float64(len(o.Results))
			scored++
		}
	}
	if scored > 0 {
		summary.AverageRelevance = relevanceSum / float64(scored)
	}
	return summary
}

// Quality is the share of successful queries, 0-100.
func Quality(summary models.SearchSummary) float64 {
	if summary.TotalQueries == 0 {
		return 0
	}
	return float64(summary.Successful) / float64(summary.TotalQueries) * 100
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

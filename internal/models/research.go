// internal/models/research.go
package models

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SearchQuery is one planned discovery query.
type SearchQuery struct {
	Query      string   `json:"query"`
	Category   string   `json:"category"`
	Priority   Priority `json:"priority"`
	MaxResults int      `json:"maxResults"`
}

// SearchResult is a scored discovery hit. RelevanceScore is in [0,1].
type SearchResult struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Category       string   `json:"category"`
	Priority       Priority `json:"priority"`
	RelevanceScore float64  `json:"relevanceScore"`
	ProviderScore  float64  `json:"providerScore"`
}

// QueryOutcome records one executed query. Error is set when it failed.
type QueryOutcome struct {
	Query      SearchQuery    `json:"query"`
	Results    []SearchResult `json:"results"`
	Error      string         `json:"error,omitempty"`
	ExecutedAt time.Time      `json:"executedAt"`
}

type SearchSummary struct {
	TotalQueries     int            `json:"totalQueries"`
	Successful       int            `json:"successful"`
	Failed           int            `json:"failed"`
	TotalResults     int            `json:"totalResults"`
	Categories       map[string]int `json:"categories"`
	Priorities       map[string]int `json:"priorities"`
	AverageRelevance float64        `json:"averageRelevance"`
}

// CandidateSource is a search result ranked for extraction.
// TotalScore = QualityScore × SourceRelevance.
type CandidateSource struct {
	SearchResult
	QualityScore    int     `json:"qualityScore"`
	SourceRelevance float64 `json:"sourceRelevance"`
	TotalScore      float64 `json:"totalScore"`
}

// ExtractedDocument is the cleaned content of one source URL.
type ExtractedDocument struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	Content        string    `json:"content"`
	WordCount      int       `json:"wordCount"`
	QualityScore   int       `json:"qualityScore"`
	RelevanceScore float64   `json:"relevanceScore"`
	TotalScore     float64   `json:"totalScore"`
	Error          string    `json:"error,omitempty"`
	ExtractedAt    time.Time `json:"extractedAt"`
}

type ExtractionSummary struct {
	TotalURLs      int            `json:"totalUrls"`
	Successful     int            `json:"successful"`
	Failed         int            `json:"failed"`
	TotalWordCount int            `json:"totalWordCount"`
	AverageQuality float64        `json:"averageQuality"`
	Categories     map[string]int `json:"categories"`
}

// Venue is a venue finding with provenance.
type Venue struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	Address        string     `json:"address"`
	Contact        string     `json:"contact"`
	Cost           FlexString `json:"cost"`
	Capacity       FlexString `json:"capacity"`
	OperatingHours string     `json:"operatingHours"`
	Highlights     FlexList   `json:"highlights"`
	Requirements   FlexList   `json:"requirements"`
	BookingInfo    string     `json:"bookingInfo"`
	SourceURL      string     `json:"sourceUrl"`
	RelevanceScore float64    `json:"relevanceScore"`
	ExtractedAt    string     `json:"extractedAt,omitempty"`
}

// Activity is an activity finding with provenance.
type Activity struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	Duration       FlexString `json:"duration"`
	Cost           FlexString `json:"cost"`
	GroupSize      FlexString `json:"groupSize"`
	Location       string     `json:"location"`
	Requirements   FlexList   `json:"requirements"`
	Highlights     FlexList   `json:"highlights"`
	SourceURL      string     `json:"sourceUrl"`
	RelevanceScore float64    `json:"relevanceScore"`
	ExtractedAt    string     `json:"extractedAt,omitempty"`
}

type PracticalInfo struct {
	Transportation FlexList `json:"transportation"`
	BudgetInsights FlexList `json:"budgetInsights"`
	SeasonalTips   FlexList `json:"seasonalTips"`
	LocalTips      FlexList `json:"localTips"`
}

// StructuredFinding is what one extraction chunk yields.
type StructuredFinding struct {
	Venues        []Venue       `json:"venues"`
	Activities    []Activity    `json:"activities"`
	PracticalInfo PracticalInfo `json:"practicalInfo"`
}

// ConsolidatedResearch is the deduplicated union of all findings.
type ConsolidatedResearch struct {
	Venues        []Venue       `json:"venues"`
	Activities    []Activity    `json:"activities"`
	PracticalInfo PracticalInfo `json:"practicalInfo"`
	SourceCount   int           `json:"sourceCount"`
}

func (c *ConsolidatedResearch) IsEmpty() bool {
	return c == nil || (len(c.Venues) == 0 && len(c.Activities) == 0)
}

// VenuesOfType returns the venues whose type is one of types, case-insensitively.
func (c *ConsolidatedResearch) VenuesOfType(types ...string) []Venue {
	if c == nil {
		return nil
	}
	var out []Venue
	for _, v := range c.Venues {
		if matchesAny(v.Type, types) {
			out = append(out, v)
		}
	}
	return out
}

// ActivitiesOfType is VenuesOfType for activities.
func (c *ConsolidatedResearch) ActivitiesOfType(types ...string) []Activity {
	if c == nil {
		return nil
	}
	var out []Activity
	for _, a := range c.Activities {
		if matchesAny(a.Type, types) {
			out = append(out, a)
		}
	}
	return out
}

func matchesAny(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}

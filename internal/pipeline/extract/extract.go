// internal/pipeline/extract/extract.go
package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/config"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/common/websearch"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/search"
)

const Stage = "extracting"

const errNoContent = "no content returned"

var highQualityDomains = []string{
	"tourism.gov.in", "incredibleindia.org", "tripadvisor.com", "makemytrip.com",
	"goibibo.com", "cleartrip.com", "yatra.com", "thrillophilia.com",
	"holidayiq.com", "travelogyindia.com",
}

var mediumQualityDomains = []string{"wikipedia.org", "lonelyplanet.com", "timesofindia.com"}

var sourceTerms = []string{"corporate", "conference", "meeting", "team building"}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	noiseRe      = regexp.MustCompile(`(?i)\b(cookie policy|privacy policy|terms of service|subscribe to newsletter|sign up|advertisement|ad space)\b`)
)

// Extractor ranks search results and pulls their page content in batches.
type Extractor struct {
	discovery websearch.Discovery
	settings  config.Settings
	sleep     backoff.Sleeper
	logger    logger.Logger
}

type Option func(*Extractor)

// WithSleeper replaces the pause used between batches and retries.
func WithSleeper(s backoff.Sleeper) Option {
	return func(x *Extractor) {
		x.sleep = s
	}
}

func New(discovery websearch.Discovery, settings config.Settings, log logger.Logger, opts ...Option) *Extractor {
	x := &Extractor{
		discovery: discovery,
		settings:  settings,
		sleep:     backoff.Sleep,
		logger: log.With(map[string]interface{}{
			"stage": Stage,
		}),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Result holds every extraction attempt and the documents that passed the
// word count and relevance filters.
type Result struct {
	Documents []models.ExtractedDocument `json:"documents"`
	Filtered  []models.ExtractedDocument `json:"filtered"`
	Summary   models.ExtractionSummary   `json:"summary"`
}

// Run selects sources from the search outcomes, extracts them and filters
// the cleaned documents.
func (x *Extractor) Run(ctx context.Context, outcomes []models.QueryOutcome, req *models.ParsedRequest) *Result {
	defer metrics.ObserveStage(Stage, time.Now())

	candidates := SelectSources(search.Results(outcomes), req, x.settings.MaxExtractURLs)
	if len(candidates) == 0 {
		x.logger.Warn("no sources available for extraction", nil)
		return &Result{
			Documents: []models.ExtractedDocument{},
			Filtered:  []models.ExtractedDocument{},
			Summary:   Summarize(nil),
		}
	}

	x.logger.Debug("sources selected", map[string]interface{}{
		"sources": describe(candidates),
	})

	docs := x.Extract(ctx, candidates)
	filtered := Filter(docs, x.settings.MinWordCount, x.settings.MinDocumentRelevance)

	summary := Summarize(docs)
	x.logger.Info("extraction completed", map[string]interface{}{
		"sources":    len(candidates),
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"kept":       len(filtered),
	})
	return &Result{Documents: docs, Filtered: filtered, Summary: summary}
}

// SelectSources scores every result by domain tier and request relevance
// and keeps the best limit of them, one per URL.
func SelectSources(results []models.SearchResult, req *models.ParsedRequest, limit int) []models.CandidateSource {
	seen := make(map[string]bool)
	candidates := make([]models.CandidateSource, 0, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true

		quality := QualityTier(search.Domain(r.URL))
		relevance := SourceRelevance(r, req)
		candidates = append(candidates, models.CandidateSource{
			SearchResult:    r,
			QualityScore:    quality,
			SourceRelevance: relevance,
			TotalScore:      float64(quality) * relevance,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// QualityTier maps a host to its reputation tier: 3, 2 or 1.
func QualityTier(domain string) int {
	switch {
	case matchesDomain(domain, highQualityDomains):
		return 3
	case matchesDomain(domain, mediumQualityDomains):
		return 2
	default:
		return 1
	}
}

// SourceRelevance scores a result for extraction: base 1, +2 for the
// location, +1.5 for corporate terms on corporate requests, +1 per preference.
func SourceRelevance(r models.SearchResult, req *models.ParsedRequest) float64 {
	score := 1.0
	text := strings.ToLower(r.Title + " " + r.Content)

	if loc := strings.ToLower(strings.TrimSpace(req.Location)); loc != "" && strings.Contains(text, loc) {
		score += 2
	}
	if req.IsCorporate() {
		for _, term := range sourceTerms {
			if strings.Contains(text, term) {
				score += 1.5
				break
			}
		}
	}
	for _, pref := range req.Preferences {
		if p := strings.ToLower(strings.TrimSpace(pref)); p != "" && strings.Contains(text, p) {
			score++
		}
	}
	return score
}

// Extract fetches candidates in batches of the configured size, pausing
// between batches. A failed batch marks each of its URLs as failed.
func (x *Extractor) Extract(ctx context.Context, candidates []models.CandidateSource) []models.ExtractedDocument {
	batches := Batches(candidates, x.settings.ExtractBatchSize)
	docs := make([]models.ExtractedDocument, 0, len(candidates))

	for i, batch := range batches {
		x.logger.Info("extracting batch", map[string]interface{}{
			"batch": i + 1,
			"of":    len(batches),
			"urls":  len(batch),
		})
		docs = append(docs, x.extractBatch(ctx, batch)...)

		if i == len(batches)-1 {
			break
		}
		if err := x.sleep(ctx, x.settings.ExtractBatchPause); err != nil {
			x.logger.Warn("extraction interrupted", map[string]interface{}{
				"completedBatches": i + 1,
				"error":            err.Error(),
			})
			break
		}
	}
	return docs
}

func (x *Extractor) extractBatch(ctx context.Context, batch []models.CandidateSource) []models.ExtractedDocument {
	urls := make([]string, len(batch))
	for i, c := range batch {
		urls[i] = c.URL
	}

	now := time.Now().UTC()
	pages, err := x.discovery.Extract(ctx, urls)
	if err != nil {
		x.logger.Warn("batch extraction failed", map[string]interface{}{
			"urls":  len(urls),
			"error": err.Error(),
		})
		docs := make([]models.ExtractedDocument, len(batch))
		for i, c := range batch {
			docs[i] = newDocument(c, now)
			docs[i].Error = err.Error()
		}
		return docs
	}

	byURL := make(map[string]websearch.Page, len(pages))
	for _, p := range pages {
		byURL[p.URL] = p
	}

	docs := make([]models.ExtractedDocument, len(batch))
	for i, c := range batch {
		docs[i] = newDocument(c, now)
		page, ok := byURL[c.URL]
		switch {
		case !ok:
			docs[i].Error = errNoContent
		case page.Error != "":
			docs[i].Error = page.Error
		default:
			docs[i].Content = Clean(page.Content)
			docs[i].WordCount = WordCount(docs[i].Content)
		}
	}
	return docs
}

func newDocument(c models.CandidateSource, at time.Time) models.ExtractedDocument {
	return models.ExtractedDocument{
		URL:            c.URL,
		Title:          c.Title,
		Category:       c.Category,
		QualityScore:   c.QualityScore,
		RelevanceScore: c.SourceRelevance,
		TotalScore:     c.TotalScore,
		ExtractedAt:    at,
	}
}

// RetryFailed re-extracts documents that failed or came back empty, one URL
// at a time, pausing backoff × attempt before each attempt. Recovered
// documents replace the failed ones in place.
func (x *Extractor) RetryFailed(ctx context.Context, docs []models.ExtractedDocument) ([]models.ExtractedDocument, int) {
	out := make([]models.ExtractedDocument, len(docs))
	copy(out, docs)

	failed, recovered := 0, 0
	for i := range out {
		if out[i].Error == "" && out[i].Content != "" {
			continue
		}
		failed++

		for attempt := 1; attempt <= x.settings.ExtractRetries; attempt++ {
			if err := x.sleep(ctx, x.settings.ExtractRetryBackoff*time.Duration(attempt)); err != nil {
				return out, recovered
			}

			pages, err := x.discovery.Extract(ctx, []string{out[i].URL})
			if err != nil || len(pages) == 0 || pages[0].Error != "" || pages[0].Content == "" {
				x.logger.Warn("extraction retry failed", map[string]interface{}{
					"url":     out[i].URL,
					"attempt": attempt,
					"error":   retryError(err, pages),
				})
				continue
			}

			out[i].Error = ""
			out[i].Content = Clean(pages[0].Content)
			out[i].WordCount = WordCount(out[i].Content)
			out[i].ExtractedAt = time.Now().UTC()
			recovered++
			break
		}
	}

	if failed > 0 {
		x.logger.Info("retried failed extractions", map[string]interface{}{
			"failed":    failed,
			"recovered": recovered,
		})
	}
	return out, recovered
}

// Recover retries the failed documents of r and filters again. r is not
// modified.
func (x *Extractor) Recover(ctx context.Context, r *Result) *Result {
	docs, recovered := x.RetryFailed(ctx, r.Documents)
	if recovered == 0 {
		return r
	}
	return &Result{
		Documents: docs,
		Filtered:  Filter(docs, x.settings.MinWordCount, x.settings.MinDocumentRelevance),
		Summary:   Summarize(docs),
	}
}

func retryError(err error, pages []websearch.Page) string {
	switch {
	case err != nil:
		return err.Error()
	case len(pages) > 0 && pages[0].Error != "":
		return pages[0].Error
	default:
		return errNoContent
	}
}

// Batches splits candidates into consecutive groups of at most size.
func Batches(candidates []models.CandidateSource, size int) [][]models.CandidateSource {
	if size < 1 {
		size = 1
	}
	var out [][]models.CandidateSource
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		out = append(out, candidates[start:end])
	}
	return out
}

// Clean collapses whitespace and strips cookie, newsletter and ad noise.
func Clean(content string) string {
	cleaned := noiseRe.ReplaceAllString(content, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
}

func WordCount(content string) int {
	return len(strings.Fields(content))
}

// Filter drops failed documents, documents under minWords words and
// documents under minRelevance, then orders the rest by total score.
func Filter(docs []models.ExtractedDocument, minWords int, minRelevance float64) []models.ExtractedDocument {
	out := make([]models.ExtractedDocument, 0, len(docs))
	for _, d := range docs {
		if d.Error != "" || d.WordCount < minWords || d.RelevanceScore < minRelevance {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalScore > out[j].TotalScore
	})
	return out
}

// Summarize aggregates extraction attempts.
func Summarize(docs []models.ExtractedDocument) models.ExtractionSummary {
	summary := models.ExtractionSummary{
		TotalURLs:  len(docs),
		Categories: make(map[string]int),
	}

	qualitySum, qualityCount := 0, 0
	for _, d := range docs {
		if d.Error == "" && d.Content != "" {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.TotalWordCount += d.WordCount
		if d.QualityScore > 0 {
			qualitySum += d.QualityScore
			qualityCount++
		}
		if d.Category != "" {
			summary.Categories[d.Category]++
		}
	}
	if qualityCount > 0 {
		summary.AverageQuality = float64(qualitySum) / float64(qualityCount)
	}
	return summary
}

// Quality is the share of successful extractions, 0-100.
func Quality(summary models.ExtractionSummary) float64 {
	if summary.TotalURLs == 0 {
		return 0
	}
	return float64(summary.Successful) / float64(summary.TotalURLs) * 100
}

func matchesDomain(domain string, list []string) bool {
	if domain == "" {
		return false
	}
	for _, d := range list {
		if strings.Contains(domain, d) {
			return true
		}
	}
	return false
}

func describe(candidates []models.CandidateSource) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = fmt.Sprintf("%s (q=%d, r=%.1f)", c.URL, c.QualityScore, c.SourceRelevance)
	}
	return out
}

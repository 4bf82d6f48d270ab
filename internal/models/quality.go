// internal/models/quality.go
package models

// DataQuality tracks how much of a run was grounded in real research.
// All scores are percentages in [0,100].
type DataQuality struct {
	SearchQuality     float64 `json:"searchQuality"`
	ExtractionQuality float64 `json:"extractionQuality"`
	IntegrationScore  float64 `json:"integrationScore"`
	OverallScore      float64 `json:"overallScore"`
}

type ValidationReport struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Score    float64  `json:"score"`
}

type IntegrationReport struct {
	IsValid              bool     `json:"isValid"`
	Warnings             []string `json:"warnings"`
	Suggestions          []string `json:"suggestions"`
	DataIntegrationScore int      `json:"dataIntegrationScore"`
}

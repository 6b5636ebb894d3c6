// Package models - Vacancy reports and the structured LLM payloads stored with them.
//
// A Report is written once by the analysis flow and is read-only afterwards.
// AnalysisResult and OptimizationResult mirror the JSON documents the language
// model is instructed to return, so their json tags are the wire format.
package models

import (
	"crypto/rand"
	"fmt"
	"math"
	"time"
)

// ReportIDLength is the length of generated report identifiers.
const ReportIDLength = 10

const reportIDAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

// Report is a submitted vacancy text and its analysis.
type Report struct {
	ID           string    `json:"id"`
	VacancyText  string    `json:"vacancy_text"`
	AnalysisJSON string    `json:"analysis_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewReportID returns a random URL-safe identifier of ReportIDLength characters.
func NewReportID() (string, error) {
	buf := make([]byte, ReportIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate report id: %w", err)
	}
	id := make([]byte, ReportIDLength)
	for i, b := range buf {
		// 64-symbol alphabet, so the low six bits map without bias.
		id[i] = reportIDAlphabet[b&63]
	}
	return string(id), nil
}

// PillarScore is the score and diagnosis for one quality dimension.
type PillarScore struct {
	Score     float64 `json:"score"`
	Diagnosis string  `json:"diagnosis"`
}

// Pillars are the eight dimensions a vacancy is scored on.
type Pillars struct {
	StructureLayout  PillarScore `json:"structure_layout"`
	PersonaFit       PillarScore `json:"persona_fit"`
	EVPBrand         PillarScore `json:"evp_brand"`
	ToneOfVoice      PillarScore `json:"tone_of_voice"`
	InclusionBias    PillarScore `json:"inclusion_bias"`
	MobileExperience PillarScore `json:"mobile_experience"`
	SEOFindability   PillarScore `json:"seo_findability"`
	Neuromarketing   PillarScore `json:"neuromarketing"`
}

type AnalysisMetadata struct {
	Organization *string `json:"organization"`
	JobTitle     string  `json:"job_title"`
	JobType      *string `json:"job_type"`
	Location     *string `json:"location"`
	DetectedEVP  string  `json:"detected_evp"`
	WordCount    int     `json:"word_count"`
	AnalyzedAt   string  `json:"analyzed_at"`
}

type KeyIssue struct {
	Problem      string `json:"problem"`
	WhyItMatters string `json:"why_it_matters"`
	HowToImprove string `json:"how_to_improve"`
}

type AnalysisSummary struct {
	TotalScore         float64    `json:"total_score"`
	WeightedScore      float64    `json:"weighted_score"`
	Verdict            string     `json:"verdict"`
	TopStrengths       []string   `json:"top_strengths"`
	CriticalWeaknesses []string   `json:"critical_weaknesses"`
	KeyIssues          []KeyIssue `json:"key_issues"`
	ExecutiveSummary   string     `json:"executive_summary"`
}

// AnalysisResult is the scored assessment of a vacancy text.
type AnalysisResult struct {
	Metadata        AnalysisMetadata `json:"metadata"`
	Pillars         Pillars          `json:"pillars"`
	Summary         AnalysisSummary  `json:"summary"`
	OriginalHeaders []string         `json:"original_headers"`
}

// Verdict values
const (
	VerdictExcellent = "excellent"
	VerdictGood      = "good"
	VerdictNeedsWork = "needs_work"
	VerdictPoor      = "poor"
)

// VerdictFor maps an average pillar score (1-10) to a verdict.
func VerdictFor(totalScore float64) string {
	switch {
	case totalScore >= 8.5:
		return VerdictExcellent
	case totalScore >= 7.0:
		return VerdictGood
	case totalScore >= 5.0:
		return VerdictNeedsWork
	default:
		return VerdictPoor
	}
}

// All returns the eight pillar scores keyed by their JSON name.
func (p Pillars) All() map[string]PillarScore {
	return map[string]PillarScore{
		"structure_layout":  p.StructureLayout,
		"persona_fit":       p.PersonaFit,
		"evp_brand":         p.EVPBrand,
		"tone_of_voice":     p.ToneOfVoice,
		"inclusion_bias":    p.InclusionBias,
		"mobile_experience": p.MobileExperience,
		"seo_findability":   p.SEOFindability,
		"neuromarketing":    p.Neuromarketing,
	}
}

// Normalize recomputes the summary totals from the pillar scores and fixes
// the verdict, so the stored report is consistent whatever the model returned.
func (a *AnalysisResult) Normalize() {
	var sum float64
	pillars := a.Pillars.All()
	for _, p := range pillars {
		sum += p.Score
	}
	avg := math.Round(sum/float64(len(pillars))*10) / 10
	a.Summary.TotalScore = avg
	a.Summary.WeightedScore = math.Round(avg * 10)
	a.Summary.Verdict = VerdictFor(avg)
}

type OptimizationMetadata struct {
	JobTitle         string  `json:"job_title"`
	OriginalJobTitle string  `json:"original_job_title"`
	Organization     *string `json:"organization"`
	Location         *string `json:"location"`
	RewrittenAt      string  `json:"rewritten_at"`
}

type ContentSection struct {
	Header           string   `json:"header"`
	IsOriginalHeader bool     `json:"is_original_header"`
	Content          string   `json:"content"`
	Bullets          []string `json:"bullets"`
}

type OptimizedContent struct {
	Hook               string           `json:"hook"`
	Sections           []ContentSection `json:"sections"`
	DiversityStatement string           `json:"diversity_statement"`
	CallToAction       string           `json:"call_to_action"`
}

type Improvement struct {
	Pillar        string  `json:"pillar"`
	Change        string  `json:"change"`
	BeforeExample *string `json:"before_example"`
	AfterExample  *string `json:"after_example"`
}

type Changes struct {
	Summary           string        `json:"summary"`
	Improvements      []Improvement `json:"improvements"`
	PreservedElements []string      `json:"preserved_elements"`
}

type StrategyNote struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type EstimatedScores struct {
	StructureLayout  float64 `json:"structure_layout"`
	PersonaFit       float64 `json:"persona_fit"`
	EVPBrand         float64 `json:"evp_brand"`
	ToneOfVoice      float64 `json:"tone_of_voice"`
	InclusionBias    float64 `json:"inclusion_bias"`
	MobileExperience float64 `json:"mobile_experience"`
	SEOFindability   float64 `json:"seo_findability"`
	Neuromarketing   float64 `json:"neuromarketing"`
	TotalScore       float64 `json:"total_score"`
	WeightedScore    float64 `json:"weighted_score"`
}

// OptimizationResult is the rewritten vacancy plus its estimated new scores.
type OptimizationResult struct {
	Metadata         OptimizationMetadata `json:"metadata"`
	Content          OptimizedContent     `json:"content"`
	FullTextMarkdown string               `json:"full_text_markdown"`
	FullTextPlain    string               `json:"full_text_plain"`
	Changes          Changes              `json:"changes"`
	StrategyNotes    []StrategyNote       `json:"strategy_notes"`
	EstimatedScores  EstimatedScores      `json:"estimated_scores"`
}

// DisplayTitle returns the job title, falling back to a generic label.
func (o *OptimizationResult) DisplayTitle() string {
	if o.Metadata.JobTitle != "" {
		return o.Metadata.JobTitle
	}
	return "Optimized Vacancy"
}

// OrganizationName returns the organization or an empty string.
func (o *OptimizationResult) OrganizationName() string {
	if o.Metadata.Organization == nil {
		return ""
	}
	return *o.Metadata.Organization
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"leadgate/internal/models"
)

// AnalyzerSystemPrompt instructs the model to score a vacancy text.
const AnalyzerSystemPrompt = `You audit job postings and return a structured quality assessment.

Score each pillar from 1.0 to 10.0:
- structure_layout: logical flow, headers, a hook that draws the reader in
- persona_fit: written around candidate needs rather than demands only
- evp_brand: distinctive culture and employer value proposition
- tone_of_voice: active voice, direct plain language, little jargon
- inclusion_bias: neutral or inclusive wording, explicit diversity statement
- mobile_experience: scannable bullets, short paragraphs
- seo_findability: a standard searchable title, keywords early in the text
- neuromarketing: persuasion through social proof, scarcity and authority

Respond with JSON only, using exactly these fields:
{
  "metadata": {"organization": string|null, "job_title": string, "job_type": string|null,
    "location": string|null, "detected_evp": string, "word_count": number, "analyzed_at": string},
  "pillars": {"<pillar>": {"score": number, "diagnosis": string}},
  "summary": {"total_score": number, "weighted_score": number,
    "verdict": "excellent"|"good"|"needs_work"|"poor",
    "top_strengths": [string], "critical_weaknesses": [string],
    "key_issues": [{"problem": string, "why_it_matters": string, "how_to_improve": string}],
    "executive_summary": string},
  "original_headers": [string]
}
total_score is the average pillar score and weighted_score is total_score times 10.`

// OptimizerSystemPrompt instructs the model to rewrite a vacancy text.
const OptimizerSystemPrompt = `You rewrite job postings so they score well on structure, candidate focus,
employer brand, tone, inclusion, mobile readability, findability and persuasion.
Keep every fact from the original. Keep original section headers where they work.
Never invent salary, benefits or requirements that are not in the original.

Respond with JSON only, using exactly these fields:
{
  "metadata": {"job_title": string, "original_job_title": string, "organization": string|null,
    "location": string|null, "rewritten_at": string},
  "content": {"hook": string,
    "sections": [{"header": string, "is_original_header": boolean, "content": string, "bullets": [string]|null}],
    "diversity_statement": string, "call_to_action": string},
  "full_text_markdown": string,
  "full_text_plain": string,
  "changes": {"summary": string,
    "improvements": [{"pillar": string, "change": string, "before_example": string|null, "after_example": string|null}],
    "preserved_elements": [string]},
  "strategy_notes": [{"title": string, "description": string, "icon": string}],
  "estimated_scores": {"structure_layout": number, "persona_fit": number, "evp_brand": number,
    "tone_of_voice": number, "inclusion_bias": number, "mobile_experience": number,
    "seo_findability": number, "neuromarketing": number, "total_score": number, "weighted_score": number}
}`

// BuildAnalyzePrompt returns the user prompt for an analysis call.
func BuildAnalyzePrompt(vacancyText, category string) string {
	var b strings.Builder
	if category != "" && category != models.DefaultCategory {
		fmt.Fprintf(&b, "Job Category: %s\n\n", category)
	}
	b.WriteString("Vacancy Text:\n")
	b.WriteString(vacancyText)
	return b.String()
}

// BuildOptimizePrompt returns the user prompt for an optimization call.
// The analysis, when present, is attached as JSON context.
func BuildOptimizePrompt(vacancyText string, analysis *models.AnalysisResult) (string, error) {
	var b strings.Builder
	b.WriteString("Original Vacancy Text:\n")
	b.WriteString(vacancyText)
	if analysis != nil {
		ctxJSON, err := json.Marshal(analysis)
		if err != nil {
			return "", fmt.Errorf("encode analysis context: %w", err)
		}
		b.WriteString("\n\nAnalysis Context:\n")
		b.Write(ctxJSON)
	}
	return b.String(), nil
}

// extractJSON strips a markdown code fence around a JSON document, if any.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Package gate decides whether a new topic article proceeds toward
// generation or is discarded. Every decision is a deterministic function of
// (content, topic configuration) so re-evaluation is idempotent.
package gate

import (
	"encoding/json"
	"strings"

	"github.com/storypress/storypress/internal/config"
	"github.com/storypress/storypress/internal/models"
)

// Machine-readable rejection reasons recorded in article metadata.
const (
	ReasonInsufficientRelevance = "insufficient_regional_relevance"
	ReasonNegativeKeyword       = "negative_keyword"
	ReasonCompetingRegion       = "competing_region"
)

// Snippet reasons
const (
	SnippetReasonShortBody = "body_below_minimum_word_count"
)

// Content is the candidate article as seen by the gate.
type Content struct {
	Title          string
	Body           string
	RelevanceScore int // regional relevance from import metadata, 0 if absent
}

// TopicConfig is the effective per-topic gating configuration. Zero-valued
// thresholds have already been replaced with the pipeline defaults.
type TopicConfig struct {
	Region            string
	NegativeKeywords  []string
	CompetingRegions  []string
	RelevanceFloor    int
	MinQualityScore   int
	MinRelevanceScore int
	MinBodyWordCount  int
}

// Decision is the gate outcome for one article.
type Decision struct {
	Accept         bool
	Reason         string // rejection reason, empty on accept
	RuleFired      string // the keyword or region term that triggered a rejection
	QualityScore   int
	KeywordMatches []string
	IsSnippet      bool
	SnippetReason  string
}

// ConfigForTopic resolves the effective gating configuration for a topic,
// falling back to the pipeline defaults for unset thresholds.
func ConfigForTopic(topic *models.Topic, defaults config.GateDefaults) TopicConfig {
	cfg := TopicConfig{
		Region:            topic.Region,
		NegativeKeywords:  decodeStringList(topic.NegativeKeywords),
		CompetingRegions:  decodeStringList(topic.CompetingRegions),
		RelevanceFloor:    topic.RelevanceFloor,
		MinQualityScore:   topic.MinQualityScore,
		MinRelevanceScore: topic.MinRelevanceScore,
		MinBodyWordCount:  defaults.MinBodyWordCount,
	}
	if cfg.RelevanceFloor == 0 {
		cfg.RelevanceFloor = defaults.RelevanceFloor
	}
	if cfg.MinQualityScore == 0 {
		cfg.MinQualityScore = defaults.MinQualityScore
	}
	if cfg.MinRelevanceScore == 0 {
		cfg.MinRelevanceScore = defaults.MinRelevanceScore
	}
	return cfg
}

// Evaluate applies exclusion rules and scoring to a candidate article.
// Exclusion rules fire regardless of relevance score; the relevance floor is
// checked last so rejection reasons are stable across re-evaluation.
func Evaluate(content Content, cfg TopicConfig) Decision {
	text := strings.ToLower(content.Title + " " + content.Body)

	if term := firstMatch(text, cfg.NegativeKeywords); term != "" {
		return Decision{Reason: ReasonNegativeKeyword, RuleFired: term}
	}
	if term := firstMatch(text, cfg.CompetingRegions); term != "" {
		return Decision{Reason: ReasonCompetingRegion, RuleFired: term}
	}
	if content.RelevanceScore < cfg.RelevanceFloor {
		return Decision{Reason: ReasonInsufficientRelevance}
	}

	decision := Decision{
		Accept:       true,
		QualityScore: QualityScore(content.Title, content.Body),
	}
	if cfg.Region != "" && strings.Contains(text, strings.ToLower(cfg.Region)) {
		decision.KeywordMatches = append(decision.KeywordMatches, strings.ToLower(cfg.Region))
	}
	if wc := len(strings.Fields(content.Body)); wc < cfg.MinBodyWordCount {
		decision.IsSnippet = true
		decision.SnippetReason = SnippetReasonShortBody
	}
	return decision
}

// QualityScore is a 0-100 heuristic over title and body shape: length,
// titled-ness and sentence structure. Deterministic by construction.
func QualityScore(title, body string) int {
	score := 0

	words := len(strings.Fields(body))
	lengthScore := words / 8
	if lengthScore > 70 {
		lengthScore = 70
	}
	score += lengthScore

	if strings.TrimSpace(title) != "" {
		score += 15
	}
	if strings.Count(body, ".") >= 3 {
		score += 15
	}

	if score > 100 {
		score = 100
	}
	return score
}

// EligibleForGeneration reports whether a processed article clears the
// per-topic quality and relevance minimums for queueing.
func EligibleForGeneration(article *models.TopicArticle, cfg TopicConfig) bool {
	if article.ProcessingStatus != models.ArticleStatusProcessed {
		return false
	}
	return article.ContentQualityScore >= cfg.MinQualityScore &&
		article.RegionalRelevanceScore >= cfg.MinRelevanceScore
}

func firstMatch(lowercaseText string, terms []string) string {
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(lowercaseText, term) {
			return term
		}
	}
	return ""
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

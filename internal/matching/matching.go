// Package matching holds the data model shared by the extraction,
// scoring and ranking components.
package matching

import (
	"errors"
	"math"
	"strings"
)

// ErrInvalidArgument marks caller mistakes that must not be retried.
var ErrInvalidArgument = errors.New("invalid argument")

// Experience levels recognized in extracted job requirements.
const (
	ExperienceEntry       = "entry"
	ExperienceMid         = "mid"
	ExperienceSenior      = "senior"
	ExperienceUnspecified = "unspecified"
)

// Employment types recognized in extracted job requirements.
const (
	EmploymentFullTime    = "full-time"
	EmploymentContract    = "contract"
	EmploymentPartTime    = "part-time"
	EmploymentUnspecified = "unspecified"
)

// Judgment scores for a single qualification.
const (
	ScoreNotMet      = 0
	ScoreSomewhatMet = 1
	ScoreStronglyMet = 2
)

// JobRequirements is the structured form of a job posting. It is
// produced once by the extractor and read-only afterwards.
type JobRequirements struct {
	Title                   string   `json:"title"`
	Company                 string   `json:"company"`
	Location                string   `json:"location"`
	RequiredQualifications  []string `json:"required_qualifications"`
	PreferredQualifications []string `json:"preferred_qualifications"`
	Description             string   `json:"description"`
	ExperienceLevel         string   `json:"experience_level"`
	EmploymentType          string   `json:"employment_type"`
}

// CandidateRecord is a single résumé returned by the candidate source.
type CandidateRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	FileName       string         `json:"file_name,omitempty"`
	ResumeText     string         `json:"resume_text"`
	RetrievalScore float64        `json:"retrieval_score"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// QualificationJudgment is the verdict for one qualification against
// one résumé.
type QualificationJudgment struct {
	Qualification string `json:"qualification"`
	Score         int    `json:"score"`
	Explanation   string `json:"explanation"`
	Required      bool   `json:"is_required"`
}

// CandidateAssessment aggregates all judgments for one candidate.
type CandidateAssessment struct {
	CandidateID      string                  `json:"candidate_id"`
	CandidateName    string                  `json:"candidate_name,omitempty"`
	Judgments        []QualificationJudgment `json:"judgments"`
	WeightedScore    float64                 `json:"weighted_score"`
	MaxPossibleScore float64                 `json:"max_possible_score"`
	MatchPercentage  float64                 `json:"match_percentage"`
	RetrievalScore   float64                 `json:"retrieval_score"`
}

// Weights define how much a single qualification score contributes to
// the aggregate. Defaults match the 2x/1x required/preferred policy.
type Weights struct {
	Required  float64
	Preferred float64
}

// DefaultWeights returns the standard required/preferred weighting.
func DefaultWeights() Weights {
	return Weights{Required: 2, Preferred: 1}
}

// MaxScore returns the highest achievable weighted score for the given
// list sizes.
func (w Weights) MaxScore(required, preferred int) float64 {
	return float64(ScoreStronglyMet)*w.Required*float64(required) +
		float64(ScoreStronglyMet)*w.Preferred*float64(preferred)
}

// Percentage converts a weighted score into a 0-100 percentage with two
// decimal places. A zero maximum yields 0, never NaN.
func Percentage(weighted, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(weighted/max*100*100) / 100
}

// NormalizeList trims every entry, drops empty ones and removes
// duplicates while preserving the first occurrence order.
func NormalizeList(items []string) []string {
	result := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

// SplitList parses a comma-separated qualification string into a
// normalized list.
func SplitList(csv string) []string {
	return NormalizeList(strings.Split(csv, ","))
}

// NormalizeExperienceLevel maps free-form experience wording onto the
// known enum, defaulting to unspecified.
func NormalizeExperienceLevel(raw string) string {
	switch normalized := strings.ToLower(strings.TrimSpace(raw)); {
	case strings.Contains(normalized, "entry") || strings.Contains(normalized, "junior"):
		return ExperienceEntry
	case strings.Contains(normalized, "mid"):
		return ExperienceMid
	case strings.Contains(normalized, "senior") || strings.Contains(normalized, "lead"):
		return ExperienceSenior
	default:
		return ExperienceUnspecified
	}
}

// NormalizeEmploymentType maps free-form employment wording onto the
// known enum, defaulting to unspecified.
func NormalizeEmploymentType(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch {
	case strings.Contains(normalized, "full"):
		return EmploymentFullTime
	case strings.Contains(normalized, "contract"):
		return EmploymentContract
	case strings.Contains(normalized, "part"):
		return EmploymentPartTime
	default:
		return EmploymentUnspecified
	}
}

// Normalize cleans the qualification lists and enum fields in place.
func (j *JobRequirements) Normalize() {
	j.Title = strings.TrimSpace(j.Title)
	j.Company = strings.TrimSpace(j.Company)
	j.Location = strings.TrimSpace(j.Location)
	j.Description = strings.TrimSpace(j.Description)
	j.RequiredQualifications = NormalizeList(j.RequiredQualifications)
	j.PreferredQualifications = NormalizeList(j.PreferredQualifications)
	j.ExperienceLevel = NormalizeExperienceLevel(j.ExperienceLevel)
	j.EmploymentType = NormalizeEmploymentType(j.EmploymentType)
}

// Package tools exposes the engine's operations as JSON-returning
// calls. Transports (CLI commands today) forward the payloads as-is.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/candidates"
	"github.com/ovoronin/resume-ranker/internal/logger"
	"github.com/ovoronin/resume-ranker/internal/matching"
	"github.com/ovoronin/resume-ranker/internal/ranker"
)

const (
	minJDLength = 10
	maxTopK     = 50
)

// Extractor turns job description text into structured requirements.
type Extractor interface {
	Extract(ctx context.Context, jdText string) (*matching.JobRequirements, error)
}

// Assessor runs qualification scoring for one candidate or a batch.
type Assessor interface {
	Assess(ctx context.Context, candidate matching.CandidateRecord, required, preferred []string, job *matching.JobRequirements) (matching.CandidateAssessment, error)
	Rank(ctx context.Context, records []matching.CandidateRecord, required, preferred []string, job *matching.JobRequirements, opts ranker.Options) ([]matching.CandidateAssessment, []ranker.Exclusion, error)
}

// Service wires the extractor, the ranking engine and a candidate
// source into the exposed operations. When fallback is non-nil it is
// queried after a source failure instead of surfacing the error.
type Service struct {
	extractor Extractor
	assessor  Assessor
	source    candidates.Source
	fallback  candidates.Source
	logger    *zap.Logger
}

func NewService(extractor Extractor, assessor Assessor, source, fallback candidates.Source, log *zap.Logger) *Service {
	return &Service{
		extractor: extractor,
		assessor:  assessor,
		source:    source,
		fallback:  fallback,
		logger:    logger.WithFields(log),
	}
}

type searchParameters struct {
	TopK            int                `json:"top_k"`
	EnableReranking bool               `json:"enable_reranking"`
	Required        []string           `json:"required_qualifications,omitempty"`
	Preferred       []string           `json:"preferred_qualifications,omitempty"`
	Skills          []string           `json:"skills,omitempty"`
	Exclusions      []ranker.Exclusion `json:"exclusions,omitempty"`
	MockFallback    bool               `json:"mock_fallback,omitempty"`
}

type matchResponse struct {
	TotalCandidates  int                            `json:"total_candidates"`
	SearchParameters searchParameters               `json:"search_parameters"`
	Candidates       []matching.CandidateAssessment `json:"candidates"`
}

// ExtractJobRequirements parses job description text into the
// structured requirements payload.
func (s *Service) ExtractJobRequirements(ctx context.Context, jdText string) (string, error) {
	trimmed := strings.TrimSpace(jdText)
	if len([]rune(trimmed)) < minJDLength {
		return fail(fmt.Errorf("%w: job description text must be at least %d characters", matching.ErrInvalidArgument, minJDLength))
	}

	job, err := s.extractor.Extract(ctx, trimmed)
	if err != nil {
		return fail(fmt.Errorf("extract job requirements: %w", err))
	}

	return marshal(job)
}

// FindMatchingCandidates retrieves candidates for the qualification
// lists, assesses each one and returns the ranked result set. The
// required list must not be empty; the preferred list may be.
func (s *Service) FindMatchingCandidates(ctx context.Context, requiredCSV, preferredCSV string, topK int, enableReranking bool) (string, error) {
	required := matching.SplitList(requiredCSV)
	if len(required) == 0 {
		return fail(fmt.Errorf("%w: at least one required qualification is needed", matching.ErrInvalidArgument))
	}
	preferred := matching.SplitList(preferredCSV)
	if err := validateTopK(topK); err != nil {
		return fail(err)
	}

	query := candidates.BuildQuery(required, preferred)
	records, usedFallback, err := s.retrieve(ctx, query, topK, enableReranking)
	if err != nil {
		return fail(err)
	}

	params := searchParameters{
		TopK:            topK,
		EnableReranking: enableReranking,
		Required:        required,
		Preferred:       preferred,
		MockFallback:    usedFallback,
	}

	return s.rank(ctx, records, required, preferred, params, ranker.Options{TopK: topK, EnableReranking: enableReranking})
}

// SearchCandidatesBySkills treats the skill list as required
// qualifications and ranks candidates against it.
func (s *Service) SearchCandidatesBySkills(ctx context.Context, skillsCSV string, topK int) (string, error) {
	skills := matching.SplitList(skillsCSV)
	if len(skills) == 0 {
		return fail(fmt.Errorf("%w: at least one skill is required", matching.ErrInvalidArgument))
	}
	if err := validateTopK(topK); err != nil {
		return fail(err)
	}

	query := candidates.BuildQuery(skills, nil)
	records, usedFallback, err := s.retrieve(ctx, query, topK, false)
	if err != nil {
		return fail(err)
	}

	params := searchParameters{
		TopK:         topK,
		Skills:       skills,
		MockFallback: usedFallback,
	}

	return s.rank(ctx, records, skills, nil, params, ranker.Options{TopK: topK})
}

// ScoreCandidateQualifications assesses a single résumé against the
// qualification lists without touching any candidate source.
func (s *Service) ScoreCandidateQualifications(ctx context.Context, resumeText, requiredCSV, preferredCSV, title, description string) (string, error) {
	if strings.TrimSpace(resumeText) == "" {
		return fail(fmt.Errorf("%w: résumé text is required", matching.ErrInvalidArgument))
	}
	required := matching.SplitList(requiredCSV)
	if len(required) == 0 {
		return fail(fmt.Errorf("%w: at least one required qualification is needed", matching.ErrInvalidArgument))
	}
	preferred := matching.SplitList(preferredCSV)

	job := &matching.JobRequirements{Title: title, Description: description}
	candidate := matching.CandidateRecord{ID: "candidate", ResumeText: resumeText}

	assessment, err := s.assessor.Assess(ctx, candidate, required, preferred, job)
	if err != nil {
		return fail(fmt.Errorf("score candidate: %w", err))
	}

	return marshal(assessment)
}

// retrieve queries the configured source, falling back to the mock
// source on failure when one is configured. A failed source with no
// fallback surfaces the error rather than an empty result set.
func (s *Service) retrieve(ctx context.Context, query string, topK int, enableReranking bool) ([]matching.CandidateRecord, bool, error) {
	records, err := s.source.Query(ctx, query, topK, enableReranking)
	if err == nil {
		return records, false, nil
	}
	if s.fallback == nil {
		return nil, false, fmt.Errorf("query candidate source: %w", err)
	}

	s.logger.Warn("candidate source failed, using mock fallback", zap.Error(err))
	records, fallbackErr := s.fallback.Query(ctx, query, topK, enableReranking)
	if fallbackErr != nil {
		return nil, false, fmt.Errorf("query fallback candidate source: %w", fallbackErr)
	}

	return records, true, nil
}

func (s *Service) rank(ctx context.Context, records []matching.CandidateRecord, required, preferred []string, params searchParameters, opts ranker.Options) (string, error) {
	response := matchResponse{
		SearchParameters: params,
		Candidates:       []matching.CandidateAssessment{},
	}

	if len(records) > 0 {
		assessments, exclusions, err := s.assessor.Rank(ctx, records, required, preferred, nil, opts)
		if err != nil {
			return fail(fmt.Errorf("rank candidates: %w", err))
		}
		response.Candidates = assessments
		response.SearchParameters.Exclusions = exclusions
	}

	response.TotalCandidates = len(response.Candidates)

	s.logger.Info("ranking complete",
		zap.Int("total_candidates", response.TotalCandidates),
		zap.Int("excluded", len(response.SearchParameters.Exclusions)),
		zap.Bool("mock_fallback", params.MockFallback),
	)

	return marshal(response)
}

func validateTopK(topK int) error {
	if topK < 1 || topK > maxTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d, got %d", matching.ErrInvalidArgument, maxTopK, topK)
	}
	return nil
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("encode response: %w", err))
	}
	return string(data), nil
}

// fail renders the error payload alongside the error itself, so
// transports can both forward the payload and signal failure.
func fail(err error) (string, error) {
	data, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error()), err
	}
	return string(data), err
}

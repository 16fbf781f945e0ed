// Package ranker aggregates qualification judgments into weighted
// candidate assessments and orders candidate sets deterministically.
package ranker

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ovoronin/resume-ranker/internal/logger"
	"github.com/ovoronin/resume-ranker/internal/matching"
	"github.com/ovoronin/resume-ranker/internal/scorer"
)

const defaultMaxConcurrency = 4

// QualificationScorer is the slice of the scorer used by the ranker.
type QualificationScorer interface {
	Score(ctx context.Context, qualification, resumeText string, job *matching.JobRequirements, required bool) (scorer.Outcome, error)
}

// Reranker refines an already sorted assessment list. Implementations
// must keep the result a permutation of the input.
type Reranker interface {
	Rerank(ctx context.Context, assessments []matching.CandidateAssessment) []matching.CandidateAssessment
}

// NopReranker leaves the ranking untouched. It is the default: when no
// reranking capability is configured, disabling reranking is a no-op,
// not an error.
type NopReranker struct{}

func (NopReranker) Rerank(_ context.Context, assessments []matching.CandidateAssessment) []matching.CandidateAssessment {
	return assessments
}

// Exclusion records a candidate dropped from a ranking batch and why.
type Exclusion struct {
	CandidateID string `json:"candidate_id"`
	Reason      string `json:"reason"`
}

// Options control a single Rank call.
type Options struct {
	TopK            int
	EnableReranking bool
}

// Ranker runs per-candidate assessments and ranks the results.
type Ranker struct {
	scorer         QualificationScorer
	weights        matching.Weights
	reranker       Reranker
	logger         *zap.Logger
	maxConcurrency int64
}

// New creates a Ranker. A zero or missing weight falls back to its
// default from the 2x/1x policy and a nil reranker to the no-op one.
func New(qualScorer QualificationScorer, weights matching.Weights, reranker Reranker, log *zap.Logger, maxConcurrency int) *Ranker {
	defaults := matching.DefaultWeights()
	if weights.Required <= 0 {
		weights.Required = defaults.Required
	}
	if weights.Preferred <= 0 {
		weights.Preferred = defaults.Preferred
	}
	if reranker == nil {
		reranker = NopReranker{}
	}
	concurrency := int64(maxConcurrency)
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	return &Ranker{
		scorer:         qualScorer,
		weights:        weights,
		reranker:       reranker,
		logger:         logger.WithFields(log),
		maxConcurrency: concurrency,
	}
}

// Assess scores one candidate against every qualification and folds the
// judgments into a weighted assessment. Required qualifications weigh
// twice as much as preferred ones under the default policy. An empty
// qualification set yields a zero assessment, not an error.
func (r *Ranker) Assess(ctx context.Context, candidate matching.CandidateRecord, required, preferred []string, job *matching.JobRequirements) (matching.CandidateAssessment, error) {
	assessment := matching.CandidateAssessment{
		CandidateID:    candidate.ID,
		CandidateName:  candidate.Name,
		RetrievalScore: candidate.RetrievalScore,
		Judgments:      make([]matching.QualificationJudgment, 0, len(required)+len(preferred)),
	}

	for _, qualification := range required {
		outcome, err := r.scorer.Score(ctx, qualification, candidate.ResumeText, job, true)
		if err != nil {
			return matching.CandidateAssessment{}, err
		}
		assessment.Judgments = append(assessment.Judgments, outcome.Judgment)
		assessment.WeightedScore += float64(outcome.Judgment.Score) * r.weights.Required
	}

	for _, qualification := range preferred {
		outcome, err := r.scorer.Score(ctx, qualification, candidate.ResumeText, job, false)
		if err != nil {
			return matching.CandidateAssessment{}, err
		}
		assessment.Judgments = append(assessment.Judgments, outcome.Judgment)
		assessment.WeightedScore += float64(outcome.Judgment.Score) * r.weights.Preferred
	}

	assessment.MaxPossibleScore = r.weights.MaxScore(len(required), len(preferred))
	assessment.MatchPercentage = matching.Percentage(assessment.WeightedScore, assessment.MaxPossibleScore)

	return assessment, nil
}

// Rank assesses every candidate concurrently and returns at most TopK
// assessments sorted by match percentage, retrieval score and candidate
// ID. Candidates whose assessment failed on the Judge transport are
// excluded with a reason; the batch never aborts because of one
// candidate. The output order depends only on scores and tie-break
// fields, never on completion order.
func (r *Ranker) Rank(ctx context.Context, candidates []matching.CandidateRecord, required, preferred []string, job *matching.JobRequirements, opts Options) ([]matching.CandidateAssessment, []Exclusion, error) {
	if opts.TopK <= 0 {
		return nil, nil, fmt.Errorf("%w: top_k must be positive, got %d", matching.ErrInvalidArgument, opts.TopK)
	}

	if len(candidates) == 0 {
		return []matching.CandidateAssessment{}, nil, nil
	}

	type slot struct {
		assessment matching.CandidateAssessment
		err        error
	}

	// Pre-sized, written by index: no locking needed.
	slots := make([]slot, len(candidates))
	sem := semaphore.NewWeighted(r.maxConcurrency)
	group, groupCtx := errgroup.WithContext(ctx)

	for i, candidate := range candidates {
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				slots[i].err = err
				return nil
			}
			defer sem.Release(1)

			assessment, err := r.Assess(groupCtx, candidate, required, preferred, job)
			if err != nil {
				slots[i].err = err
				return nil
			}
			slots[i].assessment = assessment
			return nil
		})
	}

	// Workers never return errors; failures are per-slot.
	_ = group.Wait()

	assessments := make([]matching.CandidateAssessment, 0, len(candidates))
	var excluded []Exclusion
	for i, s := range slots {
		if s.err != nil {
			reason := s.err.Error()
			if ctx.Err() != nil {
				reason = fmt.Sprintf("timed out: %s", reason)
			}
			fields := append(logger.CandidateFields(candidates[i].ID, candidates[i].Name), zap.Error(s.err))
			r.logger.Warn("candidate excluded from ranking", fields...)
			excluded = append(excluded, Exclusion{CandidateID: candidates[i].ID, Reason: reason})
			continue
		}
		assessments = append(assessments, s.assessment)
	}

	sortAssessments(assessments)

	if len(assessments) > opts.TopK {
		assessments = assessments[:opts.TopK]
	}

	if opts.EnableReranking {
		assessments = r.reranker.Rerank(ctx, assessments)
	}

	r.logger.Info("ranking completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(assessments)),
		zap.Int("excluded", len(excluded)),
	)

	return assessments, excluded, nil
}

// sortAssessments orders by match percentage descending, retrieval
// score descending, then candidate ID ascending for full determinism.
func sortAssessments(assessments []matching.CandidateAssessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		if assessments[i].MatchPercentage != assessments[j].MatchPercentage {
			return assessments[i].MatchPercentage > assessments[j].MatchPercentage
		}
		if assessments[i].RetrievalScore != assessments[j].RetrievalScore {
			return assessments[i].RetrievalScore > assessments[j].RetrievalScore
		}
		return assessments[i].CandidateID < assessments[j].CandidateID
	})
}

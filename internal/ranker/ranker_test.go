package ranker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/matching"
	"github.com/ovoronin/resume-ranker/internal/scorer"
)

// fixedScorer returns a fixed score for every qualification, optionally
// failing for chosen resumes and sleeping a random amount to shuffle
// completion order.
type fixedScorer struct {
	score       int
	failResumes map[string]error
	jitter      time.Duration
}

func (f *fixedScorer) Score(_ context.Context, qualification, resumeText string, _ *matching.JobRequirements, required bool) (scorer.Outcome, error) {
	if err, ok := f.failResumes[resumeText]; ok {
		return scorer.Outcome{}, err
	}

	if f.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.jitter))))
	}

	score := f.score
	if strings.TrimSpace(resumeText) == "" {
		score = matching.ScoreNotMet
	}

	return scorer.Outcome{
		Judgment: matching.QualificationJudgment{
			Qualification: qualification,
			Score:         score,
			Explanation:   fmt.Sprintf("fixed score %d", score),
			Required:      required,
		},
		Origin: scorer.OriginParsed,
	}, nil
}

func newTestRanker(s QualificationScorer) *Ranker {
	return New(s, matching.DefaultWeights(), nil, zap.NewNop(), 0)
}

func TestAssessAllStronglyMet(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})
	candidate := matching.CandidateRecord{ID: "c1", ResumeText: "resume"}

	assessment, err := r.Assess(context.Background(), candidate, []string{"Python", "AWS"}, []string{"Docker"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assessment.WeightedScore != 10 {
		t.Fatalf("expected weighted score 10, got %v", assessment.WeightedScore)
	}
	if assessment.MaxPossibleScore != 10 {
		t.Fatalf("expected max score 10, got %v", assessment.MaxPossibleScore)
	}
	if assessment.MatchPercentage != 100.0 {
		t.Fatalf("expected 100%%, got %v", assessment.MatchPercentage)
	}
	if len(assessment.Judgments) != 3 {
		t.Fatalf("expected 3 judgments, got %d", len(assessment.Judgments))
	}
}

func TestAssessEmptyResume(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})
	candidate := matching.CandidateRecord{ID: "c1", ResumeText: ""}

	assessment, err := r.Assess(context.Background(), candidate, []string{"Python"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assessment.WeightedScore != 0 {
		t.Fatalf("expected weighted score 0, got %v", assessment.WeightedScore)
	}
	if assessment.MaxPossibleScore != 4 {
		t.Fatalf("expected max score 4, got %v", assessment.MaxPossibleScore)
	}
	if assessment.MatchPercentage != 0 {
		t.Fatalf("expected 0%%, got %v", assessment.MatchPercentage)
	}
}

func TestAssessEmptyListsYieldZeroNotNaN(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})
	candidate := matching.CandidateRecord{ID: "c1", ResumeText: "resume"}

	assessment, err := r.Assess(context.Background(), candidate, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assessment.MaxPossibleScore != 0 {
		t.Fatalf("expected max score 0, got %v", assessment.MaxPossibleScore)
	}
	if assessment.MatchPercentage != 0 {
		t.Fatalf("expected percentage 0, got %v", assessment.MatchPercentage)
	}
}

func TestAssessWeightedScoreNeverExceedsMax(t *testing.T) {
	for score := matching.ScoreNotMet; score <= matching.ScoreStronglyMet; score++ {
		r := newTestRanker(&fixedScorer{score: score})
		candidate := matching.CandidateRecord{ID: "c1", ResumeText: "resume"}

		assessment, err := r.Assess(context.Background(), candidate, []string{"a", "b", "c"}, []string{"d", "e"}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if want := 4.0*3 + 2.0*2; assessment.MaxPossibleScore != want {
			t.Fatalf("expected max %v, got %v", want, assessment.MaxPossibleScore)
		}
		if assessment.WeightedScore > assessment.MaxPossibleScore {
			t.Fatalf("weighted score %v exceeds max %v", assessment.WeightedScore, assessment.MaxPossibleScore)
		}
		if assessment.MatchPercentage < 0 || assessment.MatchPercentage > 100 {
			t.Fatalf("percentage out of range: %v", assessment.MatchPercentage)
		}
	}
}

func TestRankRejectsNonPositiveTopK(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})

	_, _, err := r.Rank(context.Background(), []matching.CandidateRecord{{ID: "c1"}}, []string{"Python"}, nil, nil, Options{TopK: 0})
	if !errors.Is(err, matching.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRankEmptyCandidateList(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})

	assessments, excluded, err := r.Rank(context.Background(), nil, []string{"Python"}, nil, nil, Options{TopK: 5})
	if err != nil {
		t.Fatalf("expected no error for empty candidate list, got %v", err)
	}
	if len(assessments) != 0 || len(excluded) != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(assessments), len(excluded))
	}
}

func TestRankTieBreakOrder(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})

	candidates := []matching.CandidateRecord{
		{ID: "zeta", ResumeText: "resume", RetrievalScore: 0.5},
		{ID: "alpha", ResumeText: "resume", RetrievalScore: 0.5},
		{ID: "mid", ResumeText: "resume", RetrievalScore: 0.9},
		{ID: "empty", ResumeText: "", RetrievalScore: 0.99},
	}

	assessments, _, err := r.Rank(context.Background(), candidates, []string{"Python"}, nil, nil, Options{TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make([]string, 0, len(assessments))
	for _, a := range assessments {
		got = append(got, a.CandidateID)
	}

	// Same percentage: retrieval desc, then id asc. The empty resume
	// scores 0% and lands last despite its retrieval score.
	want := []string{"mid", "alpha", "zeta", "empty"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestRankOrderStableAcrossInvocations(t *testing.T) {
	r := New(&fixedScorer{score: matching.ScoreStronglyMet, jitter: 2 * time.Millisecond}, matching.DefaultWeights(), nil, zap.NewNop(), 3)

	candidates := make([]matching.CandidateRecord, 0, 8)
	for i := 0; i < 8; i++ {
		candidates = append(candidates, matching.CandidateRecord{
			ID:             fmt.Sprintf("cand-%d", i),
			ResumeText:     "resume",
			RetrievalScore: 0.25,
		})
	}

	var previous []string
	for run := 0; run < 3; run++ {
		assessments, _, err := r.Rank(context.Background(), candidates, []string{"Python"}, nil, nil, Options{TopK: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		order := make([]string, 0, len(assessments))
		for _, a := range assessments {
			order = append(order, a.CandidateID)
		}

		if previous != nil && !reflect.DeepEqual(previous, order) {
			t.Fatalf("order changed between runs: %v vs %v", previous, order)
		}
		previous = order
	}
}

func TestRankExcludesFailedCandidates(t *testing.T) {
	judgeErr := errors.New("backend unavailable")
	r := newTestRanker(&fixedScorer{
		score:       matching.ScoreStronglyMet,
		failResumes: map[string]error{"broken resume": judgeErr},
	})

	candidates := []matching.CandidateRecord{
		{ID: "good", ResumeText: "resume"},
		{ID: "bad", ResumeText: "broken resume"},
	}

	assessments, excluded, err := r.Rank(context.Background(), candidates, []string{"Python"}, nil, nil, Options{TopK: 10})
	if err != nil {
		t.Fatalf("one candidate's failure must not abort the batch: %v", err)
	}

	if len(assessments) != 1 || assessments[0].CandidateID != "good" {
		t.Fatalf("expected only the good candidate, got %+v", assessments)
	}

	if len(excluded) != 1 || excluded[0].CandidateID != "bad" {
		t.Fatalf("expected bad candidate to be excluded, got %+v", excluded)
	}

	if !strings.Contains(excluded[0].Reason, "backend unavailable") {
		t.Fatalf("expected reason to carry the cause, got %q", excluded[0].Reason)
	}
}

// blockingScorer stalls chosen resumes until the context expires and
// scores the rest immediately.
type blockingScorer struct {
	fixedScorer
	stallResumes map[string]bool
}

func (b *blockingScorer) Score(ctx context.Context, qualification, resumeText string, job *matching.JobRequirements, required bool) (scorer.Outcome, error) {
	if b.stallResumes[resumeText] {
		<-ctx.Done()
		return scorer.Outcome{}, ctx.Err()
	}
	return b.fixedScorer.Score(ctx, qualification, resumeText, job, required)
}

func TestRankDeadlineExcludesUnfinishedCandidates(t *testing.T) {
	r := newTestRanker(&blockingScorer{
		fixedScorer:  fixedScorer{score: matching.ScoreStronglyMet},
		stallResumes: map[string]bool{"stalled resume": true},
	})

	candidates := []matching.CandidateRecord{
		{ID: "fast", ResumeText: "resume"},
		{ID: "stuck", ResumeText: "stalled resume"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assessments, excluded, err := r.Rank(ctx, candidates, []string{"Python"}, nil, nil, Options{TopK: 10})
	if err != nil {
		t.Fatalf("a deadline must not abort the batch: %v", err)
	}

	if len(assessments) != 1 || assessments[0].CandidateID != "fast" {
		t.Fatalf("expected the finished candidate to rank, got %+v", assessments)
	}
	if assessments[0].MatchPercentage != 100.0 {
		t.Fatalf("finished assessment must keep its score, got %v", assessments[0].MatchPercentage)
	}

	if len(excluded) != 1 || excluded[0].CandidateID != "stuck" {
		t.Fatalf("expected the stalled candidate to be excluded, got %+v", excluded)
	}
	if !strings.HasPrefix(excluded[0].Reason, "timed out:") {
		t.Fatalf("expected a timed out reason, got %q", excluded[0].Reason)
	}
}

func TestNewFillsMissingWeightPerField(t *testing.T) {
	r := New(&fixedScorer{score: matching.ScoreStronglyMet}, matching.Weights{Required: 3}, nil, zap.NewNop(), 0)
	candidate := matching.CandidateRecord{ID: "c1", ResumeText: "resume"}

	assessment, err := r.Assess(context.Background(), candidate, []string{"Python"}, []string{"Docker"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Required weight stays 3, preferred falls back to the default 1.
	if assessment.WeightedScore != 8 {
		t.Fatalf("expected weighted score 8, got %v", assessment.WeightedScore)
	}
	if assessment.MaxPossibleScore != 8 {
		t.Fatalf("expected max score 8, got %v", assessment.MaxPossibleScore)
	}
}

func TestRankTruncatesToTopK(t *testing.T) {
	r := newTestRanker(&fixedScorer{score: matching.ScoreStronglyMet})

	candidates := []matching.CandidateRecord{
		{ID: "a", ResumeText: "resume"},
		{ID: "b", ResumeText: "resume"},
		{ID: "c", ResumeText: "resume"},
	}

	assessments, _, err := r.Rank(context.Background(), candidates, []string{"Python"}, nil, nil, Options{TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(assessments) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(assessments))
	}
}

type reverseReranker struct{ called bool }

func (r *reverseReranker) Rerank(_ context.Context, assessments []matching.CandidateAssessment) []matching.CandidateAssessment {
	r.called = true
	for i, j := 0, len(assessments)-1; i < j; i, j = i+1, j-1 {
		assessments[i], assessments[j] = assessments[j], assessments[i]
	}
	return assessments
}

func TestRankRerankingHook(t *testing.T) {
	reranker := &reverseReranker{}
	r := New(&fixedScorer{score: matching.ScoreStronglyMet}, matching.DefaultWeights(), reranker, zap.NewNop(), 0)

	candidates := []matching.CandidateRecord{
		{ID: "a", ResumeText: "resume"},
		{ID: "b", ResumeText: "resume"},
	}

	// Disabled reranking must be a no-op, not an error.
	if _, _, err := r.Rank(context.Background(), candidates, []string{"Python"}, nil, nil, Options{TopK: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reranker.called {
		t.Fatal("reranker must not run when disabled")
	}

	assessments, _, err := r.Rank(context.Background(), candidates, []string{"Python"}, nil, nil, Options{TopK: 5, EnableReranking: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reranker.called {
		t.Fatal("expected reranker to run when enabled")
	}
	if assessments[0].CandidateID != "b" {
		t.Fatalf("expected reranked order, got %+v", assessments)
	}
}

// Package scorer judges a single qualification against a single résumé
// through the Judge capability.
package scorer

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/ai"
	"github.com/ovoronin/resume-ranker/internal/logger"
	"github.com/ovoronin/resume-ranker/internal/matching"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	noResumeExplanation      = "no résumé text provided"
	unparseableExplanation   = "unable to parse evaluation"
	fallbackScoreExplanation = "judge response contained no recognizable score"
)

// Origin tells how a judgment's score was obtained from the raw Judge
// text. Fallback outcomes are defined defaults, not failures.
type Origin int

const (
	// OriginParsed means an unambiguous integer in {0,1,2} was found.
	OriginParsed Origin = iota
	// OriginKeyword means the score was mapped from a known phrasing.
	OriginKeyword
	// OriginFallback means nothing was recognized and the default of
	// 0 was applied.
	OriginFallback
	// OriginShortCircuit means no Judge call was made at all.
	OriginShortCircuit
)

func (o Origin) String() string {
	switch o {
	case OriginParsed:
		return "parsed"
	case OriginKeyword:
		return "keyword"
	case OriginFallback:
		return "fallback"
	case OriginShortCircuit:
		return "short_circuit"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of scoring one qualification.
type Outcome struct {
	Judgment matching.QualificationJudgment
	Origin   Origin
}

// keywordScores maps common score phrasings onto the discrete scale.
// Reviewed independently of the prompt text; order matters because the
// first matching phrase wins.
var keywordScores = []struct {
	phrase string
	score  int
}{
	{"not met", matching.ScoreNotMet},
	{"no evidence", matching.ScoreNotMet},
	{"strongly met", matching.ScoreStronglyMet},
	{"fully met", matching.ScoreStronglyMet},
	{"fully", matching.ScoreStronglyMet},
	{"strongly", matching.ScoreStronglyMet},
	{"exceeds", matching.ScoreStronglyMet},
	{"somewhat met", matching.ScoreSomewhatMet},
	{"somewhat", matching.ScoreSomewhatMet},
	{"partially met", matching.ScoreSomewhatMet},
	{"partially", matching.ScoreSomewhatMet},
	{"partial", matching.ScoreSomewhatMet},
}

// Scorer evaluates qualifications against résumés.
type Scorer struct {
	judge     ai.Judge
	logger    *zap.Logger
	maxLogLen int
}

// New creates a Scorer. A nil logger falls back to a no-op one.
func New(judge ai.Judge, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		judge:     judge,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// Score judges one qualification against one résumé. An empty résumé
// short-circuits to Not Met without a Judge call. Unparseable Judge
// output falls back to Not Met with a defined explanation; only
// transport failures from the Judge propagate as errors, so one broken
// judgment cannot abort the rest of a candidate's scoring.
func (s *Scorer) Score(ctx context.Context, qualification, resumeText string, job *matching.JobRequirements, required bool) (Outcome, error) {
	qualification = strings.TrimSpace(qualification)
	if qualification == "" {
		return Outcome{}, fmt.Errorf("%w: qualification must not be empty", matching.ErrInvalidArgument)
	}

	if strings.TrimSpace(resumeText) == "" {
		return Outcome{
			Judgment: matching.QualificationJudgment{
				Qualification: qualification,
				Score:         matching.ScoreNotMet,
				Explanation:   noResumeExplanation,
				Required:      required,
			},
			Origin: OriginShortCircuit,
		}, nil
	}

	prompt := buildPrompt(qualification, resumeText, job)

	s.logger.Debug("scoring request",
		zap.String("qualification", qualification),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.judge.Complete(ctx, prompt)
	if err != nil {
		return Outcome{}, fmt.Errorf("score qualification %q: %w", qualification, err)
	}

	outcome := parseJudgment(qualification, required, raw)

	if outcome.Origin == OriginFallback {
		s.logger.Warn("falling back to default score",
			zap.String("qualification", qualification),
			zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
		)
	}

	return outcome, nil
}

func buildPrompt(qualification, resumeText string, job *matching.JobRequirements) string {
	var jobContext strings.Builder
	if job != nil {
		if job.Title != "" {
			fmt.Fprintf(&jobContext, "JOB TITLE: %s\n", job.Title)
		}
		if job.Description != "" {
			fmt.Fprintf(&jobContext, "JOB DESCRIPTION: %s\n", job.Description)
		}
		if jobContext.Len() > 0 {
			jobContext.WriteString("\n")
		}
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_CONTEXT}}", jobContext.String())
	prompt = strings.ReplaceAll(prompt, "{{QUALIFICATION}}", qualification)
	prompt = strings.ReplaceAll(prompt, "{{RESUME}}", resumeText)
	return prompt
}

// parseJudgment extracts the discrete score and explanation from raw
// Judge text. It is fully deterministic given the raw text.
func parseJudgment(qualification string, required bool, raw string) Outcome {
	judgment := matching.QualificationJudgment{
		Qualification: qualification,
		Required:      required,
	}

	if score, ok := findScoreDigit(raw); ok {
		judgment.Score = score
		judgment.Explanation = extractExplanation(raw)
		return Outcome{Judgment: judgment, Origin: OriginParsed}
	}

	lowered := strings.ToLower(raw)
	for _, entry := range keywordScores {
		if strings.Contains(lowered, entry.phrase) {
			judgment.Score = entry.score
			judgment.Explanation = extractExplanation(raw)
			return Outcome{Judgment: judgment, Origin: OriginKeyword}
		}
	}

	judgment.Score = matching.ScoreNotMet
	judgment.Explanation = unparseableExplanation
	return Outcome{Judgment: judgment, Origin: OriginFallback}
}

// findScoreDigit looks for a standalone digit in {0,1,2}. Digits that
// are part of larger numbers ("10 years") or decimals ("2.5") do not
// count, but a trailing period as in "2." does not disqualify one.
func findScoreDigit(raw string) (int, bool) {
	runes := []rune(raw)
	for i, r := range runes {
		if r != '0' && r != '1' && r != '2' {
			continue
		}
		if isDigitBoundary(runes, i-1, i-2) && isDigitBoundary(runes, i+1, i+2) {
			return int(r - '0'), true
		}
	}
	return 0, false
}

// isDigitBoundary reports whether the rune adjacent to a candidate
// score digit separates it from surrounding text. A period joins only
// when the rune past it is another digit, as in "2.5".
func isDigitBoundary(runes []rune, adjacent, beyond int) bool {
	if adjacent < 0 || adjacent >= len(runes) {
		return true
	}
	if runes[adjacent] == '.' {
		return beyond < 0 || beyond >= len(runes) || !unicode.IsDigit(runes[beyond])
	}
	return !isWordRune(runes[adjacent])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+'
}

// extractExplanation returns the response minus the leading score,
// whether it sits on its own line ("2\n...") or opens the only one
// ("2. ...").
func extractExplanation(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallbackScoreExplanation
	}
	lines := strings.SplitN(trimmed, "\n", 2)
	if len(lines) == 2 {
		first := strings.TrimSpace(strings.Trim(lines[0], ".:- "))
		if len(first) <= 2 {
			return strings.TrimSpace(lines[1])
		}
	}
	if trimmed[0] == '0' || trimmed[0] == '1' || trimmed[0] == '2' {
		rest := strings.TrimLeft(trimmed[1:], ".:- ")
		if rest != trimmed[1:] && rest != "" {
			if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) {
				return rest
			}
		}
	}
	return trimmed
}

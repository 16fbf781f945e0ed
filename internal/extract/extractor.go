// Package extract turns raw job description text into structured job
// requirements using the Judge capability.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/ai"
	"github.com/ovoronin/resume-ranker/internal/logger"
	"github.com/ovoronin/resume-ranker/internal/matching"
)

//go:embed prompt.md
var promptTemplate string

//go:embed repair_prompt.md
var repairTemplate string

const defaultMaxLogLength = 200

// Error reports a Judge response that could not be coerced into the
// requirements schema even after one repair attempt. Raw keeps the
// offending response for diagnostics.
type Error struct {
	Raw string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract job requirements: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor builds extraction prompts and validates Judge responses.
type Extractor struct {
	judge     ai.Judge
	logger    *zap.Logger
	maxLogLen int
}

// New creates an Extractor. A nil logger falls back to a no-op one.
func New(judge ai.Judge, log *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Extractor{
		judge:     judge,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// Extract asks the Judge for the eight requirement fields and coerces
// the answer into a JobRequirements record. A response that parses as
// JSON but misses fields never fails: missing strings become empty,
// missing lists become empty sequences and missing enums become
// "unspecified". Only a response that is not parseable as structured
// data at all, twice in a row, produces an *Error.
func (e *Extractor) Extract(ctx context.Context, jdText string) (*matching.JobRequirements, error) {
	jdText = strings.TrimSpace(jdText)
	if jdText == "" {
		return nil, fmt.Errorf("%w: job description text is required", matching.ErrInvalidArgument)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{JD_TEXT}}", jdText)

	e.logger.Debug("extraction request",
		zap.Int("jd_length", utf8.RuneCountInString(jdText)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.judge.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	requirements, parseErr := parseRequirements(raw)
	if parseErr == nil {
		return requirements, nil
	}

	e.logger.Warn("extraction response is not valid json, requesting repair",
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
		zap.Error(parseErr),
	)

	repairPrompt := strings.ReplaceAll(repairTemplate, "{{RESPONSE}}", raw)
	repairPrompt = strings.ReplaceAll(repairPrompt, "{{JD_TEXT}}", jdText)

	repaired, err := e.judge.Complete(ctx, repairPrompt)
	if err != nil {
		return nil, fmt.Errorf("extraction repair request: %w", err)
	}

	requirements, parseErr = parseRequirements(repaired)
	if parseErr != nil {
		return nil, &Error{Raw: repaired, Err: parseErr}
	}

	return requirements, nil
}

// parseRequirements coerces the raw Judge output into the schema. It is
// tolerant about wrong value types but strict about the payload being a
// JSON object.
func parseRequirements(raw string) (*matching.JobRequirements, error) {
	cleaned := stripFences(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	requirements := &matching.JobRequirements{
		Title:                   coerceString(data["title"]),
		Company:                 coerceString(data["company"]),
		Location:                coerceString(data["location"]),
		RequiredQualifications:  coerceStringList(data["required_qualifications"]),
		PreferredQualifications: coerceStringList(data["preferred_qualifications"]),
		Description:             coerceString(data["description"]),
		ExperienceLevel:         coerceString(data["experience_level"]),
		EmploymentType:          coerceString(data["employment_type"]),
	}

	requirements.Normalize()
	return requirements, nil
}

// stripFences removes markdown code fences that models like to wrap
// JSON payloads in.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func coerceStringList(v any) []string {
	switch val := v.(type) {
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, coerceString(item))
		}
		return items
	case []string:
		return val
	case string:
		// Some responses return the list as one comma-separated string.
		return matching.SplitList(val)
	default:
		return nil
	}
}

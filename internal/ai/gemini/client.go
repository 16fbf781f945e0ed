// Package gemini implements the ai.Judge capability on top of the
// Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ovoronin/resume-ranker/internal/ai"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	baseBackoff       = time.Second
	// Quota hints asking to wait longer than this are not worth it.
	maxQuotaDelay = 30 * time.Second
)

// Swapped out in tests to keep backoff instant.
var sleep = time.Sleep

var retryDelayRe = regexp.MustCompile(`retry.*?(\d+(?:\.\d+)?)\s*s`)

// contentCaller is the slice of the genai client used by the generator.
type contentCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type modelsCaller struct {
	client *genai.Client
}

func (m *modelsCaller) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.client.Models.GenerateContent(ctx, model, contents, config)
}

// Generator is an ai.Judge backed by the Gemini API. Transient API
// failures are retried with exponential backoff before surfacing.
type Generator struct {
	models     contentCaller
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:     &modelsCaller{client: client},
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Complete sends the prompt to Gemini and returns the combined textual
// response.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err == nil {
			return collectText(resp)
		}

		lastErr = classify(err)
		if !ai.IsTransient(lastErr) {
			return "", lastErr
		}

		if attempt == g.maxRetries {
			break
		}

		delay := baseBackoff << (attempt - 1)
		if hinted, ok := quotaDelayHint(err); ok {
			if hinted > maxQuotaDelay {
				g.logger.Warn("quota retry delay too long, giving up",
					zap.Duration("hinted_delay", hinted),
					zap.Duration("max_delay", maxQuotaDelay),
				)
				return "", lastErr
			}
			delay = hinted
		}

		g.logger.Debug("retrying gemini request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		sleep(delay)

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s", ai.ErrTimeout, ctx.Err())
		}
	}

	return "", lastErr
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", fmt.Errorf("%w: gemini api returned empty response", ai.ErrUnavailable)
	}

	return output, nil
}

// classify maps provider errors onto the shared transient taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ai.ErrTimeout, err)
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("generate content: %w", err)
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ai.ErrRateLimited, apiErr.Message)
	case apiErr.Code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s", ai.ErrTimeout, apiErr.Message)
	case apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ai.ErrUnavailable, apiErr.Message)
	default:
		return fmt.Errorf("generate content: %w", err)
	}
}

// quotaDelayHint extracts the "retry after N seconds" hint that quota
// errors carry in their message.
func quotaDelayHint(err error) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	if apiErr.Code != http.StatusTooManyRequests {
		return 0, false
	}

	match := retryDelayRe.FindStringSubmatch(strings.ToLower(apiErr.Message))
	if len(match) < 2 {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}

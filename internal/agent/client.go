package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"clinical-intake-agent/internal/intake"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
	defaultBaseBackoff = 1 * time.Second

	// 50 requests per minute, bursts of 5.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   float64 // requests per second
	Burst       int
}

// Oracle implements intake.Oracle on top of a langchaingo chat model.
type Oracle struct {
	llm         llms.Model
	temperature float64
	limiter     *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	logger      *zap.Logger
}

var _ intake.Oracle = (*Oracle)(nil)

// NewOpenAIOracle talks to any OpenAI-compatible chat completions endpoint.
func NewOpenAIOracle(cfg Config, logger *zap.Logger) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return NewOracle(llm, cfg, logger), nil
}

// NewOracle wraps an existing model. Zero rate limits fall back to defaults.
// Temperature is passed through as given and zero MaxRetries means a single attempt.
func NewOracle(llm llms.Model, cfg Config, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	limit, burst := cfg.RateLimit, cfg.Burst
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Oracle{
		llm:         llm,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries:  maxRetries,
		backoff:     defaultBaseBackoff,
		logger:      logger,
	}
}

func (o *Oracle) GenerateText(ctx context.Context, instructions []string, transcript []intake.Turn) (string, error) {
	content, err := o.generate(ctx, "text", buildMessages(instructions, transcript),
		llms.WithTemperature(o.temperature))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateStructured asks for a JSON object matching schema and decodes it
// into out. Undecodable output is reported as intake.ErrMalformedOutput.
func (o *Oracle) GenerateStructured(ctx context.Context, instructions []string, transcript []intake.Turn, schema intake.Schema, out any) error {
	instructions = append(append([]string(nil), instructions...), structuredInstruction(schema))
	content, err := o.generate(ctx, schema.Name, buildMessages(instructions, transcript),
		llms.WithTemperature(o.temperature),
		llms.WithJSONMode())
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(content)), out); err != nil {
		o.logger.Debug("structured output rejected",
			zap.String("schema", schema.Name),
			zap.String("content", content),
			zap.Error(err))
		return fmt.Errorf("%s: %w: %v", schema.Name, intake.ErrMalformedOutput, err)
	}
	return nil
}

func (o *Oracle) generate(ctx context.Context, kind string, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := o.llm.GenerateContent(ctx, messages, opts...)
		if err == nil {
			if len(resp.Choices) == 0 {
				err = errors.New("empty response from model")
			} else {
				requestDuration.WithLabelValues(kind, "success").Observe(time.Since(start).Seconds())
				return resp.Choices[0].Content, nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		lastErr = err
		o.logger.Warn("oracle request failed",
			zap.String("kind", kind),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	requestDuration.WithLabelValues(kind, "error").Observe(time.Since(start).Seconds())
	return "", fmt.Errorf("%w: max retries exceeded: %w", intake.ErrOracleUnavailable, lastErr)
}

func buildMessages(instructions []string, transcript []intake.Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(instructions)+len(transcript))
	for _, inst := range instructions {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, inst))
	}
	for _, turn := range transcript {
		role := llms.ChatMessageTypeHuman
		if turn.Role == intake.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Text))
	}
	return messages
}

func structuredInstruction(schema intake.Schema) string {
	return fmt.Sprintf("Respond ONLY with a JSON object of this shape, no additional text:\n%s", schema.Description)
}

// Some models wrap JSON in markdown code blocks even in JSON mode.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

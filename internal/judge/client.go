package judge

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/sync/semaphore"

	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/models"
)

// completer abstracts the chat endpoint so tests can stub replies.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// Client scores responses through one configured judge endpoint.
// In-flight calls across all clients are bounded by a shared weighted
// semaphore.
type Client struct {
	cfg          config.JudgeConfig
	llm          completer
	sem          *semaphore.Weighted
	contextLimit int
}

// NewClient builds an OpenAI-backed judge client. sem caps concurrent
// judge calls process-wide and may be shared between clients.
func NewClient(cfg config.JudgeConfig, judging config.JudgingConfig, sem *semaphore.Weighted) *Client {
	return &Client{
		cfg:          cfg,
		llm:          newOpenAICompleter(cfg),
		sem:          sem,
		contextLimit: judging.ContextLimitBytes,
	}
}

// ID returns the judge identifier used in score attribution.
func (c *Client) ID() string {
	return c.cfg.ID
}

// Score evaluates one dimension of one response. Transport failures
// return an error wrapping models.ErrJudgeUnavailable; replies that
// never conform to the scoring schema exhaust the configured parse
// retries and yield an unscorable verdict with a nil error. A score is
// never defaulted numerically.
func (c *Client) Score(ctx context.Context, req Request) (models.DimensionScore, error) {
	if !Judgeable(req.Dimension) {
		return models.DimensionScore{}, fmt.Errorf("judge: dimension %q is not judged", req.Dimension)
	}

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return models.DimensionScore{}, fmt.Errorf("judge: acquiring slot: %w", err)
		}
		defer c.sem.Release(1)
	}

	user := buildUserPrompt(req, c.contextLimit)

	var lastParseErr error
	for attempt := 1; attempt <= c.cfg.ParseRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
		raw, err := c.llm.complete(callCtx, systemPrompt, user)
		cancel()
		if err != nil {
			return models.DimensionScore{}, err
		}

		v, err := parseVerdict(raw)
		if err != nil {
			lastParseErr = err
			continue
		}

		return models.DimensionScore{
			PromptID:  req.PromptID,
			TargetID:  req.TargetID,
			Dimension: req.Dimension,
			Score:     v.Score,
			Reasoning: v.Reasoning,
			Evidence:  v.Evidence,
			JudgeID:   c.cfg.ID,
		}, nil
	}

	return models.DimensionScore{
		PromptID:         req.PromptID,
		TargetID:         req.TargetID,
		Dimension:        req.Dimension,
		JudgeID:          c.cfg.ID,
		Unscorable:       true,
		UnscorableReason: fmt.Sprintf("%d parse attempts failed: %v", c.cfg.ParseRetries, lastParseErr),
	}, nil
}

// openaiCompleter issues chat completions with native structured
// output so conforming replies are the common case.
type openaiCompleter struct {
	client openai.Client
	cfg    config.JudgeConfig
	schema any
}

func newOpenAICompleter(cfg config.JudgeConfig) *openaiCompleter {
	var opts []openaiopt.RequestOption
	if key := cfg.APIKey(); key != "" {
		opts = append(opts, openaiopt.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
	}

	var schemaDoc any
	// Compile-time constant, cannot fail at runtime.
	_ = json.Unmarshal([]byte(verdictSchemaJSON), &schemaDoc)

	return &openaiCompleter{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		schema: schemaDoc,
	}
}

func (o *openaiCompleter) complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(o.cfg.Temperature),
	}
	req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        "dimension_verdict",
				Schema:      o.schema,
				Strict:      openai.Bool(true),
				Description: openai.String("Integer 1-5 verdict on one quality dimension"),
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrJudgeUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", models.ErrJudgeUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

package openaiapi

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"englishbuddy/logger"
	"englishbuddy/modelapi"
)

const (
	defaultRetries   = 3
	defaultBaseDelay = 1 * time.Second
	maxBackoffDelay  = 30 * time.Second

	analysisModel = openai.ChatModelGPT4o
)

type OpenAIConnectProps struct {
	Logger *logger.LogMiddleware
	// Retries and BaseDelay control the capped exponential backoff around
	// analysis runs. Zero values take the defaults.
	Retries   int
	BaseDelay time.Duration
}

type OpenAI struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
	client    *openai.Client
	retries   int
	baseDelay time.Duration
}

func Connect(ctx context.Context, args OpenAIConnectProps) *OpenAI {
	tracer := otel.Tracer("openaiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	OPENAI_SECRET_KEY := os.Getenv("OPENAI_SECRET_KEY")

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))
	client := openai.NewClient(
		option.WithAPIKey(OPENAI_SECRET_KEY),
	)

	retries := args.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	baseDelay := args.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	return &OpenAI{
		logger:    args.Logger,
		semaphore: sem,
		client:    &client,
		retries:   retries,
		baseDelay: baseDelay,
	}
}

func (o *OpenAI) backoffDelay(attempt int) time.Duration {
	delay := o.baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxBackoffDelay {
		return maxBackoffDelay
	}
	return delay
}

// RunAgent sends one input blob to an agent defined by its system prompt and
// returns the raw response text, tags included. Retries with capped
// exponential backoff before giving up.
func (o *OpenAI) RunAgent(ctx context.Context, agent string, systemPrompt string, input string) (string, error) {
	tracer := otel.Tracer("openaiapi/RunAgent")
	ctx, span := tracer.Start(ctx, "RunAgent")
	defer span.End()

	span.SetAttributes(
		attribute.String("agent", agent),
		attribute.Int("input.length", len(input)),
	)

	if err := o.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer o.semaphore.Release(1)

	var lastErr error
	for attempt := 0; attempt < o.retries; attempt++ {
		resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: analysisModel,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(input),
			},
		})

		if err == nil && len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
			span.AddEvent("Agent run successful")
			return resp.Choices[0].Message.Content, nil
		}

		if err != nil {
			lastErr = err
			span.RecordError(err)
		} else {
			lastErr = fmt.Errorf("empty response from agent %s", agent)
		}

		o.logger.Logger(ctx).Error(
			"[OpenAI-API] Agent run failed. Retrying after sleeping.",
			zap.Error(lastErr),
			zap.String("agent", agent),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", o.retries),
		)

		if attempt < o.retries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.backoffDelay(attempt)):
			}
		}
	}

	span.AddEvent("All retries exhausted")
	return "", fmt.Errorf("agent %s failed after %d attempts: %w", agent, o.retries, lastErr)
}

// AnalyzeVocabulary evaluates word range and appropriateness of the essay
// answers.
func (o *OpenAI) AnalyzeVocabulary(ctx context.Context, responses string) (string, error) {
	return o.RunAgent(ctx, "vocabulary", modelapi.VOCABULARY_SYSTEM_PROMPT, responses)
}

// AnalyzeTenses evaluates tense usage.
func (o *OpenAI) AnalyzeTenses(ctx context.Context, responses string) (string, error) {
	return o.RunAgent(ctx, "tense", modelapi.TENSE_SYSTEM_PROMPT, responses)
}

// AnalyzeStyle evaluates writing style.
func (o *OpenAI) AnalyzeStyle(ctx context.Context, responses string) (string, error) {
	return o.RunAgent(ctx, "style", modelapi.STYLE_SYSTEM_PROMPT, responses)
}

// AnalyzeGrammar evaluates grammar correctness.
func (o *OpenAI) AnalyzeGrammar(ctx context.Context, responses string) (string, error) {
	return o.RunAgent(ctx, "grammar", modelapi.GRAMMAR_SYSTEM_PROMPT, responses)
}

// RunMiniReport produces the short teaser evaluation.
func (o *OpenAI) RunMiniReport(ctx context.Context, responses string) (string, error) {
	return o.RunAgent(ctx, "mini_report", modelapi.MINI_REPORT_SYSTEM_PROMPT, responses)
}

// RunStudyPlan turns the folded five-skill payload into a study plan.
func (o *OpenAI) RunStudyPlan(ctx context.Context, payload string) (string, error) {
	return o.RunAgent(ctx, "study_plan", modelapi.STUDY_PLAN_SYSTEM_PROMPT, payload)
}

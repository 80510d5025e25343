package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storyboard-server/internal/config"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed wraps every failure of the text backend.
var ErrAIGenerationFailed = errors.New("ai text generation failed")

// fallbackEncoding is used when tiktoken does not know the configured model.
const fallbackEncoding = "cl100k_base"

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_ai_requests_total",
			Help: "Total number of requests to the text generation backend.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyboard_ai_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"model"},
	)
	aiTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyboard_ai_tokens",
			Help:    "Histogram of token counts per request.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model", "kind"},
	)
)

// GenerationParams overrides backend defaults; nil fields keep the configured value.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

// UsageInfo reports token usage of one request. Estimated is set when the backend did not
// report usage and the counts come from tiktoken.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// Client generates text from a system prompt and user input.
type Client interface {
	GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// NewClient creates the backend selected by AI_CLIENT_TYPE.
func NewClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	defaults := GenerationParams{Temperature: &cfg.AITemperature, MaxTokens: &cfg.AIMaxTokens}
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		logger.Info("OpenAI-compatible client created",
			zap.String("baseURL", cfg.AIBaseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
		return &openAIClient{
			client:   openaigo.NewClientWithConfig(openaiConfig),
			model:    cfg.AIModel,
			defaults: defaults,
			logger:   logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		return newOllamaClient(cfg, defaults, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type '%s'", cfg.AIClientType)
	}
}

type openAIClient struct {
	client   *openaigo.Client
	model    string
	defaults GenerationParams
	logger   *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	log := c.logger.With(zap.String("userID", userID), zap.String("model", c.model))
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", UsageInfo{}, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}
	params = mergeParams(params, c.defaults)

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	start := time.Now()
	log.Debug("Sending chat completion", zap.Int("systemPromptBytes", len(systemPrompt)), zap.Int("userInputBytes", len(userInput)))
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(*params.Temperature),
		MaxTokens:   *params.MaxTokens,
	})
	duration := time.Since(start)
	if err != nil {
		log.Error("Chat completion failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", UsageInfo{}, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn("Chat completion returned empty response", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", UsageInfo{}, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Choices[0].Message.Content
	usage := UsageInfo{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = EstimateUsage(c.model, systemPrompt+userInput, text)
	}
	observe(c.model, duration, usage)
	log.Info("Chat completion received", zap.Duration("duration", duration), zap.Int("responseLength", len(text)),
		zap.Int("totalTokens", usage.TotalTokens), zap.Bool("estimated", usage.Estimated))
	return text, usage, nil
}

type ollamaClient struct {
	client   *api.Client
	model    string
	timeout  time.Duration
	defaults GenerationParams
	logger   *zap.Logger
}

func newOllamaClient(cfg *config.Config, defaults GenerationParams, logger *zap.Logger) (Client, error) {
	// api.NewClient expects the server root, without the OpenAI-style /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing Ollama base URL '%s': %w", baseURL, err)
	}
	logger.Info("Ollama client created",
		zap.String("baseURL", baseURL), zap.String("model", cfg.AIModel), zap.Duration("timeout", cfg.AITimeout))
	return &ollamaClient{
		client:   api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout}),
		model:    cfg.AIModel,
		timeout:  cfg.AITimeout,
		defaults: defaults,
		logger:   logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	log := c.logger.With(zap.String("userID", userID), zap.String("model", c.model))
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", UsageInfo{}, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}
	params = mergeParams(params, c.defaults)

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Format:   []byte(`"json"`),
		Options: map[string]interface{}{
			"temperature": *params.Temperature,
			"num_predict": *params.MaxTokens,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			log.Error("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", UsageInfo{}, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", UsageInfo{}, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Message.Content
	usage := UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	if usage.TotalTokens == 0 {
		usage = EstimateUsage(c.model, systemPrompt+userInput, text)
	}
	observe(c.model, duration, usage)
	log.Info("Ollama response received", zap.Duration("duration", duration), zap.Int("responseLength", len(text)))
	return text, usage, nil
}

// EstimateUsage counts tokens with tiktoken, falling back to cl100k_base for unknown models.
func EstimateUsage(model, prompt, completion string) UsageInfo {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if enc, err = tiktoken.GetEncoding(fallbackEncoding); err != nil {
			return UsageInfo{Estimated: true}
		}
	}
	p := len(enc.Encode(prompt, nil, nil))
	c := len(enc.Encode(completion, nil, nil))
	return UsageInfo{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c, Estimated: true}
}

func observe(model string, duration time.Duration, usage UsageInfo) {
	aiRequestsTotal.WithLabelValues(model, "success").Inc()
	aiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if usage.TotalTokens > 0 {
		aiTokens.WithLabelValues(model, "prompt").Observe(float64(usage.PromptTokens))
		aiTokens.WithLabelValues(model, "completion").Observe(float64(usage.CompletionTokens))
	}
}

func mergeParams(p, defaults GenerationParams) GenerationParams {
	if p.Temperature == nil {
		p.Temperature = defaults.Temperature
	}
	if p.MaxTokens == nil {
		p.MaxTokens = defaults.MaxTokens
	}
	return p
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianInsights/services/insights/observability"
	"github.com/sashabaranov/go-openai"
)

// DefaultGroqModel is the fixed fallback model id used when the requested
// model has been decommissioned or is unknown to the provider.
const DefaultGroqModel = "llama-3.3-70b-versatile"

// defaultGroqBaseURL is Groq's OpenAI-compatible endpoint.
const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

type GroqClient struct {
	client        *openai.Client
	model         string
	fallbackModel string
}

// NewGroqClient builds a client for Groq's OpenAI-compatible API.
//
// The API key comes from the argument, then the GROQ_API_KEY environment
// variable; the base URL can be overridden with GROQ_BASE_URL for tests and
// self-hosted gateways.
func NewGroqClient(apiKey, model string) (*GroqClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	if apiKey == "" {
		slog.Error("no Groq API key provided in request or environment")
		return nil, fmt.Errorf("GROQ_API_KEY is not set and no api_key was supplied")
	}
	if model == "" {
		model = DefaultGroqModel
		slog.Warn("model not set, defaulting", "model", model)
	}

	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	slog.Info("Initializing Groq client", "model", model, "base_url", baseURL)
	return &GroqClient{
		client:        openai.NewClientWithConfig(config),
		model:         model,
		fallbackModel: DefaultGroqModel,
	}, nil
}

// Generate implements the LLMClient interface.
//
// On a model-not-found-class error (decommissioned or unknown model id) the
// call is retried exactly once with the fixed default model. Any other
// failure, or a failure of the fallback itself, surfaces to the caller.
func (g *GroqClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	content, err := g.generateWith(ctx, g.model, prompt, params)
	if err == nil {
		return content, nil
	}
	if !isModelNotFound(err) || g.model == g.fallbackModel {
		return "", err
	}

	slog.Warn("model unavailable, retrying with default model",
		"requested", g.model, "fallback", g.fallbackModel, "error", err)
	observability.ModelFallbackTotal.Inc()
	return g.generateWith(ctx, g.fallbackModel, prompt, params)
}

func (g *GroqClient) generateWith(ctx context.Context, model, prompt string, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	if params.ForceJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Groq API call failed", "model", model, "error", err)
		return "", fmt.Errorf("Groq API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Groq returned no choices")
		return "", fmt.Errorf("Groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// isModelNotFound classifies provider errors that mean the requested model id
// no longer exists (404s, model_not_found codes, decommission notices).
func isModelNotFound(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 404 {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && code == "model_not_found" {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		return strings.Contains(msg, "decommissioned") || strings.Contains(msg, "does not exist")
	}
	return false
}

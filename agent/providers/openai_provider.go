package providers

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider is the adapter for the OpenAI chat completions API.
type OpenAIProvider struct {
	baseURL string
}

// NewOpenAIProvider creates the provider; baseURL empty uses the public API.
func NewOpenAIProvider(baseURL string) *OpenAIProvider {
	return &OpenAIProvider{baseURL: baseURL}
}

// Chat implements domain.AIProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	if req.APIKey == "" {
		return domain.ChatResponse{}, fmt.Errorf("openai: %w", domain.ErrNoAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(req.APIKey), option.WithMaxRetries(1)}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	client := openai.NewClient(opts...)

	model := req.Model
	if model == "" {
		model = domain.DefaultOpenAIModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, t := range req.History {
		if t.Text == "" {
			continue
		}
		if t.Role == domain.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	if req.UserText != "" {
		messages = append(messages, openai.UserMessage(req.UserText))
	}

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return domain.ChatResponse{}, err
	}
	if len(completion.Choices) == 0 {
		return domain.ChatResponse{}, fmt.Errorf("no response from openai")
	}

	resp := domain.ChatResponse{
		Text:  completion.Choices[0].Message.Content,
		Usage: p.extractUsage(model, completion.Usage),
	}

	logrus.WithFields(logrus.Fields{
		"chat_key":      req.ChatKey,
		"model":         model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"cost_usd":      fmt.Sprintf("$%.6f", resp.Usage.CostUSD),
	}).Debug("[OPENAI] Chat completed")

	return resp, nil
}

func (p *OpenAIProvider) extractUsage(model string, usage openai.CompletionUsage) *domain.UsageStats {
	input := int(usage.PromptTokens)
	output := int(usage.CompletionTokens)
	cached := int(usage.PromptTokensDetails.CachedTokens)
	return &domain.UsageStats{
		Model:        model,
		InputTokens:  input,
		OutputTokens: output,
		CachedTokens: cached,
		CostUSD:      domain.Cost(domain.OpenAIModelPrices, domain.DefaultOpenAIModel, model, input, output, cached),
	}
}

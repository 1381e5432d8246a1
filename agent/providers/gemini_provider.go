package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiProvider is the adapter for the Google Gemini API.
type GeminiProvider struct {
	baseURL    string
	retryDelay time.Duration
}

// NewGeminiProvider creates the provider; baseURL empty uses the public API.
func NewGeminiProvider(baseURL string) *GeminiProvider {
	return &GeminiProvider{baseURL: baseURL, retryDelay: time.Second}
}

// Chat implementa domain.AIProvider enviando una petición a la API de Gemini
func (p *GeminiProvider) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	if req.APIKey == "" {
		return domain.ChatResponse{}, fmt.Errorf("gemini: %w", domain.ErrNoAPIKey)
	}

	cc := &genai.ClientConfig{
		APIKey:  req.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, "")
	}

	var contents []*genai.Content
	for _, t := range req.History {
		if t.Text == "" {
			continue
		}
		role := genai.RoleUser
		if t.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Text}}})
	}
	if req.UserText != "" {
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.UserText}}})
	}

	model := req.Model
	if model == "" {
		model = domain.DefaultGeminiModel
	}
	// respuestas de chat: sin razonamiento extendido para bajar latencia
	p.applyThinking(cfg, model)

	result, err := p.generateContentWithRetry(ctx, client, model, contents, cfg)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return domain.ChatResponse{}, fmt.Errorf("no response from gemini")
	}

	// Extraer texto manualmente de las partes (más robusto que result.Text())
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}

	resp := domain.ChatResponse{Text: text.String(), Usage: p.extractUsage(model, result.UsageMetadata)}
	if resp.Usage != nil {
		logrus.WithFields(logrus.Fields{
			"chat_key":      req.ChatKey,
			"model":         model,
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
			"cached_tokens": resp.Usage.CachedTokens,
			"cost_usd":      fmt.Sprintf("$%.6f", resp.Usage.CostUSD),
		}).Debug("[GEMINI] Chat completed")
	}
	return resp, nil
}

func (p *GeminiProvider) extractUsage(model string, usage *genai.GenerateContentResponseUsageMetadata) *domain.UsageStats {
	if usage == nil {
		return nil
	}
	input := int(usage.PromptTokenCount)
	output := int(usage.CandidatesTokenCount)
	cached := int(usage.CachedContentTokenCount)
	return &domain.UsageStats{
		Model:        model,
		InputTokens:  input,
		OutputTokens: output,
		CachedTokens: cached,
		CostUSD:      domain.Cost(domain.GeminiModelPrices, domain.DefaultGeminiModel, model, input, output, cached),
	}
}

func (p *GeminiProvider) generateContentWithRetry(ctx context.Context, client *genai.Client, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		result, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return result, nil
		}
		if !strings.Contains(err.Error(), "503") {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.retryDelay * time.Duration(1<<uint(i))):
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// applyThinking minimiza el razonamiento en los modelos que lo soportan.
func (p *GeminiProvider) applyThinking(cfg *genai.GenerateContentConfig, model string) {
	switch {
	case strings.Contains(model, "gemini-3"):
		lvl := "minimal"
		if strings.Contains(model, "pro") {
			lvl = "low"
		}
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingLevel: genai.ThinkingLevel(lvl)}
	case strings.Contains(model, "gemini-2.5"):
		// Pro no permite apagarlo, delegamos a dinámico (-1)
		budget := int32(0)
		if strings.Contains(model, "pro") {
			budget = -1
		}
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}
}

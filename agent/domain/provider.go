package domain

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn es un turno del historial enviado al modelo.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest es una petición agnóstica de chat.
type ChatRequest struct {
	APIKey       string
	Model        string
	SystemPrompt string
	History      []ChatTurn
	UserText     string
	// ChatKey identifica la conversación en los logs del proveedor.
	ChatKey string
}

type UsageStats struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CachedTokens int     `json:"cached_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

type ChatResponse struct {
	Text  string
	Usage *UsageStats
}

// AIProvider genera la respuesta del agente.
type AIProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

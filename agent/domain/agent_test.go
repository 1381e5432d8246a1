package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpdateAgentRequest_Apply(t *testing.T) {
	a := NewAgent("t1", "s1", Defaults{Provider: ProviderOpenAI, DebounceMs: 3500, MaxRepliesPerHour: 30, TakeoverCooldownMinutes: 30})
	assert.False(t, a.Active)

	provider, active, cooldown, prompt := "Gemini", true, 0, "  Eres un vendedor amable  "
	UpdateAgentRequest{Provider: &provider, Active: &active, TakeoverCooldownMinutes: &cooldown, SystemPrompt: &prompt}.Apply(a)

	assert.Equal(t, ProviderGemini, a.Provider)
	assert.True(t, a.Active)
	assert.Equal(t, "Eres un vendedor amable", a.SystemPrompt)
	assert.Equal(t, time.Duration(0), a.TakeoverCooldown())
	assert.Equal(t, 3500*time.Millisecond, a.DebounceWindow())
	assert.Equal(t, 30, a.MaxRepliesPerHour)
}

func TestCost(t *testing.T) {
	// 1M entrada + 1M salida con gpt-4o-mini
	assert.InDelta(t, 0.75, Cost(OpenAIModelPrices, DefaultOpenAIModel, "gpt-4o-mini", 1_000_000, 1_000_000, 0), 1e-9)
	// modelo desconocido usa el de respaldo
	assert.InDelta(t, 0.15, Cost(OpenAIModelPrices, DefaultOpenAIModel, "nuevo", 1_000_000, 0, 0), 1e-9)
	// tokens en caché a la mitad
	assert.InDelta(t, 0.075, Cost(OpenAIModelPrices, DefaultOpenAIModel, "gpt-4o-mini", 1_000_000, 0, 1_000_000), 1e-9)
}

func TestParseProvider(t *testing.T) {
	p, ok := ParseProvider(" OPENAI ")
	assert.True(t, ok)
	assert.Equal(t, ProviderOpenAI, p)
	_, ok = ParseProvider("claude")
	assert.False(t, ok)
}

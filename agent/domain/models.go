package domain

// ModelPricing define los costos por 1M tokens en USD.
type ModelPricing struct {
	InputPerMToken  float64 `json:"input_per_m_token"`
	OutputPerMToken float64 `json:"output_per_m_token"`
	CacheInputPerMT float64 `json:"cache_input_per_mt"`
}

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

var OpenAIModelPrices = map[string]ModelPricing{
	"gpt-4o":       {InputPerMToken: 2.50, OutputPerMToken: 10.00, CacheInputPerMT: 1.25},
	"gpt-4o-mini":  {InputPerMToken: 0.15, OutputPerMToken: 0.60, CacheInputPerMT: 0.075},
	"gpt-4.1":      {InputPerMToken: 2.00, OutputPerMToken: 8.00, CacheInputPerMT: 0.50},
	"gpt-4.1-mini": {InputPerMToken: 0.40, OutputPerMToken: 1.60, CacheInputPerMT: 0.10},
	"gpt-4.1-nano": {InputPerMToken: 0.10, OutputPerMToken: 0.40, CacheInputPerMT: 0.025},
}

var GeminiModelPrices = map[string]ModelPricing{
	"gemini-2.5-pro":        {InputPerMToken: 1.25, OutputPerMToken: 10.00, CacheInputPerMT: 0.125},
	"gemini-2.5-flash":      {InputPerMToken: 0.30, OutputPerMToken: 2.50, CacheInputPerMT: 0.03},
	"gemini-2.5-flash-lite": {InputPerMToken: 0.10, OutputPerMToken: 0.40, CacheInputPerMT: 0.01},
	"gemini-2.0-flash":      {InputPerMToken: 0.10, OutputPerMToken: 0.40, CacheInputPerMT: 0.025},
	"gemini-2.0-flash-lite": {InputPerMToken: 0.075, OutputPerMToken: 0.30},
}

// DefaultModel devuelve el modelo por defecto del proveedor.
func DefaultModel(p Provider) string {
	if p == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// Cost calcula el costo en USD; los tokens en caché se cobran con la tarifa de caché.
func Cost(prices map[string]ModelPricing, fallback, model string, input, output, cached int) float64 {
	pricing, ok := prices[model]
	if !ok {
		pricing = prices[fallback]
	}
	if cached > input {
		cached = input
	}
	cacheRate := pricing.CacheInputPerMT
	if cacheRate == 0 {
		cacheRate = pricing.InputPerMToken
	}
	return float64(input-cached)*pricing.InputPerMToken/1_000_000 +
		float64(cached)*cacheRate/1_000_000 +
		float64(output)*pricing.OutputPerMToken/1_000_000
}

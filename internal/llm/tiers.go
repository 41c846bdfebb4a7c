package llm

// Tier names a relative model strength within one provider.
type Tier string

const (
	// TierFast is the cheapest model, used for query rewrites.
	TierFast Tier = "fast"
	// TierStrong is the most capable model, used for quiz generation.
	TierStrong Tier = "strong"
)

var tierModels = map[string]map[Tier]string{
	"openai":     {TierFast: "gpt-4o-mini", TierStrong: "gpt-4.1"},
	"anthropic":  {TierFast: "claude-haiku", TierStrong: "claude-sonnet"},
	"gemini":     {TierFast: "gemini-flash", TierStrong: "gemini-pro"},
	"openrouter": {TierFast: "openai/gpt-4o-mini", TierStrong: "openai/gpt-4.1"},
}

// TierModel returns the model a provider uses for tier, or "" to keep the
// provider's configured model.
func TierModel(provider string, tier Tier) string {
	return tierModels[provider][tier]
}

package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest contains the parameters for an LLM completion request.
// Zero values fall back to the provider's Settings.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// Settings are the per-provider defaults applied to every request.
type Settings struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

func (s Settings) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return s.Model
}

func (s Settings) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return s.MaxTokens
}

func (s Settings) temperature(req CompletionRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return s.Temperature
}

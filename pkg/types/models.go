package types

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ChatCompletionStream represents a streaming response
type ChatCompletionStream interface {
	Next() (ChatCompletionChunk, error)
	Close() error
}

// ChatCompletionChunk represents a chunk of a streaming response
type ChatCompletionChunk struct {
	ID       string                 `json:"id"`
	Object   string                 `json:"object"`
	Created  int64                  `json:"created"`
	Model    string                 `json:"model"`
	Choices  []ChatChoice           `json:"choices"`
	Usage    Usage                  `json:"usage"`
	Done     bool                   `json:"done"`
	Content  string                 `json:"content"`
	Error    string                 `json:"error"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ChatChoice represents a choice in a chat completion
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
	Delta        ChatMessage `json:"delta"`
}

// DeltaContent returns the text carried by a streamed chunk: the first choice's
// delta when present, otherwise the chunk-level content field.
func (c ChatCompletionChunk) DeltaContent() string {
	if len(c.Choices) > 0 && c.Choices[0].Delta.Content != "" {
		return c.Choices[0].Delta.Content
	}
	return c.Content
}

package core

import "encoding/json"

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the recognized roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction, RoleTool:
		return true
	}
	return false
}

// Message represents a single message in the chat.
// Content is a pointer so an absent value can be told apart from an empty string.
type Message struct {
	Role         Role          `json:"role"`
	Content      *string       `json:"content,omitempty"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID   string        `json:"tool_call_id,omitempty"`
}

// FunctionCall is a function invocation produced by the model.
// Arguments holds string-encoded JSON.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall represents a tool invocation inside an assistant message
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionDefinition describes a function the model may call
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool wraps a function definition. Type is "function" for every tool the router supports today.
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// ToolTypeFunction is the only tool type with a defined shape
const ToolTypeFunction = "function"

// ResponseFormat constrains the shape of the model output
type ResponseFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

// ChatRequest represents a chat completion request.
// Pointer and omitempty fields are left off the wire when unset.
type ChatRequest struct {
	Messages         []Message            `json:"messages"`
	Model            string               `json:"model,omitempty"`
	MaxTokens        *int                 `json:"max_tokens,omitempty"`
	Temperature      *float64             `json:"temperature,omitempty"`
	TopP             *float64             `json:"top_p,omitempty"`
	FrequencyPenalty *float64             `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64             `json:"presence_penalty,omitempty"`
	Stop             StopSequences        `json:"stop,omitempty"`
	Functions        []FunctionDefinition `json:"functions,omitempty"`
	// FunctionCall is either a mode string ("auto", "none") or {"name": "..."}.
	FunctionCall   any             `json:"function_call,omitempty"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     any             `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	User           string          `json:"user,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
}

// StopSequences holds the stop field. The wire form is a single string or
// an array of strings; it is always sent as an array.
type StopSequences []string

// UnmarshalJSON accepts a string or an array of strings
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StopSequences{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ChatCompletionResponse represents the chat completion response
type ChatCompletionResponse struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []Choice      `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
	Meta    *ResponseMeta `json:"_meta,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseMeta is the routing metadata computed by the router.
// It is passed through without validation; Raw keeps fields not modelled here.
type ResponseMeta struct {
	ModelUsed    string   `json:"modelUsed,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`
	Latency      *float64 `json:"latency,omitempty"`
	RequestID    string   `json:"requestId,omitempty"`
	FallbackUsed *bool    `json:"fallbackUsed,omitempty"`
	RouterMode   string   `json:"routerMode,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type responseMetaAlias ResponseMeta

// UnmarshalJSON decodes the known fields and keeps the original bytes
func (m *ResponseMeta) UnmarshalJSON(data []byte) error {
	var alias responseMetaAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = ResponseMeta(alias)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original bytes when available so unknown fields survive
func (m ResponseMeta) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(responseMetaAlias(m))
}

// ChatCompletionChunk is one incremental unit of a streamed completion
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is a choice inside a chunk. FinishReason is nil until the terminal chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is a partial message
type Delta struct {
	Role         Role          `json:"role,omitempty"`
	Content      *string       `json:"content,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
}

// ObjectChatCompletionChunk is the object tag of every streamed chunk
const ObjectChatCompletionChunk = "chat.completion.chunk"

// FinishReasonStop marks the terminal chunk of a stream
const FinishReasonStop = "stop"

// Model represents a single model in the models list
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// ModelsResponse represents the response from the getModels endpoint
type ModelsResponse struct {
	Object string  `json:"object,omitempty"`
	Data   []Model `json:"data"`
}

// RouterConfig is the configuration the router reports for a router identifier.
// Raw holds the full document as returned by the router.
type RouterConfig struct {
	RouterID string   `json:"routerId,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Models   []string `json:"models,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type routerConfigAlias RouterConfig

// UnmarshalJSON decodes the known fields and keeps the original bytes
func (c *RouterConfig) UnmarshalJSON(data []byte) error {
	var alias routerConfigAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = RouterConfig(alias)
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// String returns a pointer to s, for optional string fields
func String(s string) *string { return &s }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// Float64 returns a pointer to v
func Float64(v float64) *float64 { return &v }

// UserMessage builds a user message with text content
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// SystemMessage builds a system message with text content
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

// AssistantMessage builds an assistant message with text content
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: &content}
}

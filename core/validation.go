package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateChatRequest checks the shape and ranges of a chat request.
// Messages are checked before any other field, so the first reported
// violation is always a message problem when there is one.
func ValidateChatRequest(req *ChatRequest) error {
	if req == nil {
		return NewInvalidRequestError("messages", "messages is required")
	}
	if err := ValidateMessages(req.Messages); err != nil {
		return err
	}
	if req.Functions != nil {
		for i := range req.Functions {
			if err := ValidateFunctionDefinition(&req.Functions[i], fmt.Sprintf("functions[%d]", i)); err != nil {
				return err
			}
		}
	}
	if req.Tools != nil {
		for i := range req.Tools {
			if err := ValidateTool(&req.Tools[i], i); err != nil {
				return err
			}
		}
	}
	return ValidateSampling(req.MaxTokens, req.Temperature, req.TopP)
}

// ValidateMessages requires a non-empty message list where every entry has a
// recognized role and content, unless it carries a function or tool call.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return NewInvalidRequestError("messages", "messages must be a non-empty array")
	}
	for i, msg := range messages {
		if msg.Role == "" {
			return NewInvalidRequestError("role", fmt.Sprintf("messages[%d].role is required", i))
		}
		if !msg.Role.Valid() {
			return NewInvalidRequestError("role", fmt.Sprintf("messages[%d].role %q is not one of system, user, assistant, function, tool", i, msg.Role))
		}
		if msg.Content == nil && msg.FunctionCall == nil && len(msg.ToolCalls) == 0 {
			return NewInvalidRequestError("content", fmt.Sprintf("messages[%d].content is required", i))
		}
	}
	return nil
}

// ValidateFunctionDefinition requires a non-empty name. where is used in the error message.
func ValidateFunctionDefinition(fn *FunctionDefinition, where string) error {
	if fn == nil {
		return NewInvalidRequestError("function", where+" is required")
	}
	if strings.TrimSpace(fn.Name) == "" {
		return NewInvalidRequestError("name", where+".name must be a non-empty string")
	}
	return nil
}

// ValidateTool requires a type, and a valid function definition for function tools.
func ValidateTool(tool *Tool, index int) error {
	if tool.Type == "" {
		return NewInvalidRequestError("type", fmt.Sprintf("tools[%d].type is required", index))
	}
	if tool.Type == ToolTypeFunction {
		if tool.Function == nil {
			return NewInvalidRequestError("function", fmt.Sprintf("tools[%d].function is required when type is %q", index, ToolTypeFunction))
		}
		return ValidateFunctionDefinition(tool.Function, fmt.Sprintf("tools[%d].function", index))
	}
	return nil
}

// ValidateSampling checks max_tokens > 0, temperature in [0,2] and top_p in (0,1].
func ValidateSampling(maxTokens *int, temperature, topP *float64) error {
	if maxTokens != nil && *maxTokens <= 0 {
		return NewInvalidRequestError("max_tokens", "max_tokens must be a positive number")
	}
	if temperature != nil {
		t := *temperature
		if math.IsNaN(t) || t < 0 || t > 2 {
			return NewInvalidRequestError("temperature", "temperature must be between 0 and 2")
		}
	}
	if topP != nil {
		p := *topP
		if math.IsNaN(p) || p <= 0 || p > 1 {
			return NewInvalidRequestError("top_p", "top_p must be greater than 0 and at most 1")
		}
	}
	return nil
}

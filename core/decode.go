package core

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// DecodeChatRequest parses a raw JSON chat request and validates it.
// Shape violations that the typed struct cannot represent (a non-array
// messages field, a non-string description, ...) are reported as
// invalid_request_error with the parameter name instead of a decode error.
func DecodeChatRequest(data []byte) (*ChatRequest, error) {
	if !gjson.ValidBytes(data) {
		return nil, NewInvalidRequestError("", "request body is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, NewInvalidRequestError("", "request body must be a JSON object")
	}
	if err := checkShape(root); err != nil {
		return nil, err
	}

	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RouterError{
			Type:    ErrorTypeInvalidRequest,
			Message: "failed to decode request: " + err.Error(),
			Err:     err,
		}
	}
	if err := ValidateChatRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func checkShape(root gjson.Result) error {
	messages := root.Get("messages")
	if !messages.Exists() {
		return NewInvalidRequestError("messages", "messages is required")
	}
	if !messages.IsArray() {
		return NewInvalidRequestError("messages", "messages must be an array")
	}
	for i, msg := range messages.Array() {
		if !msg.IsObject() {
			return NewInvalidRequestError("messages", fmt.Sprintf("messages[%d] must be an object", i))
		}
		if role := msg.Get("role"); role.Exists() && role.Type != gjson.String {
			return NewInvalidRequestError("role", fmt.Sprintf("messages[%d].role must be a string", i))
		}
		if content := msg.Get("content"); content.Exists() && content.Type != gjson.String && content.Type != gjson.Null {
			return NewInvalidRequestError("content", fmt.Sprintf("messages[%d].content must be a string", i))
		}
	}

	if functions := root.Get("functions"); functions.Exists() {
		if !functions.IsArray() {
			return NewInvalidRequestError("functions", "functions must be an array")
		}
		for i, fn := range functions.Array() {
			if err := checkFunctionShape(fn, fmt.Sprintf("functions[%d]", i)); err != nil {
				return err
			}
		}
	}

	if tools := root.Get("tools"); tools.Exists() {
		if !tools.IsArray() {
			return NewInvalidRequestError("tools", "tools must be an array")
		}
		for i, tool := range tools.Array() {
			if !tool.IsObject() {
				return NewInvalidRequestError("tools", fmt.Sprintf("tools[%d] must be an object", i))
			}
			typ := tool.Get("type")
			if !typ.Exists() {
				return NewInvalidRequestError("type", fmt.Sprintf("tools[%d].type is required", i))
			}
			if typ.Type != gjson.String {
				return NewInvalidRequestError("type", fmt.Sprintf("tools[%d].type must be a string", i))
			}
			if fn := tool.Get("function"); fn.Exists() {
				if err := checkFunctionShape(fn, fmt.Sprintf("tools[%d].function", i)); err != nil {
					return err
				}
			}
		}
	}

	for _, param := range []string{"max_tokens", "temperature", "top_p"} {
		if v := root.Get(param); v.Exists() && v.Type != gjson.Number {
			return NewInvalidRequestError(param, param+" must be a number")
		}
	}
	return nil
}

func checkFunctionShape(fn gjson.Result, where string) error {
	if !fn.IsObject() {
		return NewInvalidRequestError("function", where+" must be an object")
	}
	if name := fn.Get("name"); name.Exists() && name.Type != gjson.String {
		return NewInvalidRequestError("name", where+".name must be a non-empty string")
	}
	if desc := fn.Get("description"); desc.Exists() && desc.Type != gjson.String {
		return NewInvalidRequestError("description", where+".description must be a string")
	}
	if params := fn.Get("parameters"); params.Exists() && !params.IsObject() {
		return NewInvalidRequestError("parameters", where+".parameters must be an object")
	}
	return nil
}

package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_OmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(ChatRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[{"role":"user","content":"hi"}]}`, string(data))
}

func TestChatCompletionResponse_MetaPassthrough(t *testing.T) {
	body := `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		"_meta": {"modelUsed": "gpt-4o-mini", "cost": 0.0001, "latency": 120, "requestId": "req-1", "fallbackUsed": false, "routerMode": "cost", "region": "eu"}
	}`

	var resp ChatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "gpt-4o-mini", resp.Meta.ModelUsed)
	assert.Equal(t, "cost", resp.Meta.RouterMode)
	require.NotNil(t, resp.Meta.FallbackUsed)
	assert.False(t, *resp.Meta.FallbackUsed)

	out, err := json.Marshal(resp.Meta)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"region":"eu"`)
}

func TestChunk_TerminalShape(t *testing.T) {
	stop := FinishReasonStop
	chunk := ChatCompletionChunk{
		ID:      "chatcmpl-1",
		Object:  ObjectChatCompletionChunk,
		Choices: []ChunkChoice{{Index: 0, Delta: Delta{}, FinishReason: &stop}},
	}

	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"delta":{}`)
	assert.Contains(t, string(data), `"finish_reason":"stop"`)
}

func TestRouterConfig_KeepsRaw(t *testing.T) {
	var cfg RouterConfig
	require.NoError(t, json.Unmarshal([]byte(`{"routerId":"default","mode":"balanced","models":["a","b"],"weights":{"a":1}}`), &cfg))
	assert.Equal(t, "default", cfg.RouterID)
	assert.Equal(t, []string{"a", "b"}, cfg.Models)
	assert.Contains(t, string(cfg.Raw), "weights")
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleFunction, RoleTool} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("robot").Valid())
	assert.False(t, Role("").Valid())
}

func TestStopSequences_AcceptsStringOrArray(t *testing.T) {
	tests := []struct {
		name string
		body string
		want StopSequences
	}{
		{"single string", `{"stop":"\n"}`, StopSequences{"\n"}},
		{"array", `{"stop":["END","STOP"]}`, StopSequences{"END", "STOP"}},
		{"null", `{"stop":null}`, nil},
		{"absent", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ChatRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.Stop)
		})
	}

	var req ChatRequest
	assert.Error(t, json.Unmarshal([]byte(`{"stop":42}`), &req))
}

package routerclient

import (
	"context"
	"net/http"
	"net/url"

	"routerclient/core"
	"routerclient/llmclient"
	"routerclient/streaming"
)

const operationChat = "chat"

// ChatService creates chat completions through the router
type ChatService struct {
	client *Client
}

// chatPayload is the wire body: the request fields plus the router id
type chatPayload struct {
	*core.ChatRequest
	RouterID string `json:"routerId"`
}

// Create sends a non-streaming chat completion request. The response is
// returned as the router sent it, including its _meta block.
// Requests with Stream set must use CreateStream.
func (s *ChatService) Create(ctx context.Context, req *core.ChatRequest) (*core.ChatCompletionResponse, error) {
	if err := core.ValidateChatRequest(req); err != nil {
		return nil, err
	}
	if req.Stream {
		return nil, core.NewInvalidRequestError("stream", "stream is set; use CreateStream for streaming requests")
	}

	var resp core.ChatCompletionResponse
	err := s.client.transport.Do(ctx, llmclient.Request{
		Operation: operationChat,
		Method:    http.MethodPost,
		Endpoint:  s.endpoint(),
		Body:      s.payload(req),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateStream sends a streaming chat completion request. The caller must
// drain or Close the returned Stream to release the connection.
func (s *ChatService) CreateStream(ctx context.Context, req *core.ChatRequest) (*streaming.Stream, error) {
	if err := core.ValidateChatRequest(req); err != nil {
		return nil, err
	}

	streamReq := *req
	streamReq.Stream = true

	body, err := s.client.transport.DoStream(ctx, llmclient.Request{
		Operation: operationChat,
		Method:    http.MethodPost,
		Endpoint:  s.endpoint(),
		Body:      s.payload(&streamReq),
	})
	if err != nil {
		return nil, err
	}

	opts := []streaming.Option{streaming.WithLogger(s.client.logger)}
	if s.client.metrics != nil {
		opts = append(opts, streaming.OnSkip(s.client.metrics.StreamSkipped))
	}
	return streaming.NewDecoder(body, opts...), nil
}

func (s *ChatService) endpoint() string {
	return "/router/" + url.PathEscape(s.client.routerID)
}

func (s *ChatService) payload(req *core.ChatRequest) chatPayload {
	return chatPayload{ChatRequest: req, RouterID: s.client.routerID}
}

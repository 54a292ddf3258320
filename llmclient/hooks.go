package llmclient

import (
	"context"
	"time"
)

// RequestInfo describes one attempt of a router request
type RequestInfo struct {
	// Operation is a low-cardinality name for the call, e.g. "chat" or "models".
	Operation string
	Method    string
	Endpoint  string
	Stream    bool
	// Attempt starts at 1 for the first try.
	Attempt   int
	RequestID string
}

// ResponseInfo describes the outcome of one attempt
type ResponseInfo struct {
	RequestInfo
	// StatusCode is 0 when no response was received.
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks are optional observers of the request lifecycle. Any field may be nil.
type Hooks struct {
	// OnRequestStart runs before each attempt. The returned context is used for the attempt.
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	// OnRequestEnd runs after each attempt.
	OnRequestEnd func(ctx context.Context, info ResponseInfo)
	// OnRetry runs before the backoff sleep preceding a retry.
	OnRetry func(ctx context.Context, info RequestInfo, backoff time.Duration, cause error)
}

func (h Hooks) requestStart(ctx context.Context, info RequestInfo) context.Context {
	if h.OnRequestStart == nil {
		return ctx
	}
	if next := h.OnRequestStart(ctx, info); next != nil {
		return next
	}
	return ctx
}

func (h Hooks) requestEnd(ctx context.Context, info ResponseInfo) {
	if h.OnRequestEnd != nil {
		h.OnRequestEnd(ctx, info)
	}
}

func (h Hooks) retry(ctx context.Context, info RequestInfo, backoff time.Duration, cause error) {
	if h.OnRetry != nil {
		h.OnRetry(ctx, info, backoff, cause)
	}
}

// ChainHooks combines hooks so each callback runs in argument order.
// Contexts returned by OnRequestStart are threaded through the chain.
func ChainHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnRequestStart: func(ctx context.Context, info RequestInfo) context.Context {
			for _, h := range hooks {
				ctx = h.requestStart(ctx, info)
			}
			return ctx
		},
		OnRequestEnd: func(ctx context.Context, info ResponseInfo) {
			for _, h := range hooks {
				h.requestEnd(ctx, info)
			}
		},
		OnRetry: func(ctx context.Context, info RequestInfo, backoff time.Duration, cause error) {
			for _, h := range hooks {
				h.retry(ctx, info, backoff, cause)
			}
		},
	}
}

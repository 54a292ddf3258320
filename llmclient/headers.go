package llmclient

import "net/http"

// Content types negotiated with the router
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// HeaderOptions are the inputs to BuildHeaders
type HeaderOptions struct {
	APIKey    string
	RequestID string
	UserAgent string
	HasBody   bool
	Stream    bool
	// AcceptBrotli advertises brotli for buffered responses.
	AcceptBrotli bool
}

// BuildHeaders returns the headers for one router request.
// It is called once per attempt and has no side effects.
func BuildHeaders(opts HeaderOptions) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+opts.APIKey)
	if opts.HasBody {
		h.Set("Content-Type", ContentTypeJSON)
	}
	if opts.Stream {
		h.Set("Accept", ContentTypeEventStream)
		h.Set("Cache-Control", "no-cache")
	} else {
		h.Set("Accept", ContentTypeJSON)
		if opts.AcceptBrotli {
			h.Set("Accept-Encoding", "br")
		}
	}
	if opts.UserAgent != "" {
		h.Set("User-Agent", opts.UserAgent)
	}
	if opts.RequestID != "" {
		h.Set("X-Request-ID", opts.RequestID)
	}
	return h
}

// Package streaming decodes the router's server-sent event stream into chat completion chunks.
package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"routerclient/core"
)

const (
	readBufferSize = 4096
	dataPrefix     = "data: "
	doneSentinel   = "[DONE]"

	// maxLoggedPayload bounds how much of a malformed line is logged
	maxLoggedPayload = 200
)

// ErrMalformedChunk is passed to the skip callback for lines that are not valid JSON
var ErrMalformedChunk = errors.New("malformed stream chunk")

// Option configures a Stream
type Option func(*Stream)

// WithLogger sets the logger used for skipped lines. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OnSkip registers a callback invoked for every malformed line that is dropped
func OnSkip(fn func(payload string, err error)) Option {
	return func(s *Stream) {
		s.onSkip = fn
	}
}

// Stream is a lazy, single-use sequence of chunks read from an event stream.
// It is not safe for concurrent use.
type Stream struct {
	body   io.ReadCloser
	logger *slog.Logger
	onSkip func(payload string, err error)

	readBuf []byte
	buf     []byte // bytes after the last newline seen
	pending []*core.ChatCompletionChunk
	current *core.ChatCompletionChunk

	id    string
	model string

	skipped  int
	eof      bool
	finished bool
	closed   bool
	released bool // body closed
	err      error
}

// NewDecoder wraps body. The returned Stream owns body and closes it once
// the stream is exhausted, fails, or Close is called.
func NewDecoder(body io.ReadCloser, opts ...Option) *Stream {
	s := &Stream{
		body:    body,
		logger:  slog.Default(),
		readBuf: make([]byte, readBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next advances to the next chunk. It returns false when the stream is
// exhausted, closed, or failed; check Err to tell these apart.
func (s *Stream) Next() bool {
	for {
		if len(s.pending) > 0 {
			s.current = s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			return true
		}
		s.current = nil
		if s.closed || s.err != nil {
			return false
		}
		if s.eof {
			if !s.finished {
				s.finished = true
				s.processLine(s.buf)
				s.buf = nil
				s.pending = append(s.pending, s.terminalChunk())
				continue
			}
			_ = s.Close()
			return false
		}
		s.fill()
	}
}

// Current returns the chunk produced by the last successful call to Next
func (s *Stream) Current() *core.ChatCompletionChunk {
	return s.current
}

// Err returns the error that stopped the stream, if any.
// Read failures are reported as transport errors.
func (s *Stream) Err() error {
	return s.err
}

// Skipped returns the number of malformed lines dropped so far
func (s *Stream) Skipped() int {
	return s.skipped
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	return s.release()
}

func (s *Stream) release() error {
	if s.released {
		return nil
	}
	s.released = true
	return s.body.Close()
}

// Collect drains the stream and returns every chunk, including the terminal one
func (s *Stream) Collect() ([]*core.ChatCompletionChunk, error) {
	defer func() {
		_ = s.Close()
	}()

	var chunks []*core.ChatCompletionChunk
	for s.Next() {
		chunks = append(chunks, s.Current())
	}
	return chunks, s.Err()
}

// Text drains the stream and concatenates every delta content fragment
func (s *Stream) Text() (string, error) {
	defer func() {
		_ = s.Close()
	}()

	var sb strings.Builder
	for s.Next() {
		if c := s.Current(); len(c.Choices) > 0 && c.Choices[0].Delta.Content != nil {
			sb.WriteString(*c.Choices[0].Delta.Content)
		}
	}
	return sb.String(), s.Err()
}

// fill reads one buffer from the body and queues chunks for every complete line
func (s *Stream) fill() {
	n, err := s.body.Read(s.readBuf)
	if n > 0 {
		s.buf = append(s.buf, s.readBuf[:n]...)
		for {
			i := bytes.IndexByte(s.buf, '\n')
			if i < 0 {
				break
			}
			s.processLine(s.buf[:i])
			s.buf = s.buf[i+1:]
		}
		// Keep the residual fragment in its own storage so the backing array does not grow unbounded.
		s.buf = append([]byte(nil), s.buf...)
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.eof = true
	default:
		s.fail(err)
	}
}

// fail records err and releases the body. Chunks already queued are still delivered.
func (s *Stream) fail(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.err = core.NewCanceledError(err)
	} else {
		s.err = core.NewTransportError("failed to read stream: "+err.Error(), err)
	}
	_ = s.release()
}

// processLine turns one event line into at most one chunk
func (s *Stream) processLine(line []byte) {
	text := strings.TrimSuffix(string(line), "\r")
	payload := strings.TrimSpace(strings.TrimPrefix(text, dataPrefix))
	if payload == "" || payload == doneSentinel {
		return
	}

	if !gjson.Valid(payload) {
		s.skipped++
		s.logger.Warn("skipping malformed stream chunk",
			"data", truncate(payload, maxLoggedPayload),
		)
		if s.onSkip != nil {
			s.onSkip(payload, ErrMalformedChunk)
		}
		return
	}

	parsed := gjson.Parse(payload)
	if id := parsed.Get("id"); id.Type == gjson.String && id.String() != "" {
		s.id = id.String()
	}
	if model := parsed.Get("model"); model.Type == gjson.String && model.String() != "" {
		s.model = model.String()
	}

	content := parsed.Get("choices.0.delta.content")
	if content.Type != gjson.String {
		content = parsed.Get("choices.0.message.content")
	}
	if content.Type != gjson.String || content.String() == "" {
		return
	}

	s.pending = append(s.pending, s.newChunk(core.Delta{Content: core.String(content.String())}, nil))
}

func (s *Stream) terminalChunk() *core.ChatCompletionChunk {
	reason := core.FinishReasonStop
	return s.newChunk(core.Delta{}, &reason)
}

func (s *Stream) newChunk(delta core.Delta, finishReason *string) *core.ChatCompletionChunk {
	if s.id == "" {
		s.id = "chatcmpl-" + uuid.NewString()
	}
	return &core.ChatCompletionChunk{
		ID:      s.id,
		Object:  core.ObjectChatCompletionChunk,
		Created: time.Now().Unix(),
		Model:   s.model,
		Choices: []core.ChunkChoice{
			{
				Index:        0,
				Delta:        delta,
				FinishReason: finishReason,
			},
		},
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

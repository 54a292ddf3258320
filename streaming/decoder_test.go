package streaming

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routerclient/core"
)

// pieceReader returns one piece per Read call, then err (io.EOF by default)
type pieceReader struct {
	pieces []string
	err    error
	closed bool
	reads  int
}

func newPieceReader(pieces ...string) *pieceReader {
	return &pieceReader{pieces: pieces}
}

func (r *pieceReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read after close")
	}
	r.reads++
	if len(r.pieces) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.pieces[0])
	if n < len(r.pieces[0]) {
		r.pieces[0] = r.pieces[0][n:]
	} else {
		r.pieces = r.pieces[1:]
	}
	return n, nil
}

func (r *pieceReader) Close() error {
	r.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const helloWorld = "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
	"data: [DONE]\n\n"

func TestStream_HelloWorld(t *testing.T) {
	body := newPieceReader(
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n",
		"data: [DONE]\n\n",
	)
	chunks, err := NewDecoder(body).Collect()
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Hello", *chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, " world", *chunks[1].Choices[0].Delta.Content)
	for _, c := range chunks[:2] {
		assert.Equal(t, core.ObjectChatCompletionChunk, c.Object)
		assert.Equal(t, 0, c.Choices[0].Index)
		assert.Nil(t, c.Choices[0].FinishReason)
		assert.NotZero(t, c.Created)
	}

	last := chunks[2]
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
	assert.Equal(t, core.Delta{}, last.Choices[0].Delta)
	assert.True(t, body.closed, "body should be closed after draining")
}

func TestStream_Text(t *testing.T) {
	text, err := NewDecoder(newPieceReader(helloWorld)).Text()
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestStream_ArbitrarySplitBoundaries(t *testing.T) {
	for size := 1; size <= len(helloWorld); size++ {
		var pieces []string
		for i := 0; i < len(helloWorld); i += size {
			end := min(i+size, len(helloWorld))
			pieces = append(pieces, helloWorld[i:end])
		}

		chunks, err := NewDecoder(newPieceReader(pieces...)).Collect()
		require.NoError(t, err, "piece size %d", size)
		require.Len(t, chunks, 3, "piece size %d", size)

		var sb strings.Builder
		for _, c := range chunks {
			if c.Choices[0].Delta.Content != nil {
				sb.WriteString(*c.Choices[0].Delta.Content)
			}
		}
		assert.Equal(t, "Hello world", sb.String(), "piece size %d", size)
		assert.Equal(t, "stop", *chunks[2].Choices[0].FinishReason, "piece size %d", size)
	}
}

func TestStream_MultiByteSplit(t *testing.T) {
	payload := "data: {\"choices\":[{\"delta\":{\"content\":\"héllo ✓\"}}]}\n"
	idx := strings.Index(payload, "✓") + 1 // split inside the rune

	text, err := NewDecoder(newPieceReader(payload[:idx], payload[idx:])).Text()
	require.NoError(t, err)
	assert.Equal(t, "héllo ✓", text)
}

func TestStream_MalformedLineIsSkipped(t *testing.T) {
	var skippedPayloads []string
	body := newPieceReader(
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n",
		"data: {not json\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n",
	)
	stream := NewDecoder(body,
		WithLogger(quietLogger()),
		OnSkip(func(payload string, err error) {
			assert.ErrorIs(t, err, ErrMalformedChunk)
			skippedPayloads = append(skippedPayloads, payload)
		}),
	)

	text, err := stream.Text()
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
	assert.Equal(t, 1, stream.Skipped())
	assert.Equal(t, []string{"{not json"}, skippedPayloads)
}

func TestStream_MessageContentFallback(t *testing.T) {
	body := newPieceReader(
		"data: {\"choices\":[{\"message\":{\"content\":\"full\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n",
		"data: {\"usage\":{\"total_tokens\":3}}\n",
	)
	chunks, err := NewDecoder(body).Collect()
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "full", *chunks[0].Choices[0].Delta.Content)
}

func TestStream_ResidualBufferAtEOF(t *testing.T) {
	body := newPieceReader("data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}")
	chunks, err := NewDecoder(body).Collect()
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "tail", *chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "stop", *chunks[1].Choices[0].FinishReason)
}

func TestStream_LinesWithoutPrefixAndCRLF(t *testing.T) {
	body := newPieceReader("{\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\r\n\r\ndata: [DONE]\r\n")
	text, err := NewDecoder(body).Text()
	require.NoError(t, err)
	assert.Equal(t, "x", text)
}

func TestStream_EmptyBodyYieldsTerminalChunk(t *testing.T) {
	chunks, err := NewDecoder(newPieceReader()).Collect()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "stop", *chunks[0].Choices[0].FinishReason)
	assert.True(t, strings.HasPrefix(chunks[0].ID, "chatcmpl-"))
}

func TestStream_UsesUpstreamIDAndModel(t *testing.T) {
	body := newPieceReader("data: {\"id\":\"chatcmpl-42\",\"model\":\"gpt-4o\",\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n")
	chunks, err := NewDecoder(body).Collect()
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, "chatcmpl-42", c.ID)
		assert.Equal(t, "gpt-4o", c.Model)
	}
}

func TestStream_ReadErrorSurfacesAsTransportError(t *testing.T) {
	body := newPieceReader("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n")
	body.err = errors.New("connection reset by peer")

	stream := NewDecoder(body)
	require.True(t, stream.Next())
	assert.Equal(t, "partial", *stream.Current().Choices[0].Delta.Content)

	assert.False(t, stream.Next())
	require.Error(t, stream.Err())
	assert.True(t, core.IsType(stream.Err(), core.ErrorTypeTransport))
	assert.True(t, body.closed)
}

// lastReadFailsReader returns its data and err from the same Read call
type lastReadFailsReader struct {
	data   string
	err    error
	closed bool
}

func (r *lastReadFailsReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read after close")
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if r.data == "" {
		return n, r.err
	}
	return n, nil
}

func (r *lastReadFailsReader) Close() error {
	r.closed = true
	return nil
}

func TestStream_DataReturnedWithReadErrorIsDelivered(t *testing.T) {
	body := &lastReadFailsReader{
		data: "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\" again\"}}]}\n",
		err: errors.New("connection reset"),
	}

	chunks, err := NewDecoder(body, WithLogger(quietLogger())).Collect()
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrorTypeTransport))
	assert.True(t, body.closed)

	require.Len(t, chunks, 2, "chunks read before the failure are kept and no terminal chunk follows")
	assert.Equal(t, "Hello", *chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, " again", *chunks[1].Choices[0].Delta.Content)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii", "abcdef", 3, "abc..."},
		{"backs off to rune start", "aé", 2, "a..."},
		{"multi-byte boundary", "éé", 2, "é..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestStream_CloseEarlyReleasesBody(t *testing.T) {
	body := newPieceReader(helloWorld)
	stream := NewDecoder(body)

	require.True(t, stream.Next())
	require.NoError(t, stream.Close())
	assert.True(t, body.closed)

	assert.False(t, stream.Next())
	assert.NoError(t, stream.Err())
	assert.Nil(t, stream.Current())
	assert.NoError(t, stream.Close(), "second close is a no-op")
}

func TestStream_NotRestartable(t *testing.T) {
	stream := NewDecoder(newPieceReader(helloWorld))
	_, err := stream.Collect()
	require.NoError(t, err)

	chunks, err := stream.Collect()
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStream_LargeLine(t *testing.T) {
	content := strings.Repeat("z", 3*readBufferSize)
	var buf bytes.Buffer
	buf.WriteString("data: {\"choices\":[{\"delta\":{\"content\":\"")
	buf.WriteString(content)
	buf.WriteString("\"}}]}\n")

	text, err := NewDecoder(io.NopCloser(&buf)).Text()
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the SSE writer

package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter_WriteData(t *testing.T) {
	w := httptest.NewRecorder()
	SetSSEHeaders(w)

	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteData(datatypes.StreamDelta{
		Message: datatypes.Message{Role: "assistant", Content: "Hello"},
	})
	require.NoError(t, err)

	body := w.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, `"content":"Hello"`)
	assert.True(t, len(body) > 0 && body[len(body)-2:] == "\n\n")
	assert.Equal(t, 1, writer.Count())
}

func TestSSEWriter_WriteDone(t *testing.T) {
	w := httptest.NewRecorder()
	SetSSEHeaders(w)

	writer, err := NewSSEWriter(w)
	require.NoError(t, err)
	require.NoError(t, writer.WriteDone())

	assert.Equal(t, "data: [DONE]\n\n", w.Body.String())
	// The terminator is not a data frame.
	assert.Equal(t, 0, writer.Count())
}

func TestSSEWriter_Headers(t *testing.T) {
	w := httptest.NewRecorder()
	SetSSEHeaders(w)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
}

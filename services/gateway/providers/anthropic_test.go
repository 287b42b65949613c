// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the Anthropic adapter

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReqFixture(model string) datatypes.ChatRequest {
	return datatypes.ChatRequest{
		Model: model,
		Messages: []datatypes.Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "Say hi."},
		},
	}
}

// =============================================================================
// Chat Tests
// =============================================================================

func TestAnthropicAdapter_Chat_NormalizesResponse(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := anthropicResponse{
			Role: "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: "Hello"},
				{Type: "text", Text: " there"},
			},
			Usage: anthropicUsage{InputTokens: 12, OutputTokens: 4},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(srv.URL, "test-key")
	resp, err := a.Chat(context.Background(), chatReqFixture("claude-3-5-sonnet"))
	require.NoError(t, err)

	// System messages are lifted out of the message list.
	assert.Equal(t, "You are terse.", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)

	assert.Equal(t, "assistant", resp.Message.Role)
	assert.Equal(t, "Hello there", resp.Message.Content)
	assert.Equal(t, 12, resp.PromptEvalCount)
	assert.Equal(t, 4, resp.EvalCount)
}

func TestAnthropicAdapter_Chat_UpstreamErrorIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(srv.URL, "test-key")
	_, err := a.Chat(context.Background(), chatReqFixture("claude-3-5-sonnet"))
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusTooManyRequests, upErr.Status)
	assert.LessOrEqual(t, len(upErr.Excerpt), excerptLimit)
}

// =============================================================================
// Stream Tests
// =============================================================================

func TestAnthropicAdapter_ChatStream_ForwardsTextDeltasOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			"event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			"event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n\n",
			"event: ping\ndata: {\"type\":\"ping\"}\n\n",
			"event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\" world\"}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		}
		for _, f := range frames {
			_, _ = w.Write([]byte(f))
		}
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(srv.URL, "test-key")
	var deltas []string
	err := a.ChatStream(context.Background(), chatReqFixture("claude-3-5-sonnet"), func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " world"}, deltas)
}

func TestAnthropicAdapter_ChatStream_CallbackAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			_, _ = w.Write([]byte("event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"x\"}}\n\n"))
		}
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(srv.URL, "test-key")
	calls := 0
	err := a.ChatStream(context.Background(), chatReqFixture("claude-3-5-sonnet"), func(string) error {
		calls++
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestAnthropicAdapter_ChatStream_ErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("event: error\ndata: {\"error\":{\"type\":\"overloaded_error\",\"message\":\"overloaded\"}}\n\n"))
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(srv.URL, "test-key")
	err := a.ChatStream(context.Background(), chatReqFixture("claude-3-5-sonnet"), func(string) error { return nil })

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Contains(t, upErr.Excerpt, "overloaded")
}

// =============================================================================
// Generate Tests
// =============================================================================

func TestAnthropicAdapter_Generate_WrapsChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "done"}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewAnthropicAdapter(srv.URL, "test-key")
	resp, err := a.Generate(context.Background(), datatypes.GenerateRequest{Model: "claude-3-haiku", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Response)
	assert.True(t, resp.Done)
}

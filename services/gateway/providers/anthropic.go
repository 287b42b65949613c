// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
)

const (
	anthropicAPIVersion    = "2023-06-01"
	anthropicDefaultBase   = "https://api.anthropic.com"
	anthropicMaxTokens     = 4096
	anthropicHTTPTimeout   = 2 * time.Minute
	anthropicStreamTimeout = 5 * time.Minute
)

// --- Wire types ---

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
	Error   *anthropicAPIError `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicContentBlockDelta struct {
	Index int `json:"index"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta"`
}

// AnthropicAdapter talks to the Anthropic Messages API.
//
// Request shaping: any message with role "system" is lifted into the
// top-level system field; the x-api-key and anthropic-version headers carry
// the credential. Responses are normalized from content[type=text] blocks
// and usage.{input,output}_tokens. Stream handling forwards only
// content_block_delta events carrying delta.text.
type AnthropicAdapter struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	apiKey       string
}

// NewAnthropicAdapter creates an adapter for the given base URL (empty uses
// the public API) and credential.
func NewAnthropicAdapter(baseURL, apiKey string) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = anthropicDefaultBase
	}
	return &AnthropicAdapter{
		httpClient:   &http.Client{Timeout: anthropicHTTPTimeout},
		streamClient: &http.Client{Timeout: anthropicStreamTimeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
	}
}

func (a *AnthropicAdapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
}

// splitSystem extracts system-role messages into a top-level system prompt.
func splitSystem(messages []datatypes.Message) ([]anthropicMessage, string) {
	var apiMessages []anthropicMessage
	var system string
	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "system") {
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	return apiMessages, system
}

// buildRequest converts the shared envelope to the Anthropic wire form.
func (a *AnthropicAdapter) buildRequest(req datatypes.ChatRequest, stream bool) anthropicRequest {
	apiMessages, system := splitSystem(req.Messages)
	payload := anthropicRequest{
		Model:       req.Model,
		Messages:    apiMessages,
		System:      system,
		MaxTokens:   anthropicMaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if req.MaxTokens != nil {
		payload.MaxTokens = *req.MaxTokens
	}
	return payload
}

// Chat implements Adapter.
func (a *AnthropicAdapter) Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	payload := a.buildRequest(req, false)

	resp, err := postJSON(ctx, a.httpClient, a.baseURL+"/v1/messages", a.headers(), payload)
	if err != nil {
		return nil, newUpstreamError(ProviderAnthropic, 0, err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError(ProviderAnthropic, resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, newUpstreamError(ProviderAnthropic, resp.StatusCode, "unparseable response body")
	}
	if apiResp.Error != nil {
		return nil, newUpstreamError(ProviderAnthropic, resp.StatusCode, apiResp.Error.Message)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &datatypes.ChatResponse{
		Model:           req.Model,
		Message:         datatypes.Message{Role: "assistant", Content: text.String()},
		PromptEvalCount: apiResp.Usage.InputTokens,
		EvalCount:       apiResp.Usage.OutputTokens,
	}, nil
}

// ChatStream implements Adapter.
func (a *AnthropicAdapter) ChatStream(ctx context.Context, req datatypes.ChatRequest, cb StreamCallback) error {
	payload := a.buildRequest(req, true)

	headers := a.headers()
	headers["accept"] = "text/event-stream"

	resp, err := postJSON(ctx, a.streamClient, a.baseURL+"/v1/messages", headers, payload)
	if err != nil {
		return newUpstreamError(ProviderAnthropic, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newUpstreamError(ProviderAnthropic, resp.StatusCode, string(body))
	}

	return a.processSSEStream(ctx, resp.Body, cb)
}

// processSSEStream reads the Anthropic event stream line by line and
// forwards text deltas. Only content_block_delta events with delta.text are
// content; everything else (message_start, ping, ...) is informational.
func (a *AnthropicAdapter) processSSEStream(ctx context.Context, body io.Reader, cb StreamCallback) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			if err := a.handleSSEEvent(eventType, data, cb); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return newUpstreamError(ProviderAnthropic, 0, fmt.Sprintf("stream read error: %v", err))
	}
	return nil
}

func (a *AnthropicAdapter) handleSSEEvent(eventType, data string, cb StreamCallback) error {
	switch eventType {
	case "content_block_delta":
		var delta anthropicContentBlockDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			slog.Warn("failed to parse content_block_delta; continuing stream", "error", err)
			return nil
		}
		if delta.Delta.Type == "text_delta" && delta.Delta.Text != "" {
			return cb(delta.Delta.Text)
		}
	case "error":
		var streamErr struct {
			Error anthropicAPIError `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &streamErr); err != nil {
			return newUpstreamError(ProviderAnthropic, 0, "stream error")
		}
		return newUpstreamError(ProviderAnthropic, 0, streamErr.Error.Message)
	}
	return nil
}

// Generate implements Adapter via a single-turn chat.
func (a *AnthropicAdapter) Generate(ctx context.Context, req datatypes.GenerateRequest) (*datatypes.GenerateResponse, error) {
	resp, err := a.Chat(ctx, datatypes.ChatRequest{
		Model:    req.Model,
		Messages: []datatypes.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, err
	}
	return &datatypes.GenerateResponse{Model: req.Model, Response: resp.Message.Content, Done: true}, nil
}

// Models implements Adapter.
func (a *AnthropicAdapter) Models(ctx context.Context) ([]string, error) {
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := getJSON(ctx, a.httpClient, a.baseURL+"/v1/models", a.headers(), &out); err != nil {
		return nil, newUpstreamError(ProviderAnthropic, 0, err.Error())
	}
	models := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Health implements Adapter.
func (a *AnthropicAdapter) Health(ctx context.Context) bool {
	var out json.RawMessage
	err := getJSON(ctx, a.httpClient, a.baseURL+"/v1/models?limit=1", a.headers(), &out)
	return err == nil
}

var _ Adapter = (*AnthropicAdapter)(nil)

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
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
)

const (
	ollamaDefaultBase   = "http://localhost:11434"
	ollamaHTTPTimeout   = 2 * time.Minute
	ollamaStreamTimeout = 5 * time.Minute
)

// --- Wire types ---

// The ollama chat response is already the gateway's normalized shape; the
// local types exist only for the streaming done flag and the tag listing.

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaAdapter talks to a local ollama instance. No credential is
// injected; the upstream is inside the trust boundary.
type OllamaAdapter struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
}

// NewOllamaAdapter creates an adapter for the configured local base URL.
func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = ollamaDefaultBase
	}
	return &OllamaAdapter{
		httpClient:   &http.Client{Timeout: ollamaHTTPTimeout},
		streamClient: &http.Client{Timeout: ollamaStreamTimeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

func (o *OllamaAdapter) buildRequest(req datatypes.ChatRequest, stream bool) ollamaChatRequest {
	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	payload := ollamaChatRequest{Model: req.Model, Messages: messages, Stream: stream}
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		options["num_predict"] = *req.MaxTokens
	}
	if len(options) > 0 {
		payload.Options = options
	}
	return payload
}

// Chat implements Adapter. The upstream response already conforms to the
// normalized shape and is passed through.
func (o *OllamaAdapter) Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	resp, err := postJSON(ctx, o.httpClient, o.baseURL+"/api/chat", nil, o.buildRequest(req, false))
	if err != nil {
		return nil, newUpstreamError(ProviderOllama, 0, err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError(ProviderOllama, resp.StatusCode, string(body))
	}

	var apiResp ollamaChatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, newUpstreamError(ProviderOllama, resp.StatusCode, "unparseable response body")
	}

	return &datatypes.ChatResponse{
		Model:           apiResp.Model,
		Message:         datatypes.Message{Role: apiResp.Message.Role, Content: apiResp.Message.Content},
		PromptEvalCount: apiResp.PromptEvalCount,
		EvalCount:       apiResp.EvalCount,
	}, nil
}

// ChatStream implements Adapter. Ollama streams one JSON object per line;
// each line's message.content is a delta, and done terminates the stream.
func (o *OllamaAdapter) ChatStream(ctx context.Context, req datatypes.ChatRequest, cb StreamCallback) error {
	resp, err := postJSON(ctx, o.streamClient, o.baseURL+"/api/chat", nil, o.buildRequest(req, true))
	if err != nil {
		return newUpstreamError(ProviderOllama, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newUpstreamError(ProviderOllama, resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			if err := cb(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return newUpstreamError(ProviderOllama, 0, fmt.Sprintf("stream read error: %v", err))
	}
	return nil
}

// Generate implements Adapter using the native completion endpoint.
func (o *OllamaAdapter) Generate(ctx context.Context, req datatypes.GenerateRequest) (*datatypes.GenerateResponse, error) {
	payload := ollamaGenerateRequest{Model: req.Model, Prompt: req.Prompt, Stream: false}
	resp, err := postJSON(ctx, o.httpClient, o.baseURL+"/api/generate", nil, payload)
	if err != nil {
		return nil, newUpstreamError(ProviderOllama, 0, err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError(ProviderOllama, resp.StatusCode, string(body))
	}

	var apiResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, newUpstreamError(ProviderOllama, resp.StatusCode, "unparseable response body")
	}
	return &datatypes.GenerateResponse{Model: apiResp.Model, Response: apiResp.Response, Done: apiResp.Done}, nil
}

// Models implements Adapter via the tag listing.
func (o *OllamaAdapter) Models(ctx context.Context) ([]string, error) {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := getJSON(ctx, o.httpClient, o.baseURL+"/api/tags", nil, &out); err != nil {
		return nil, newUpstreamError(ProviderOllama, 0, err.Error())
	}
	models := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Health implements Adapter.
func (o *OllamaAdapter) Health(ctx context.Context) bool {
	var out json.RawMessage
	err := getJSON(ctx, o.httpClient, o.baseURL+"/api/tags", nil, &out)
	return err == nil
}

var _ Adapter = (*OllamaAdapter)(nil)

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
	"context"
	"errors"
	"io"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatAdapter serves any upstream speaking the OpenAI chat
// completions API. The openai provider uses it directly; together and
// gemini reuse it with their OpenAI-compatible base URLs, so one adapter
// covers three bindings.
//
// The bearer credential is injected by the client library; request shaping
// is POST /v1/chat/completions and responses are normalized from
// choices[0].message plus usage token counts.
type OpenAICompatAdapter struct {
	provider string
	client   *openai.Client
}

// NewOpenAICompatAdapter creates an adapter for one OpenAI-compatible
// binding. baseURL must include the version prefix the upstream expects
// (empty uses the public OpenAI endpoint).
func NewOpenAICompatAdapter(provider, baseURL, apiKey string) *OpenAICompatAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatAdapter{
		provider: provider,
		client:   openai.NewClientWithConfig(cfg),
	}
}

func (a *OpenAICompatAdapter) buildRequest(req datatypes.ChatRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		out.MaxCompletionTokens = *req.MaxTokens
	}
	return out
}

// wrapErr converts a client-library failure into an UpstreamError.
func (a *OpenAICompatAdapter) wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newUpstreamError(a.provider, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newUpstreamError(a.provider, reqErr.HTTPStatusCode, reqErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return newUpstreamError(a.provider, 0, err.Error())
}

// Chat implements Adapter.
func (a *OpenAICompatAdapter) Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req, false))
	if err != nil {
		return nil, a.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, newUpstreamError(a.provider, 0, "upstream returned no choices")
	}

	return &datatypes.ChatResponse{
		Model:           resp.Model,
		Message:         datatypes.Message{Role: "assistant", Content: resp.Choices[0].Message.Content},
		PromptEvalCount: resp.Usage.PromptTokens,
		EvalCount:       resp.Usage.CompletionTokens,
	}, nil
}

// ChatStream implements Adapter.
func (a *OpenAICompatAdapter) ChatStream(ctx context.Context, req datatypes.ChatRequest, cb StreamCallback) error {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.buildRequest(req, true))
	if err != nil {
		return a.wrapErr(err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return a.wrapErr(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := cb(delta); err != nil {
				return err
			}
		}
	}
}

// Generate implements Adapter via a single-turn chat.
func (a *OpenAICompatAdapter) Generate(ctx context.Context, req datatypes.GenerateRequest) (*datatypes.GenerateResponse, error) {
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
func (a *OpenAICompatAdapter) Models(ctx context.Context) ([]string, error) {
	list, err := a.client.ListModels(ctx)
	if err != nil {
		return nil, a.wrapErr(err)
	}
	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

// Health implements Adapter.
func (a *OpenAICompatAdapter) Health(ctx context.Context) bool {
	_, err := a.client.ListModels(ctx)
	return err == nil
}

var _ Adapter = (*OpenAICompatAdapter)(nil)

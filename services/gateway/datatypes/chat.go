// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire envelopes shared by handlers, the
// provider adapters, and the stores.
package datatypes

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Message is one turn of a conversation in the shared request envelope.
type Message struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// ChatRequest is the unified chat envelope accepted on /v1/chat.
//
// Validation: Model non-empty, Messages non-empty, Temperature (when
// present) in [0, 2]. Violations surface as validation_error with one
// message per failed rule.
type ChatRequest struct {
	Model       string    `json:"model" binding:"required"`
	Messages    []Message `json:"messages" binding:"required,min=1,dive"`
	Stream      bool      `json:"stream"`
	Temperature *float32  `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int      `json:"max_tokens" binding:"omitempty,gt=0"`
}

// ChatResponse is the normalized unary chat response. Every provider's
// answer is reshaped into this form; ollama responses already conform.
type ChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// StreamDelta is one normalized streaming frame payload. The dispatcher
// writes it as `data: <json>` followed by a blank line.
type StreamDelta struct {
	Model   string  `json:"model,omitempty"`
	Message Message `json:"message"`
}

// GenerateRequest is the legacy prompt-completion envelope on /v1/generate.
type GenerateRequest struct {
	Model  string `json:"model" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
}

// GenerateResponse is the ollama-shaped legacy completion response.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// FormatValidationErrors renders binding failures as one string per rule
// violation, suitable for the errors[] field of a validation_error body.
func FormatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				out = append(out, fmt.Sprintf("%s is required", fe.Field()))
			case "min":
				out = append(out, fmt.Sprintf("%s must have at least %s element(s)", fe.Field(), fe.Param()))
			case "gte", "gt":
				out = append(out, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
			case "lte", "lt":
				out = append(out, fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param()))
			case "oneof":
				out = append(out, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
			default:
				out = append(out, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
			}
		}
		return out
	}
	return []string{"request body is not valid JSON"}
}

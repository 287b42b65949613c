// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for model-to-provider routing

package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickProvider_RoutingTable(t *testing.T) {
	cases := map[string]string{
		"gpt-4o":                  ProviderOpenAI,
		"gpt-3.5-turbo":           ProviderOpenAI,
		"o1-preview":              ProviderOpenAI,
		"o3-mini":                 ProviderOpenAI,
		"claude-3-5-sonnet":       ProviderAnthropic,
		"claude-opus-4":           ProviderAnthropic,
		"gemini-1.5":              ProviderGemini,
		"meta-llama/Llama-3.1-8B": ProviderTogether,
		"mistralai/Mixtral-8x7B":  ProviderTogether,
		"qwen2.5:3b":              ProviderOllama,
		"llama3":                  ProviderOllama,
	}
	for model, want := range cases {
		assert.Equal(t, want, PickProvider(model), "model %s", model)
	}
}

func TestPickProvider_Total(t *testing.T) {
	// Every string maps to exactly one identity; empty falls to the local
	// default like any other non-matching name.
	assert.Equal(t, ProviderOllama, PickProvider(""))
	assert.Equal(t, ProviderOllama, PickProvider("totally-unknown-model"))
}

func TestPickProvider_Idempotent(t *testing.T) {
	first := PickProvider("claude-3-haiku")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, PickProvider("claude-3-haiku"))
	}
}

func TestPickProvider_OrderMatters(t *testing.T) {
	// A slash in a prefixed name must not shadow the prefix rules.
	assert.Equal(t, ProviderOpenAI, PickProvider("gpt-4o/extended"))
}

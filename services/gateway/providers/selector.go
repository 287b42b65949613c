// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package providers maps model names to upstream AI providers and shapes
// requests for each upstream's API.
//
// The selector is a pure, total function over model strings: every model
// name resolves to exactly one provider identity. Whether that provider is
// actually reachable is a separate concern — the Registry holds the runtime
// bindings, and a selected-but-unbound provider surfaces as
// provider_unavailable at the dispatch layer.
package providers

import "strings"

// Provider identities returned by PickProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderTogether  = "together"
	ProviderOllama    = "ollama"
)

// routingRule is one prefix predicate of the model routing table.
type routingRule struct {
	prefixes []string
	provider string
}

// routingRules is evaluated in order; first match wins. The trailing
// contains-slash rule catches org/model names published through multi-model
// hosts, and everything else lands on the local provider.
var routingRules = []routingRule{
	{prefixes: []string{"claude"}, provider: ProviderAnthropic},
	{prefixes: []string{"gpt", "o1", "o3"}, provider: ProviderOpenAI},
	{prefixes: []string{"gemini"}, provider: ProviderGemini},
}

// PickProvider resolves a model name to its provider identity.
//
// # Description
//
// Applies the ordered prefix rules, then the org/model slash rule, then the
// local default. The function is idempotent and total: any model string,
// including the empty string, maps to exactly one identity.
//
// # Examples
//
//	PickProvider("gpt-4o")                  // "openai"
//	PickProvider("claude-3-5-sonnet")       // "anthropic"
//	PickProvider("meta-llama/Llama-3.1-8B") // "together"
//	PickProvider("qwen2.5:3b")              // "ollama"
func PickProvider(model string) string {
	for _, rule := range routingRules {
		for _, prefix := range rule.prefixes {
			if strings.HasPrefix(model, prefix) {
				return rule.provider
			}
		}
	}
	if strings.Contains(model, "/") {
		return ProviderTogether
	}
	return ProviderOllama
}

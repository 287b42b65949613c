// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads gateway configuration from the environment, with an
// optional YAML overlay for rate limits, provider base URLs, and the agent
// roster. Environment variables win over the file; everything is immutable
// after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/ratelimit"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultBind = "0.0.0.0"
	DefaultPort = "8080"
)

// Config is the gateway's startup configuration.
//
// AuthSecret empty means development mode: authentication is skipped and a
// synthetic admin principal is used. This must be advertised at startup.
type Config struct {
	Bind string
	Port string

	// AuthSecret is the HMAC-SHA256 signing key for bearer tokens.
	AuthSecret string

	// Provider credentials and endpoints. An empty credential leaves the
	// provider unbound; requests routed to it answer provider_unavailable.
	OpenAIKey    string
	AnthropicKey string
	TogetherKey  string
	GeminiKey    string
	OllamaURL    string

	// Journal paths; empty disables journaling for that chain.
	MemoryJournal string
	AuditJournal  string
	TaskJournal   string

	// RateLimits is the per-class quota table.
	RateLimits map[string]ratelimit.Limit

	// BaseURLs overrides provider endpoints (testing, self-hosted mirrors).
	BaseURLs map[string]string

	// Agents is the roster served on GET /agents.
	Agents []datatypes.Agent
}

// fileConfig is the YAML overlay shape.
type fileConfig struct {
	RateLimits map[string]struct {
		Requests      int `yaml:"requests"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limits"`
	Providers map[string]struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"providers"`
	Agents []datatypes.Agent `yaml:"agents"`
}

// Load reads the environment and the optional GATEWAY_CONFIG file.
func Load() (*Config, error) {
	cfg := &Config{
		Bind:          envOr("GATEWAY_BIND", DefaultBind),
		Port:          envOr("GATEWAY_PORT", DefaultPort),
		AuthSecret:    os.Getenv("GATEWAY_AUTH_SECRET"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		TogetherKey:   os.Getenv("TOGETHER_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		OllamaURL:     os.Getenv("OLLAMA_URL"),
		MemoryJournal: os.Getenv("MEMORY_JOURNAL"),
		AuditJournal:  os.Getenv("AUDIT_JOURNAL"),
		TaskJournal:   os.Getenv("TASK_JOURNAL"),
		RateLimits:    ratelimit.DefaultLimits(),
		BaseURLs:      map[string]string{},
		Agents:        DefaultAgents(),
	}

	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyFile merges the YAML overlay into cfg.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	for class, l := range fc.RateLimits {
		if l.Requests <= 0 || l.WindowSeconds <= 0 {
			return fmt.Errorf("config file %s: rate limit %q must have positive requests and window_seconds", path, class)
		}
		c.RateLimits[class] = ratelimit.Limit{
			Requests: l.Requests,
			Window:   time.Duration(l.WindowSeconds) * time.Second,
		}
	}
	for provider, p := range fc.Providers {
		if p.BaseURL != "" {
			c.BaseURLs[provider] = p.BaseURL
		}
	}
	if len(fc.Agents) > 0 {
		c.Agents = fc.Agents
	}
	return nil
}

// DevMode reports whether the gateway runs without token authentication.
func (c *Config) DevMode() bool {
	return c.AuthSecret == ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Bind + ":" + c.Port
}

// Credentials returns every configured secret value, for the outbound
// credential scrubber.
func (c *Config) Credentials() []string {
	return []string{c.OpenAIKey, c.AnthropicKey, c.TogetherKey, c.GeminiKey}
}

// DefaultAgents is the built-in roster.
func DefaultAgents() []datatypes.Agent {
	return []datatypes.Agent{
		{ID: "orchestrator", Name: "Orchestrator", Role: "coordination", Type: "system", Status: "active", Model: "claude-3-5-sonnet"},
		{ID: "researcher", Name: "Researcher", Role: "retrieval", Type: "worker", Status: "active", Model: "gpt-4o-mini"},
		{ID: "scribe", Name: "Scribe", Role: "summarization", Type: "worker", Status: "active", Model: "qwen2.5:3b"},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

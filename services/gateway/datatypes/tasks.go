// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// TaskCreateRequest is the POST /tasks envelope.
type TaskCreateRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Priority    string   `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Tags        []string `json:"tags"`
	Skills      []string `json:"skills"`
}

// TaskClaimRequest is the POST /tasks/{id}/claim and /tasks/{id}/start envelope.
type TaskClaimRequest struct {
	Agent string `json:"agent" binding:"required"`
}

// TaskCompleteRequest is the POST /tasks/{id}/complete envelope.
type TaskCompleteRequest struct {
	Agent   string `json:"agent" binding:"required"`
	Summary string `json:"summary"`
}

// Agent is one entry of the static roster served on GET /agents.
type Agent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Model  string `json:"model"`
}

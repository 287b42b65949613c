// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "encoding/json"

// MemoryAppendRequest is the POST /memory envelope.
//
// Value is opaque to the gateway; it is canonicalized and hashed but never
// interpreted. TruthState defaults to 0 (unknown) when absent.
type MemoryAppendRequest struct {
	Key        string          `json:"key" binding:"required"`
	Value      json.RawMessage `json:"value" binding:"required"`
	Type       string          `json:"type" binding:"omitempty,oneof=fact observation inference commitment"`
	TruthState *int            `json:"truth_state" binding:"omitempty,oneof=-1 0 1"`
}

package transport

import "encoding/json"

type TaskCreateRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Station     string          `json:"station"`
	DueAt       string          `json:"due_at"`
	BasePoints  int             `json:"base_points"`
	ProofType   string          `json:"proof_type"`
	Repeat      json.RawMessage `json:"repeat,omitempty"`
}

type TaskUpdateRequest struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Station     *string         `json:"station,omitempty"`
	DueAt       *string         `json:"due_at,omitempty"`
	ProofType   *string         `json:"proof_type,omitempty"`
	Repeat      json.RawMessage `json:"repeat,omitempty"`
}

// TransitionRequest carries a lifecycle intent with its payload fields.
// Unused fields are ignored by intents that do not read them.
type TransitionRequest struct {
	Intent     string          `json:"intent"`
	Multiplier float64         `json:"multiplier,omitempty"`
	Adjustment int             `json:"adjustment,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	NewDueAt   string          `json:"new_due_at,omitempty"`
	Proof      json.RawMessage `json:"proof,omitempty"`
}

type AuthLoginRequest struct {
	ActorID string `json:"actor_id"`
	TTL     int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}

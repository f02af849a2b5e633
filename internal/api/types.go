package api

import (
	"time"

	"statsvault/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// PushRequest is the body of POST /api/post/{id}. Payload travels as base64.
type PushRequest struct {
	Payload []byte `json:"payload"`
}

// FetchResponse is the response from GET /api/get/{id}/{token}.
type FetchResponse struct {
	ID        string `json:"id"`
	Payload   []byte `json:"payload"`
	Remaining int64  `json:"remaining"`
	Token     string `json:"token"`
}

// AdminResponse is the response from /api/adm/{command}/{arg}.
type AdminResponse struct {
	Command string         `json:"command"`
	Entries []models.Entry `json:"entries"`
	Revoked bool           `json:"revoked,omitempty"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	DBPath           string    `json:"db_path"`
	SchemaVersion    int       `json:"schema_version"`
	TotalEntries     int       `json:"total_entries"`
	ExhaustedEntries int       `json:"exhausted_entries"`
	StoredPayloads   int       `json:"stored_payloads"`
	PushPolicy       string    `json:"push_policy"`
	BlobBackend      string    `json:"blob_backend"`
	MaxPayloadBytes  int64     `json:"max_payload_bytes"`
	StartedAt        time.Time `json:"started_at"`
}

// HealthResponse is the response from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Package handler provides HTTP request handlers for the admin API.
package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses
// Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// StatusResponse is the response body for GET /admin/v1/status.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Keys          int    `json:"keys"`
	Sequence      uint64 `json:"sequence"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// SnapshotResponse represents a snapshot in API responses.
type SnapshotResponse struct {
	ID         string `json:"id"`
	Sequence   uint64 `json:"sequence"`
	EntryCount int64  `json:"entry_count"`
	CreatedAt  int64  `json:"created_at"`
	SizeBytes  int64  `json:"size_bytes"`
	Checksum   string `json:"checksum"`
	NodeID     string `json:"node_id,omitempty"`
}

// ListSnapshotsResponse is the response body for GET /admin/v1/snapshots.
type ListSnapshotsResponse struct {
	Snapshots []SnapshotResponse `json:"snapshots"`
}

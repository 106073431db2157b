package models

import "fmt"

// MessageRequest is the body of POST /message. Name carries the question text
// (field name kept for compatibility with the original UI). SessionID is an
// opaque per-conversation identifier; when empty the server generates one.
type MessageRequest struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

// Validate ensures the request has a non-empty question.
func (r *MessageRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name (question text) cannot be empty")
	}
	return nil
}

// MessageResponse is the non-streaming response of POST /message.
// GraphImage is a base64 PNG when the answer carried a parseable graph
// marker, null otherwise. Grounded is false when the answer was produced
// without any retrieved context.
type MessageResponse struct {
	Text       string  `json:"text"`
	GraphImage *string `json:"graph_image"`
	Grounded   bool    `json:"grounded"`
	SessionID  string  `json:"session_id"`
}

// UploadResponse is the response of POST /upload-pdf.
type UploadResponse struct {
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Message   string `json:"message"`
}

// ImageUploadResponse is the response of POST /upload-image. Analysis is the
// model's reading of the OCR text; GraphImage follows the same convention as
// MessageResponse.
type ImageUploadResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Analysis   string  `json:"analysis"`
	GraphImage *string `json:"graph_image"`
	Filename   string  `json:"filename"`
}

// RootResponse is the response of GET /.
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthResponse is the response of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	RetrieverReady bool   `json:"retriever_ready"`
	ActiveSessions int    `json:"active_sessions"`
}

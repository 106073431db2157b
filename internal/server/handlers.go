package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/extract"
	"github.com/docent-ai/docent/internal/models"
)

// The upload endpoint takes PDFs only. Other document types reach the index
// through the watch directory or the ingest command.
var documentExts = map[string]bool{
	".pdf": true,
}

const maxUploadBytes = 64 << 20

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	status := "waiting_for_documents"
	if s.readiness.Ready(r.Context()) {
		status = "ready"
	}
	s.respondJSON(w, http.StatusOK, models.RootResponse{
		Message: "docent document QA service",
		Status:  status,
		Version: Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:         "healthy",
		RetrieverReady: s.readiness.Ready(r.Context()),
		ActiveSessions: s.sessions.Len(),
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	path, size, err := s.saveUpload(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filename := filepath.Base(path)
	if !documentExts[strings.ToLower(filepath.Ext(filename))] {
		_ = os.Remove(path)
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported document type: %s", filepath.Ext(filename)))
		return
	}
	s.logger.Debug("document upload", zap.String("filename", filename), zap.Int64("size", size))

	chunks, err := s.ingestor.IngestFile(r.Context(), path)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		Status:    "success",
		Filename:  filename,
		SizeBytes: size,
		Message:   fmt.Sprintf("indexed %d chunks", chunks),
	})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	path, size, err := s.saveUpload(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filename := filepath.Base(path)
	if !extract.IsImageExt(filepath.Ext(filename)) {
		_ = os.Remove(path)
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported image type: %s", filepath.Ext(filename)))
		return
	}
	s.logger.Debug("image upload", zap.String("filename", filename), zap.Int64("size", size))

	units, err := s.extractor.Extract(path)
	if err != nil {
		s.logger.Error("image extraction failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var text strings.Builder
	for _, u := range units {
		text.WriteString(u.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		s.respondError(w, http.StatusBadRequest, "no text could be recognized in the image")
		return
	}

	chunks, err := s.ingestor.IngestExtracted(r.Context(), units, filename, size)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	analysis, err := s.chat.Analyze(r.Context(), text.String())
	if err != nil {
		s.logger.Error("image analysis failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.ImageUploadResponse{
		Status:     "success",
		Message:    fmt.Sprintf("indexed %d chunks", chunks),
		Analysis:   analysis.Text,
		GraphImage: optionalString(analysis.GraphImage),
		Filename:   filename,
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.readiness.Ready(r.Context()) {
		s.respondError(w, http.StatusServiceUnavailable, "no documents have been ingested yet")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	s.logger.Debug("message request",
		zap.String("session_id", sessionID),
		zap.Bool("stream", req.Stream))

	if req.Stream {
		s.streamMessage(w, r, sessionID, req.Name)
		return
	}

	answer, err := s.chat.Answer(r.Context(), sessionID, req.Name)
	if err != nil {
		s.logger.Error("answer failed", zap.String("session_id", sessionID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.MessageResponse{
		Text:       answer.Text,
		GraphImage: optionalString(answer.GraphImage),
		Grounded:   answer.Grounded,
		SessionID:  sessionID,
	})
}

// streamMessage writes the answer as chunked plain text. The session id goes
// out in a header since the body is raw answer text.
func (s *Server) streamMessage(w http.ResponseWriter, r *http.Request, sessionID, question string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Session-ID", sessionID)

	wrote := false
	err := s.chat.AnswerStream(r.Context(), sessionID, question, func(chunk string) error {
		if _, werr := io.WriteString(w, chunk); werr != nil {
			return werr
		}
		wrote = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.logger.Error("stream failed", zap.String("session_id", sessionID), zap.Error(err))
		if !wrote {
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		s.respondError(w, http.StatusNotImplemented, "document registry not enabled")
		return
	}
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)
	list, err := s.artifacts.ListArtifacts(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*models.Artifact{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": list,
		"count":     len(list),
	})
}

// saveUpload stores the multipart "file" field in the upload directory and
// returns its path and size.
func (s *Server) saveUpload(r *http.Request) (string, int64, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", 0, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", 0, fmt.Errorf("file field is required")
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", 0, fmt.Errorf("invalid filename")
	}
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(s.uploadDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to store upload: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to store upload: %w", err)
	}
	return path, size, nil
}

func intQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

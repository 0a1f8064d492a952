package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dhowland/receipt-relay/internal/reconcile"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a structured {error, details} response
func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

// handleAnalyze accepts a receipt upload and returns the extracted
// fields for review
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg, "")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file provided", "")
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB. Please compress or resize your image.", "")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.", "")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromExt(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	result, err := s.service.Analyze(header.Filename, data, contentType)
	if err != nil {
		if errors.Is(err, ErrNoExtractableData) {
			writeError(w, http.StatusUnprocessableEntity, "No extractable data in receipt", "")
			return
		}
		slog.Error("Error analyzing receipt", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Error analyzing receipt", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCreateRecord relays reviewed fields into the accounting system
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	result, err := s.service.CreateRecord(r.Context(), req)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Message, "")
			return
		}

		var stepErr *reconcile.StepError
		if errors.As(err, &stepErr) {
			slog.Error("Error relaying receipt", "step", stepErr.Step, "status", stepErr.Status, "error", err)
			message := fmt.Sprintf("Failed while %s", stepErr.Step)
			if stepErr.Status != 0 {
				message = fmt.Sprintf("%s (upstream status %d)", message, stepErr.Status)
			}
			writeError(w, http.StatusInternalServerError, message, stepErr.Details)
			return
		}

		slog.Error("Error creating record", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating record", err.Error())
		return
	}

	response := map[string]any{
		"success":      true,
		"attached_via": result.Outcome.AttachedVia,
		"receipt":      result.Processed,
		string(result.Outcome.Kind): map[string]string{
			"url": result.Outcome.RecordURL,
		},
	}
	writeJSON(w, http.StatusOK, response)
}

// handleListHistory returns all processed receipts
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	processed, err := s.service.ListProcessed()
	if err != nil {
		slog.Error("Error listing history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if processed == nil {
		processed = []*ProcessedReceipt{}
	}

	writeJSON(w, http.StatusOK, processed)
}

// handleGetHistory returns a single processed receipt
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "History entry ID required", http.StatusBadRequest)
		return
	}
	processed, err := s.service.GetProcessed(id)
	if err != nil {
		corsError(w, "History entry not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, processed)
}

// handleGetHistoryFile returns the archived image for a processed
// receipt
func (s *Server) handleGetHistoryFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "History entry ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetProcessedFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteHistory deletes a processed receipt and its archived image
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "History entry ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteProcessed(id); err != nil {
		corsError(w, "Error deleting history entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// contentTypeFromExt infers a MIME type from the filename extension
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

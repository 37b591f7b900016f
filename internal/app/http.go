package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resumark/api/internal/attach"
	"resumark/api/internal/export"
	"resumark/api/internal/share"
)

// multipartMemoryLimit is how much of a multipart body is held in memory
// before spilling to disk. Attachments cap out at attach.MaxSize anyway.
const multipartMemoryLimit = attach.MaxSize + 1<<20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)

	// Shared view: the one route living outside /api. The token is the only
	// credential; no session is involved.
	if len(parts) == 2 && parts[0] == "share" && r.Method == http.MethodGet {
		s.handleShareView(w, r, parts[1])
		return
	}

	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "resumes":
		s.handleResumes(w, r, parts[2:])
		return
	case "notes":
		if len(parts) == 3 {
			s.handleNote(w, r, parts[2])
			return
		}
	case "search":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleSearch(w, r)
			return
		}
	case "share":
		if len(parts) == 3 && r.Method == http.MethodDelete {
			if err := s.service.RevokeShare(r.Context(), parts[2]); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleResumes(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	slug := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetResume(r.Context(), slug)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case http.MethodPatch:
			var body PatchResumeInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.PatchResume(r.Context(), slug, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "notes":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		s.handleCreateNote(w, r, slug)
		return
	case "share":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body CreateShareInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateShare(r.Context(), slug, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	case "export":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		s.handleExport(w, r, slug)
		return
	case "history":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		limit := queryInt(r, "limit", 50)
		commits, err := s.service.History(r.Context(), slug, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": commits})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleNote(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPatch:
		input, upload, err := decodeNoteBody(r, func() (UpdateNoteInput, error) {
			var body UpdateNoteInput
			err := decodeBody(r, &body)
			return body, err
		}, func(form map[string]string) UpdateNoteInput {
			return UpdateNoteInput{Note: form["note"]}
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateNote(r.Context(), id, input, upload)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	case http.MethodDelete:
		if err := s.service.DeleteNote(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleCreateNote(w http.ResponseWriter, r *http.Request, slug string) {
	input, upload, err := decodeNoteBody(r, func() (CreateNoteInput, error) {
		var body CreateNoteInput
		err := decodeBody(r, &body)
		return body, err
	}, func(form map[string]string) CreateNoteInput {
		body := CreateNoteInput{
			Identifier:   form["identifier"],
			Note:         form["note"],
			Section:      form["section"],
			SelectedText: form["selected_text"],
		}
		if raw := form["context"]; raw != "" {
			// A malformed context blob degrades to a context-free note; the
			// locator then falls back to first occurrence.
			_ = json.Unmarshal([]byte(raw), &body.Context)
		}
		return body
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.CreateNote(r.Context(), slug, input, upload)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

// decodeNoteBody reads a note payload that may arrive either as JSON or as a
// multipart form carrying a note_file part.
func decodeNoteBody[T any](r *http.Request, fromJSON func() (T, error), fromForm func(map[string]string) T) (T, *attach.Upload, error) {
	var zero T
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		body, err := fromJSON()
		if err != nil {
			return zero, nil, err
		}
		return body, nil, nil
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return zero, nil, fmt.Errorf("invalid multipart body")
	}
	form := make(map[string]string)
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			form[key] = values[0]
		}
	}
	body := fromForm(form)

	file, header, err := r.FormFile("note_file")
	if errors.Is(err, http.ErrMissingFile) {
		return body, nil, nil
	}
	if err != nil {
		return zero, nil, fmt.Errorf("invalid note_file part")
	}
	return body, &attach.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Reader:   file,
	}, nil
}

func (s *HTTPServer) handleShareView(w http.ResponseWriter, r *http.Request, token string) {
	password := r.URL.Query().Get("password")
	snap, err := s.service.ResolveShare(r.Context(), token, password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, slug string) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(export.FormatPDF)
	}
	includeNotes := r.URL.Query().Get("notes") == "true" || r.URL.Query().Get("notes") == "1"

	result, err := s.service.Export(r.Context(), export.Request{
		Slug:         slug,
		Format:       export.Format(format),
		IncludeNotes: includeNotes,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "q is required", nil)
		return
	}
	payload, err := s.service.Search(r.Context(), SearchInput{
		Query:   query,
		Resume:  r.URL.Query().Get("resume"),
		Section: r.URL.Query().Get("section"),
		Limit:   queryInt(r, "limit", 20),
		Offset:  queryInt(r, "offset", 0),
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, share.ErrInvalidToken) || errors.Is(err, share.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Share link is invalid or expired", nil
	}
	if errors.Is(err, share.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Share link not found", nil
	}
	if errors.Is(err, share.ErrPasswordRequired) {
		return http.StatusUnauthorized, "PASSWORD_REQUIRED", "This share link requires a password", nil
	}
	if errors.Is(err, share.ErrWrongPassword) {
		return http.StatusForbidden, "WRONG_PASSWORD", "Wrong share password", nil
	}
	if errors.Is(err, attach.ErrUnsupportedType) {
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "Attachments must be an image or a PDF", map[string]string{"field": "note_file"}
	}
	if errors.Is(err, attach.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Attachments are limited to 5 MB", map[string]string{"field": "note_file"}
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is unavailable on this host", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

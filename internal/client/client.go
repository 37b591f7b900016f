// Package client talks to the resumark API from the editor. It implements
// editor.NoteService so the in-memory note store and the HTTP wire share a
// single boundary.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"resumark/api/internal/annotate"
	"resumark/api/internal/attach"
	"resumark/api/internal/editor"
)

// Client is an API client scoped to one resume.
type Client struct {
	baseURL string
	slug    string
	http    *http.Client
}

func New(baseURL, slug string) *Client {
	return &Client{baseURL: baseURL, slug: slug, http: http.DefaultClient}
}

// NewWithHTTPClient is for callers that need their own transport (timeouts,
// test servers).
func NewWithHTTPClient(baseURL, slug string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, slug: slug, http: hc}
}

var _ editor.NoteService = (*Client)(nil)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// resumeDetail is the subset of the resume endpoint's response the note
// store needs.
type resumeDetail struct {
	Notes []annotate.Note `json:"get_all_notes"`
}

type createPayload struct {
	Identifier   string            `json:"identifier"`
	Note         string            `json:"note"`
	Section      annotate.Section  `json:"section"`
	SelectedText string            `json:"selected_text"`
	Context      *annotate.Context `json:"context,omitempty"`
}

type updatePayload struct {
	Note string `json:"note"`
}

// CreateNote posts a new note. With an attachment present the request goes
// up as multipart form data, the note fields as form values and the file
// under note_file; otherwise it is plain JSON.
func (c *Client) CreateNote(ctx context.Context, in editor.CreateInput, att *editor.Attachment) (annotate.Note, error) {
	path := fmt.Sprintf("/api/resumes/%s/notes", url.PathEscape(c.slug))
	payload := createPayload{
		Identifier:   in.Identifier,
		Note:         in.Body,
		Section:      in.Section,
		SelectedText: in.SelectedText,
		Context:      in.Context,
	}

	var note annotate.Note
	var err error
	if att != nil {
		if verr := attach.Validate(att.MimeType, att.Size); verr != nil {
			return annotate.Note{}, verr
		}
		err = c.doMultipart(ctx, http.MethodPost, path, payload, att, &note)
	} else {
		err = c.doJSON(ctx, http.MethodPost, path, payload, &note)
	}
	if err != nil {
		return annotate.Note{}, err
	}
	return note, nil
}

// ListNotes fetches the resume detail and returns its notes.
func (c *Client) ListNotes(ctx context.Context) ([]annotate.Note, error) {
	path := fmt.Sprintf("/api/resumes/%s", url.PathEscape(c.slug))
	var detail resumeDetail
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return detail.Notes, nil
}

// UpdateNote replaces a note's body and, when an attachment is given, its
// file.
func (c *Client) UpdateNote(ctx context.Context, id, body string, att *editor.Attachment) (annotate.Note, error) {
	path := fmt.Sprintf("/api/notes/%s", url.PathEscape(id))

	var note annotate.Note
	var err error
	if att != nil {
		if verr := attach.Validate(att.MimeType, att.Size); verr != nil {
			return annotate.Note{}, verr
		}
		err = c.doMultipart(ctx, http.MethodPatch, path, updatePayload{Note: body}, att, &note)
	} else {
		err = c.doJSON(ctx, http.MethodPatch, path, updatePayload{Note: body}, &note)
	}
	if err != nil {
		return annotate.Note{}, err
	}
	return note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/notes/%s", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// doMultipart sends the same payload as the JSON path but as form fields,
// with the file streamed under the note_file part. The context form value
// carries the anchor context as a JSON string.
func (c *Client) doMultipart(ctx context.Context, method, path string, payload any, att *editor.Attachment, out any) error {
	fields, err := formFields(payload)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	part, err := mw.CreateFormFile("note_file", att.Filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, att.Reader); err != nil {
		return fmt.Errorf("copy attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", req.Method, req.URL.Path, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// formFields flattens a JSON payload into string form values. Nested
// objects (the anchor context) are kept as JSON.
func formFields(payload any) (map[string]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode form payload: %w", err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("flatten form payload: %w", err)
	}
	fields := make(map[string]string, len(generic))
	for key, value := range generic {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			fields[key] = s
			continue
		}
		fields[key] = string(value)
	}
	return fields, nil
}

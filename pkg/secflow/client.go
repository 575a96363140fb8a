package secflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
)

// PendingUpload stages the payload an encrypt flow will send.
type PendingUpload struct {
	Name        string
	PartitionID string
	Payload     []byte
}

// HTTPSubmitter performs gated operations against the REST API. Encrypt
// flows upload the staged payload as multipart form data; decrypt and
// preview flows fetch the file with the credential artifact as a query
// parameter and hand the body to HandlePayload.
type HTTPSubmitter struct {
	BaseURL string
	Token   string
	Client  *http.Client

	// HandlePayload receives decrypted bytes from download/preview flows.
	HandlePayload func(contentType string, body []byte) error

	mu      sync.Mutex
	pending *PendingUpload
}

// StageUpload sets the payload the next encrypt flow submits.
func (s *HTTPSubmitter) StageUpload(p PendingUpload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
}

func (s *HTTPSubmitter) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPSubmitter) Submit(ctx context.Context, req Request) error {
	switch req.Purpose {
	case PurposeEncrypt:
		return s.upload(ctx, req)
	case PurposeDecrypt:
		return s.fetch(ctx, req, "download")
	case PurposePreview:
		return s.fetch(ctx, req, "preview")
	default:
		return fmt.Errorf("unknown purpose %q", req.Purpose)
	}
}

func (s *HTTPSubmitter) upload(ctx context.Context, req Request) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending == nil {
		return fmt.Errorf("no staged upload")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", pending.Name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(pending.Payload); err != nil {
		return err
	}
	_ = mw.WriteField("partition_id", pending.PartitionID)
	_ = mw.WriteField("encrypt", "true")
	if len(req.Artifact) > 0 {
		_ = mw.WriteField("fingerprint", string(req.Artifact))
	}
	if err := mw.Close(); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/files/upload", &buf)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.httpClient().Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// fetch retrieves the plaintext. Preview responses stream the bytes
// directly; download responses wrap them in a JSON envelope with base64
// file_data and the mime type.
func (s *HTTPSubmitter) fetch(ctx context.Context, req Request, op string) error {
	u := fmt.Sprintf("%s/api/files/%s/%s", s.BaseURL, req.FileID, op)
	if len(req.Artifact) > 0 {
		u += "?fingerprint=" + url.QueryEscape(string(req.Artifact))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.httpClient().Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if s.HandlePayload == nil {
		return nil
	}
	if op == "download" {
		var envelope struct {
			FileData string `json:"file_data"`
			MimeType string `json:"mime_type"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("decode download envelope: %w", err)
		}
		payload, err := base64.StdEncoding.DecodeString(envelope.FileData)
		if err != nil {
			return fmt.Errorf("decode file_data: %w", err)
		}
		return s.HandlePayload(envelope.MimeType, payload)
	}
	return s.HandlePayload(resp.Header.Get("Content-Type"), body)
}

// apiError extracts the server's error envelope, falling back to the status.
func apiError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}

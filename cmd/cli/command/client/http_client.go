package client

// http_client.go = handles the REST side of the mooshi CLI: key management and
// the image CDN.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

type StoredFile struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UploadResponse struct {
	Message string     `json:"message"`
	File    StoredFile `json:"file"`
}

type FileListResponse struct {
	Owner string       `json:"owner"`
	Files []StoredFile `json:"files"`
	Total int          `json:"total"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
	}
}

// NewKey asks the server for a fresh API key; master is the server's master key.
func (c *HTTPClient) NewKey(master, owner string) (string, error) {
	q := url.Values{"master": {master}}
	if owner != "" {
		q.Set("owner", owner)
	}
	body, err := c.do(http.MethodGet, "/v1/new_key?"+q.Encode(), nil, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *HTTPClient) Invalidate(master, key string) error {
	q := url.Values{"master": {master}, "key": {key}}
	_, err := c.do(http.MethodPost, "/v1/invalidate?"+q.Encode(), nil, "")
	return err
}

// Upload sends the image at path to the CDN under the caller's key.
func (c *HTTPClient) Upload(path string, data []byte) (*UploadResponse, error) {
	contentType := http.DetectContentType(data)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	respBody, err := c.do(http.MethodPost, "/cdn/upload", body, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var resp UploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) ListFiles() (*FileListResponse, error) {
	respBody, err := c.do(http.MethodGet, "/cdn/files", nil, "")
	if err != nil {
		return nil, err
	}
	var resp FileListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) DeleteFile(name string) error {
	_, err := c.do(http.MethodDelete, "/cdn/files/"+url.PathEscape(name), nil, "")
	return err
}

func (c *HTTPClient) do(method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

// errorMessage pulls "error" out of a JSON body, falling back to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

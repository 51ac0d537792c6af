// Package drive talks to the single-document remote backup store: a fixed
// file name inside the app-private space of a Drive-style HTTP API. The
// caller supplies a valid bearer token on every call; acquiring or refreshing
// tokens is the UI's job.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/claude/bilbotrack/internal/backup"
)

// Config points the client at the remote API. The defaults target Google
// Drive v3; tests override the bases with an httptest server.
type Config struct {
	APIBase    string `yaml:"api_base"`
	UploadBase string `yaml:"upload_base"`
	FileName   string `yaml:"file_name"`
}

// DefaultConfig returns the production endpoints.
func DefaultConfig() Config {
	return Config{
		APIBase:    "https://www.googleapis.com/drive/v3",
		UploadBase: "https://www.googleapis.com/upload/drive/v3",
		FileName:   backup.FileName,
	}
}

// RemoteFile identifies the backup document on the remote side.
type RemoteFile struct {
	ID           string    `json:"id"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Client performs the four remote operations against the backup document.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client for the configured remote store.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.FileName == "" {
		cfg.FileName = backup.FileName
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// Find looks up the backup document by its fixed name in the app-private
// space. It returns nil (and no error) when the document does not exist.
func (c *Client) Find(ctx context.Context, token string) (*RemoteFile, error) {
	query := url.Values{
		"spaces": {"appDataFolder"},
		"q":      {fmt.Sprintf("name='%s'", c.cfg.FileName)},
		"fields": {"files(id,modifiedTime)"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.APIBase+"/files?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finding backup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("find", resp)
	}

	var result struct {
		Files []RemoteFile `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding file list: %w", err)
	}
	if len(result.Files) == 0 {
		return nil, nil
	}
	return &result.Files[0], nil
}

// Download fetches and validates the backup document. It returns nil when the
// fetch fails or the content does not validate; the sync coordinator treats
// both the same way.
func (c *Client) Download(ctx context.Context, token, fileID string) (*backup.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.APIBase+"/files/"+url.PathEscape(fileID)+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading backup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backup body: %w", err)
	}

	doc, err := backup.Decode(data)
	if err != nil {
		c.log.Warn("remote backup failed validation", "error", err)
		return nil, err
	}
	return doc, nil
}

// Upload writes the document to the remote store as a multipart request:
// create when existingID is empty, replace otherwise.
func (c *Client) Upload(ctx context.Context, token string, doc *backup.Document, existingID string) error {
	content, err := doc.Encode()
	if err != nil {
		return err
	}

	metadata := map[string]any{
		"name":     c.cfg.FileName,
		"mimeType": "application/json",
	}
	if existingID == "" {
		metadata["parents"] = []string{"appDataFolder"}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, part := range [][]byte{metadataJSON, content} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/json")
		w, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("building multipart body: %w", err)
		}
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("building multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}

	method := http.MethodPost
	uploadURL := c.cfg.UploadBase + "/files?uploadType=multipart"
	if existingID != "" {
		method = http.MethodPatch
		uploadURL = c.cfg.UploadBase + "/files/" + url.PathEscape(existingID) + "?uploadType=multipart"
	}

	req, err := http.NewRequestWithContext(ctx, method, uploadURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading backup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("upload", resp)
	}
	return nil
}

// Delete removes the remote backup document. Deleting an already-absent file
// is not an error.
func (c *Client) Delete(ctx context.Context, token, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.cfg.APIBase+"/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting backup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return statusError("delete", resp)
	}
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%s failed (status %d): %s", op, resp.StatusCode, msg)
}

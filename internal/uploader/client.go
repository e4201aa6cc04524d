package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/calmwave/calmwave/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to the session pipeline API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

type UploadResult struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	ChunkCount   int64  `json:"chunk_count"`
	ArtifactPath string `json:"artifact_path,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func decodeError(resp *resty.Response) error {
	var ae apiError
	if err := json.Unmarshal(resp.Body(), &ae); err == nil && ae.Code != "" {
		return &ae
	}
	return fmt.Errorf("server returned %s", resp.Status())
}

// UploadChunk transfers one chunk. sessionID may be empty on the first
// chunk; the caller must adopt the id returned in the result.
func (c *Client) UploadChunk(ctx context.Context, sessionID string, seq int64, isFinal bool, data []byte) (*UploadResult, error) {
	var out UploadResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("audio", fmt.Sprintf("chunk_%06d", seq), bytes.NewReader(data)).
		SetFormData(map[string]string{
			"session_id":      sessionID,
			"sequence_number": strconv.FormatInt(seq, 10),
			"is_final":        strconv.FormatBool(isFinal),
		}).
		SetResult(&out).
		Post("/upload")
	if err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", seq, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &out, nil
}

type SessionList struct {
	Sessions []models.Session `json:"sessions"`
}

func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	var out SessionList
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/sessions")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return out.Sessions, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var out models.Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/sessions/" + sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &out, nil
}

// DownloadArtifact streams the processed audio into w.
func (c *Client) DownloadArtifact(ctx context.Context, sessionID string, w io.Writer) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/sessions/" + sessionID + "/audio")
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		b, _ := io.ReadAll(io.LimitReader(body, 4096))
		var ae apiError
		if jerr := json.Unmarshal(b, &ae); jerr == nil && ae.Code != "" {
			return &ae
		}
		return fmt.Errorf("server returned %s", resp.Status())
	}

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	return nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/sessions/" + sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

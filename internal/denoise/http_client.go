package denoise

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPEnhancer talks to the denoise microservice: multipart POST with the
// assembled audio, response body is the cleaned audio. A JSON body comes
// back instead when the service rejects the input.
type HTTPEnhancer struct {
	client *resty.Client
	url    string
}

type serviceError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewHTTPEnhancer(url string, timeout time.Duration) *HTTPEnhancer {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &HTTPEnhancer{client: c, url: url}
}

func (e *HTTPEnhancer) Enhance(ctx context.Context, sessionID string, audio []byte) ([]byte, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetFileReader("audio_file", fmt.Sprintf("session_%s.wav", sessionID), bytes.NewReader(audio)).
		SetQueryParams(map[string]string{
			"session_id": sessionID,
			"intensity":  "1.0",
		}).
		Post(e.url)
	if err != nil {
		return nil, fmt.Errorf("denoise request: %w", err)
	}

	if resp.IsError() {
		var se serviceError
		if jerr := json.Unmarshal(resp.Body(), &se); jerr == nil && se.Message != "" {
			return nil, fmt.Errorf("denoise service: %s (%s)", se.Message, resp.Status())
		}
		return nil, fmt.Errorf("denoise service: %s", resp.Status())
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("denoise service returned empty audio")
	}
	return body, nil
}

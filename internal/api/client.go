package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-localtube/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrInvalidResponse = errors.New("backend returned an invalid response")
	ErrDecode          = errors.New("unable to decode backend response")
	ErrNoStreams       = errors.New("no downloadable streams were available for this URL")
)

// Client talks to the resolve/metadata backend service.
type Client struct {
	BaseURL    string
	HttpClient *http.Client
}

// NewClient creates a new backend API client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		BaseURL:    baseURL,
		HttpClient: httpClient,
	}
}

// ResolveStreams asks the backend to resolve sourceURL into downloadable
// stream variants. An empty stream list is surfaced as ErrNoStreams.
// No retries are attempted; retry policy belongs to the caller.
func (c *Client) ResolveStreams(ctx context.Context, sourceURL string) ([]models.StreamOption, error) {
	var resp models.ResolveResponse
	if err := c.post(ctx, "/resolve", models.ResolveRequest{URL: sourceURL}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Streams) == 0 {
		log.WithField("url", sourceURL).Info("Backend resolved zero streams")
		return nil, ErrNoStreams
	}
	return resp.Streams, nil
}

// FetchMetadata asks the backend for title/thumbnail/duration of sourceURL.
func (c *Client) FetchMetadata(ctx context.Context, sourceURL string) (models.VideoMetadata, error) {
	var meta models.VideoMetadata
	if err := c.post(ctx, "/metadata", models.MetadataRequest{URL: sourceURL}, &meta); err != nil {
		return models.VideoMetadata{}, err
	}
	return meta, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling request for %s: %w", path, err)
	}

	reqURL := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request for %s: %w", reqURL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		log.WithError(err).Errorf("Error performing backend request to %s", reqURL)
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("Backend request to %s returned status %d", reqURL, resp.StatusCode)
		return fmt.Errorf("%w: received status %d from %s", ErrInvalidResponse, resp.StatusCode, reqURL)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response body: %v", ErrInvalidResponse, err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		log.WithError(err).Errorf("Error unmarshalling backend response from %s", reqURL)
		log.Debugf("Response body causing unmarshal error: %s", string(respBody))
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/google"
)

type HTTPContext interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues bearer-authenticated JSON requests against a Google REST API.
type Client struct {
	creds     *google.Credentials
	http      HTTPContext
	projectID string
	baseURL   string
}

func NewClient(httpClient HTTPContext, creds *google.Credentials, baseURL string) (*Client, error) {
	if creds == nil || creds.TokenSource == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBigQueryURL
	}

	return &Client{
		creds:     creds,
		http:      httpClient,
		projectID: strings.TrimSpace(creds.ProjectID),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (c *Client) ProjectID() string {
	return c.projectID
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ExecRequest(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	token, err := c.creds.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, ParseGCPError(res.StatusCode, responseBody)
	}
	return responseBody, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.ExecRequest(ctx, http.MethodGet, c.endpoint(path, query), nil)
}

func (c *Client) GetURL(ctx context.Context, fullURL string) ([]byte, error) {
	return c.ExecRequest(ctx, http.MethodGet, fullURL, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	return c.ExecRequest(ctx, http.MethodPost, c.endpoint(path, nil), bodyReader)
}

// GetJSON decodes a GET response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := c.Post(ctx, path, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

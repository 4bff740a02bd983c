package contexts

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// HTTPContext replays Responses in order and records every request it sees.
// It doubles as an http.RoundTripper so it can back an *http.Client.
type HTTPContext struct {
	Requests  []*http.Request
	Responses []*http.Response
}

func (c *HTTPContext) Do(request *http.Request) (*http.Response, error) {
	if request.Body != nil {
		body, err := io.ReadAll(request.Body)
		if err != nil {
			return nil, err
		}
		request.Body = io.NopCloser(bytes.NewReader(body))
	}

	c.Requests = append(c.Requests, request)
	if len(c.Responses) == 0 {
		return nil, fmt.Errorf("no response left for %s %s", request.Method, request.URL)
	}

	response := c.Responses[0]
	c.Responses = c.Responses[1:]
	if response.Body == nil {
		response.Body = io.NopCloser(bytes.NewReader(nil))
	}
	if response.Header == nil {
		response.Header = http.Header{}
	}
	response.Request = request
	return response, nil
}

func (c *HTTPContext) RoundTrip(request *http.Request) (*http.Response, error) {
	return c.Do(request)
}

func (c *HTTPContext) Client() *http.Client {
	return &http.Client{Transport: c}
}

func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

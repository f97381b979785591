package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mediascout/go-mediascout/apierror"
)

// maxBodySize limits how much of a provider response is read.
const maxBodySize = 8 << 20

// Call describes one HTTP request to a provider.
type Call struct {
	Method string
	URL    string
	Header http.Header
	// Body, if not nil, is encoded as JSON.
	Body any
	// Accept is the Accept header. Default is "application/json".
	Accept string
}

// Fetch performs call and returns the response body. A non-200 response
// results in an *apierror.Error carrying the status.
func (c *Client) Fetch(ctx context.Context, call Call) ([]byte, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return nil, err
	}
	for key, vals := range call.Header {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	accept := call.Accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apierror.FromResponse(resp.StatusCode, data)
	}
	return data, nil
}

// FetchJSON performs call and decodes the JSON response into v.
func (c *Client) FetchJSON(ctx context.Context, call Call, v any) error {
	data, err := c.Fetch(ctx, call)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed %s response: %w", c.name, err)
	}
	return nil
}

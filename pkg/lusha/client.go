// Package lusha wraps the Lusha prospecting API, the second source in the
// contact resolution chain.
package lusha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.lusha.com"

// Client searches for contacts by company domain and title.
type Client interface {
	SearchContacts(ctx context.Context, req ContactSearchRequest) ([]Contact, error)
}

// ContactSearchRequest filters prospecting results.
type ContactSearchRequest struct {
	Domain string   `json:"domain"`
	Titles []string `json:"job_titles,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// Contact is a single prospecting hit.
type Contact struct {
	ID          string `json:"contact_id"`
	Name        string `json:"full_name"`
	Title       string `json:"job_title"`
	LinkedInURL string `json:"linkedin_url"`
	Email       string `json:"email_address"`
	Phone       string `json:"phone_number"`
}

// APIError is returned when Lusha responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lusha: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Lusha client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchContacts(ctx context.Context, req ContactSearchRequest) ([]Contact, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "lusha: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prospecting/contact/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "lusha: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api_key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "lusha: send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "lusha: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "lusha: unmarshal response")
	}

	return out.Contacts, nil
}

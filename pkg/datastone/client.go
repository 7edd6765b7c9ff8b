// Package datastone wraps the DataStone person API, used to enrich registry
// partners found in a company's QSA with contact details and age bracket.
package datastone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.datastone.com.br/v1"

// Client looks up Brazilian individuals by name.
type Client interface {
	SearchPersonByName(ctx context.Context, name string) ([]Person, error)
}

// Person is a single person record.
type Person struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Age    int     `json:"age"`
	Emails []Email `json:"emails"`
	Phones []Phone `json:"phones"`
}

// Email holds one known address for a person.
type Email struct {
	Address string `json:"email"`
}

// Phone holds one known number for a person.
type Phone struct {
	Number string `json:"phone"`
	Type   string `json:"type"`
}

// APIError is returned when DataStone responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datastone: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
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

// NewClient creates a DataStone client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchPersonByName(ctx context.Context, name string) ([]Person, error) {
	u := c.baseURL + "/persons?name=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "datastone: create request")
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "datastone: send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "datastone: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out struct {
		Persons []Person `json:"persons"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "datastone: unmarshal response")
	}

	return out.Persons, nil
}

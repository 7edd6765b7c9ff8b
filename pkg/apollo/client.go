// Package apollo wraps the Apollo.io API, used both as a contact source when
// CrustData and Lusha fail, and as a fallback for company profile enrichment.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apollo.io/v1"

// Client exposes the Apollo operations used by the pipeline.
type Client interface {
	SearchPeople(ctx context.Context, req PeopleSearchRequest) ([]Person, error)
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
}

// PeopleSearchRequest is the body for POST /mixed_people/search.
type PeopleSearchRequest struct {
	Domains  []string `json:"q_organization_domains,omitempty"`
	Titles   []string `json:"person_titles,omitempty"`
	PageSize int      `json:"per_page,omitempty"`
}

// Person is a single people-search hit.
type Person struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	LinkedInURL string `json:"linkedin_url"`
	Email       string `json:"email"`
}

// Organization is the enrichment record for a company.
type Organization struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Domain        string `json:"primary_domain"`
	Industry      string `json:"industry"`
	EmployeeCount int    `json:"estimated_num_employees"`
	FoundedYear   int    `json:"founded_year"`
	LinkedInURL   string `json:"linkedin_url"`
	Description   string `json:"short_description"`
}

// APIError is returned when Apollo responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apollo: HTTP %d: %s", e.StatusCode, e.Body)
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

// NewClient creates an Apollo client.
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

func (c *httpClient) SearchPeople(ctx context.Context, req PeopleSearchRequest) ([]Person, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mixed_people/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	var out struct {
		People []Person `json:"people"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return nil, eris.Wrap(err, "apollo: search people")
	}
	return out.People, nil
}

func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	u := c.baseURL + "/organizations/enrich?domain=" + url.QueryEscape(domain)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create request")
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	var out struct {
		Organization *Organization `json:"organization"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return nil, eris.Wrapf(err, "apollo: enrich organization %s", domain)
	}
	return out.Organization, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}

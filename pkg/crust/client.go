// Package crust wraps the CrustData screener API, the first source tried in
// the contact resolution chain: company lookup by domain, then people search
// filtered by title against the resolved company ID.
package crust

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

const defaultBaseURL = "https://api.crustdata.com"

// Client exposes the CrustData screener operations.
type Client interface {
	CompanyByDomain(ctx context.Context, domain string) (*Company, error)
	SearchPeople(ctx context.Context, req PersonSearchRequest) ([]Person, error)
	DecisionMakers(ctx context.Context, companyID int64) ([]Person, error)
}

// Company is a screener company record.
type Company struct {
	ID            int64  `json:"company_id"`
	Name          string `json:"company_name"`
	Domain        string `json:"company_website_domain"`
	LinkedInURL   string `json:"linkedin_profile_url"`
	EmployeeCount int    `json:"headcount"`
	Industry      string `json:"industry"`
	FoundedYear   int    `json:"year_founded"`
	Description   string `json:"description"`
}

// PersonSearchRequest filters the people search by company and title.
type PersonSearchRequest struct {
	CompanyID int64    `json:"company_id"`
	Titles    []string `json:"titles,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// Person is a screener person record.
type Person struct {
	ID          string `json:"person_id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	LinkedInURL string `json:"linkedin_profile_url"`
	Email       string `json:"business_email"`
}

// APIError is returned when CrustData responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crust: HTTP %d: %s", e.StatusCode, e.Body)
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

// NewClient creates a CrustData client.
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

func (c *httpClient) CompanyByDomain(ctx context.Context, domain string) (*Company, error) {
	var out []Company
	if err := c.get(ctx, "/screener/company?company_domain="+domain, &out); err != nil {
		return nil, eris.Wrapf(err, "crust: company by domain %s", domain)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *httpClient) SearchPeople(ctx context.Context, req PersonSearchRequest) ([]Person, error) {
	var out struct {
		People []Person `json:"people"`
	}
	if err := c.post(ctx, "/screener/person/search", req, &out); err != nil {
		return nil, eris.Wrap(err, "crust: search people")
	}
	return out.People, nil
}

func (c *httpClient) DecisionMakers(ctx context.Context, companyID int64) ([]Person, error) {
	var out []Person
	path := fmt.Sprintf("/screener/company/%d/decision_makers", companyID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, eris.Wrapf(err, "crust: decision makers %d", companyID)
	}
	return out, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	return c.do(req, out)
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

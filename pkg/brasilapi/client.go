// Package brasilapi wraps the public BrasilAPI CNPJ endpoint, the primary
// source for Brazilian company registry records and their partner lists.
package brasilapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://brasilapi.com.br/api"

// Client looks up company registry records by CNPJ.
type Client interface {
	LookupCNPJ(ctx context.Context, cnpj string) (*CNPJResponse, error)
}

// CNPJResponse is the registry record for a company.
type CNPJResponse struct {
	CNPJ               string    `json:"cnpj"`
	RazaoSocial        string    `json:"razao_social"`
	NomeFantasia       string    `json:"nome_fantasia"`
	Porte              string    `json:"porte"`
	CNAEFiscal         int       `json:"cnae_fiscal"`
	CNAEDescricao      string    `json:"cnae_fiscal_descricao"`
	Municipio          string    `json:"municipio"`
	UF                 string    `json:"uf"`
	DDDTelefone1       string    `json:"ddd_telefone_1"`
	Email              string    `json:"email"`
	CapitalSocial      float64   `json:"capital_social"`
	DataInicioAtividade string   `json:"data_inicio_atividade"`
	QSA                []Partner `json:"qsa"`
}

// Partner is a member of the company's ownership board (QSA).
type Partner struct {
	Nome         string `json:"nome_socio"`
	Qualificacao string `json:"qualificacao_socio"`
	FaixaEtaria  string `json:"faixa_etaria"`
}

// ErrNotFound is returned when the CNPJ does not exist in the registry.
var ErrNotFound = eris.New("brasilapi: cnpj not found")

// APIError is returned when BrasilAPI responds with an unexpected status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brasilapi: HTTP %d: %s", e.StatusCode, e.Body)
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
	baseURL string
	http    *http.Client
}

// NewClient creates a BrasilAPI client. The API requires no credentials.
func NewClient(opts ...Option) Client {
	c := &httpClient{
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

func (c *httpClient) LookupCNPJ(ctx context.Context, cnpj string) (*CNPJResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cnpj/v1/"+cnpj, nil)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: read response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result CNPJResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "brasilapi: unmarshal response")
	}

	return &result, nil
}

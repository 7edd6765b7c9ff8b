package discovery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/caracol-labs/salesmachine/pkg/perplexity"
)

// Candidate is one company returned by the discovery search.
type Candidate struct {
	Name           string `json:"name"`
	Website        string `json:"website"`
	Sector         string `json:"sector"`
	Size           string `json:"size"`
	FitExplanation string `json:"fit_explanation"`
}

// Searcher turns a prospecting prompt into candidate companies.
type Searcher interface {
	Search(ctx context.Context, prompt string) ([]Candidate, error)
}

const systemInstruction = `Você é um assistente B2B focado em vendas.
Responda APENAS o JSON solicitado, no formato {"companies": [{"name", "website", "sector", "size", "fit_explanation"}]}.

REGRAS DE EXCLUSÃO (CRÍTICO):
1. ESTRITAMENTE PROIBIDO retornar: Hubs de inovação, Aceleradoras, Associações, Sindicatos, Ligas Acadêmicas, Universidades Públicas ou Portais de Notícias.
2. Quero apenas as EMPRESAS FINAIS (CNPJs) que vendem produtos/serviços.
3. Se a busca for por startups, ignore quem "apoia" startups e liste as startups em si.`

// PerplexitySearcher implements Searcher on the Perplexity chat API.
type PerplexitySearcher struct {
	client perplexity.Client
}

// NewPerplexitySearcher creates a PerplexitySearcher.
func NewPerplexitySearcher(client perplexity.Client) *PerplexitySearcher {
	return &PerplexitySearcher{client: client}
}

func (s *PerplexitySearcher) Search(ctx context.Context, prompt string) ([]Candidate, error) {
	temp := 0.2
	resp, err := s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: search")
	}

	return parseCandidates(resp.Content())
}

// parseCandidates extracts the companies array from the first JSON object
// embedded in the model output. Responses without a JSON object yield no
// candidates rather than an error.
func parseCandidates(content string) ([]Candidate, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, nil
	}

	var payload struct {
		Companies []Candidate `json:"companies"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "discovery: parse candidates")
	}
	return payload.Companies, nil
}

package brasilapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestLookupCNPJ(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cnpj/v1/12345678000190", r.URL.Path)
		w.Write([]byte(`{
			"cnpj": "12345678000190",
			"razao_social": "ESCOLA ALFA LTDA",
			"porte": "DEMAIS",
			"data_inicio_atividade": "1998-03-12",
			"qsa": [
				{"nome_socio": "MARIA SILVA", "qualificacao_socio": "Sócio-Administrador", "faixa_etaria": "41 a 50 anos"},
				{"nome_socio": "JOAO SOUZA", "qualificacao_socio": "Sócio", "faixa_etaria": "51 a 60 anos"}
			]
		}`))
	})

	rec, err := c.LookupCNPJ(context.Background(), "12345678000190")
	require.NoError(t, err)
	assert.Equal(t, "ESCOLA ALFA LTDA", rec.RazaoSocial)
	require.Len(t, rec.QSA, 2)
	assert.Equal(t, "MARIA SILVA", rec.QSA[0].Nome)
	assert.Equal(t, "Sócio-Administrador", rec.QSA[0].Qualificacao)
}

func TestLookupCNPJNotFound(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"CNPJ não encontrado"}`))
	})

	_, err := c.LookupCNPJ(context.Background(), "00000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupCNPJServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.LookupCNPJ(context.Background(), "12345678000190")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

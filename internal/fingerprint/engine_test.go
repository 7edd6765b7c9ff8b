package fingerprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/wappalyzer"
)

type fakeLookup struct {
	techs []wappalyzer.Technology
	err   error
}

func (f *fakeLookup) Lookup(ctx context.Context, url string) ([]wappalyzer.Technology, error) {
	return f.techs, f.err
}

func TestDetectSignatures(t *testing.T) {
	html := `<html><head>
		<script src="https://js.hs-scripts.com/123.js"></script>
		<link href="/wp-content/themes/x/style.css">
		<script src="https://cdn.shopify.com/app.js"></script>
	</head></html>`

	techs := detectSignatures(html)
	names := map[string]model.Technology{}
	for _, tech := range techs {
		names[tech.Name] = tech
	}

	require.Contains(t, names, "HubSpot")
	require.Contains(t, names, "WordPress")
	require.Contains(t, names, "Shopify")
	assert.Equal(t, 20, names["HubSpot"].Weight)
	assert.Equal(t, sourceSignature, names["HubSpot"].Source)
}

func TestDetectSignaturesCaseInsensitive(t *testing.T) {
	techs := detectSignatures(`<script SRC="https://JS.HS-SCRIPTS.COM/1.js">`)
	require.Len(t, techs, 1)
	assert.Equal(t, "HubSpot", techs[0].Name)
}

func TestScoreMonotonicAndCapped(t *testing.T) {
	var techs []model.Technology
	prev := 0
	for i := 0; i < 30; i++ {
		techs = append(techs, model.Technology{Name: "t", Weight: 10})
		score := scoreTechnologies(techs)
		assert.GreaterOrEqual(t, score, prev, "score never decreases as technologies are added")
		assert.LessOrEqual(t, score, 100)
		prev = score
	}
	assert.Equal(t, 100, prev)
}

func TestClassifyMaturity(t *testing.T) {
	tests := []struct {
		name  string
		techs []string
		want  model.StackMaturity
	}{
		{"modern majority", []string{"HubSpot", "Segment", "WordPress"}, model.MaturityModern},
		{"traditional on tie", []string{"HubSpot", "WordPress"}, model.MaturityTraditional},
		{"traditional only", []string{"WordPress", "Wix"}, model.MaturityTraditional},
		{"neither set", []string{"Stripe", "Calendly"}, model.MaturityUnknown},
		{"empty", nil, model.MaturityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var techs []model.Technology
			for _, n := range tt.techs {
				techs = append(techs, model.Technology{Name: n})
			}
			assert.Equal(t, tt.want, classifyMaturity(techs))
		})
	}
}

func TestMapDatabaseTechs(t *testing.T) {
	techs := mapDatabaseTechs([]wappalyzer.Technology{
		{Name: "Magento", Categories: []wappalyzer.Category{{Name: "Ecommerce"}}},
		{Name: "Nginx", Categories: []wappalyzer.Category{{Name: "Web servers"}}},
		{Name: "Mystery", Categories: []wappalyzer.Category{{Name: "Quantum"}}},
		{Name: "Bare", Categories: nil},
	})

	byName := map[string]model.Technology{}
	for _, tech := range techs {
		byName[tech.Name] = tech
	}

	assert.Equal(t, 10, byName["Magento"].Weight)
	assert.Equal(t, 1, byName["Nginx"].Weight)
	assert.Equal(t, 1, byName["Mystery"].Weight, "unmapped category defaults to 1")
	assert.Equal(t, "Outros", byName["Bare"].Category)
}

func TestExtractContactInfo(t *testing.T) {
	html := `
		<a href="mailto:contato@escola.com.br">fale conosco</a>
		<img src="logo@2x.png">
		<span>suporte@sentry.io</span>
		<a href="https://www.instagram.com/escolaalfa">insta</a>
		<a href="https://linkedin.com/company/escola-alfa">li</a>
	`
	emails, socials := extractContactInfo(html)

	assert.Equal(t, []string{"contato@escola.com.br"}, emails,
		"asset filenames and tracker domains are filtered out")
	assert.Contains(t, socials, "Instagram: https://www.instagram.com/escolaalfa")
	assert.Contains(t, socials, "LinkedIn: https://linkedin.com/company/escola-alfa")
}

func TestCompressRoundTrip(t *testing.T) {
	html := strings.Repeat("<div>conteúdo</div>", 100)
	blob := compressHTML(html)
	require.NotEmpty(t, blob)
	assert.Less(t, len(blob), len(html))

	back, err := DecompressHTML(blob)
	require.NoError(t, err)
	assert.Equal(t, html, back)
}

func TestAnalyzeHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`<html><script src="https://js.hs-scripts.com/1.js"></script>
				<a href="mailto:diretor@escola.com.br">x</a></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	engine := NewEngine(NewFetcher(FetcherOptions{}), &fakeLookup{
		techs: []wappalyzer.Technology{
			{Name: "Nginx", Categories: []wappalyzer.Category{{Name: "Web servers"}}},
			// collides with the signature table entry; the signature wins
			{Name: "HubSpot", Categories: []wappalyzer.Category{{Name: "CRM"}}},
		},
	})

	res, err := engine.Analyze(context.Background(), srv.URL)
	require.NoError(t, err)

	byName := map[string]model.Technology{}
	for _, tech := range res.Fingerprint.Technologies {
		byName[tech.Name] = tech
	}

	require.Contains(t, byName, "HubSpot")
	assert.Equal(t, sourceSignature, byName["HubSpot"].Source,
		"signature entry overwrites the database entry on name collision")
	assert.Contains(t, byName, "Nginx")
	assert.Equal(t, []string{"diretor@escola.com.br"}, res.Fingerprint.ScrapedEmails)
	assert.NotEmpty(t, res.CompressedHTML)
	assert.NotEmpty(t, res.Fingerprint.FinalURL)
}

func TestAnalyzeInaccessibleSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	engine := NewEngine(NewFetcher(FetcherOptions{}), nil)

	res, err := engine.Analyze(context.Background(), srv.URL)
	require.NoError(t, err, "fetch failure is not fatal")
	assert.Empty(t, res.Fingerprint.Technologies)
	assert.Equal(t, 0, res.Fingerprint.Score)
	assert.Equal(t, model.HostingInaccessible, res.Fingerprint.Hosting)
	assert.Equal(t, model.MaturityUnknown, res.Fingerprint.Maturity)
	assert.Empty(t, res.CompressedHTML)
}

func TestURLVariants(t *testing.T) {
	assert.Equal(t,
		[]string{"https://acme.com.br", "https://www.acme.com.br", "http://acme.com.br"},
		urlVariants("acme.com.br"))
	assert.Equal(t, []string{"https://acme.com.br/x"}, urlVariants("https://acme.com.br/x"))
}

func TestSummarize(t *testing.T) {
	techs := []model.Technology{
		{Name: "HubSpot", Category: "CRM/Marketing"},
		{Name: "Shopify", Category: "Ecommerce"},
		{Name: "WordPress", Category: "CMS"},
		{Name: "Hotjar", Category: "Analytics"},
		{Name: "Stripe", Category: "Pagamentos"},
	}
	s := summarize(techs)
	assert.Equal(t, []string{"HubSpot"}, s["marketing"])
	assert.Equal(t, []string{"Shopify"}, s["ecommerce"])
	assert.Equal(t, []string{"WordPress"}, s["cms"])
	assert.Equal(t, []string{"Hotjar"}, s["analytics"])
}

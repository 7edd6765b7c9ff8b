package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/resilience"
	"github.com/caracol-labs/salesmachine/internal/store"
	"github.com/caracol-labs/salesmachine/pkg/brasilapi"
	"github.com/caracol-labs/salesmachine/pkg/serper"
)

const maxRegistryOwners = 5

// taxIDPatterns match Brazilian CNPJ numbers in page markup or search
// snippets, formatted or bare.
var taxIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`),
	regexp.MustCompile(`(?i)cnpj\D{0,10}(\d{14})`),
}

var nonDigits = regexp.MustCompile(`\D`)

// RegistryResolver turns a lead's page content (or company name) into a
// company-registry record, caching raw registry payloads by tax ID.
type RegistryResolver struct {
	store    store.Store
	registry brasilapi.Client
	serp     serper.Client
	cacheTTL time.Duration
	breaker  *resilience.Breaker
}

// NewRegistryResolver creates a resolver. serp may be nil to disable the
// search fallback.
func NewRegistryResolver(st store.Store, registry brasilapi.Client, serp serper.Client, cacheTTL time.Duration) *RegistryResolver {
	if cacheTTL <= 0 {
		cacheTTL = 180 * 24 * time.Hour
	}
	return &RegistryResolver{
		store:    st,
		registry: registry,
		serp:     serp,
		cacheTTL: cacheTTL,
		breaker:  resilience.NewBreaker(resilience.BreakerConfig{}),
	}
}

// ExtractTaxID returns the first CNPJ found in the markup, digits only, or
// an empty string.
func ExtractTaxID(markup string) string {
	for _, pat := range taxIDPatterns {
		m := pat.FindStringSubmatch(markup)
		if m == nil {
			continue
		}
		candidate := m[len(m)-1]
		digits := nonDigits.ReplaceAllString(candidate, "")
		if len(digits) == 14 {
			return digits
		}
	}
	return ""
}

// Resolve finds the lead's tax ID (page markup first, then a SERP lookup by
// company name) and fetches its registry record. A lead with no resolvable
// tax ID yields (nil, nil).
func (r *RegistryResolver) Resolve(ctx context.Context, domain, companyName, markup string) (*model.RegistryRecord, error) {
	taxID := ExtractTaxID(markup)
	if taxID == "" && companyName != "" && r.serp != nil {
		taxID = r.lookupTaxID(ctx, companyName)
	}
	if taxID == "" {
		return nil, nil
	}

	resp, err := r.lookupRegistry(ctx, taxID)
	if err != nil {
		if eris.Is(err, brasilapi.ErrNotFound) {
			zap.L().Debug("tax id not in registry", zap.String("domain", domain), zap.String("tax_id", taxID))
			return nil, nil
		}
		return nil, err
	}
	return buildRegistryRecord(taxID, resp), nil
}

// lookupTaxID queries registry aggregator sites for the company's CNPJ.
func (r *RegistryResolver) lookupTaxID(ctx context.Context, companyName string) string {
	resp, err := r.serp.Search(ctx, serper.SearchRequest{
		Query:   fmt.Sprintf("%s CNPJ site:cnpj.info OR site:consultasocio.com", companyName),
		Country: "br",
		Num:     5,
	})
	if err != nil {
		zap.L().Warn("tax id search failed", zap.String("company", companyName), zap.Error(err))
		return ""
	}
	for _, res := range resp.Organic {
		if id := ExtractTaxID(res.Title + " " + res.Snippet); id != "" {
			return id
		}
	}
	return ""
}

// lookupRegistry fetches the raw registry payload, consulting the TTL cache
// first. Cache writes are best-effort.
func (r *RegistryResolver) lookupRegistry(ctx context.Context, taxID string) (*brasilapi.CNPJResponse, error) {
	if payload, err := r.store.GetRegistryCache(ctx, taxID); err != nil {
		zap.L().Warn("registry cache read failed", zap.String("tax_id", taxID), zap.Error(err))
	} else if payload != nil {
		var cached brasilapi.CNPJResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
		zap.L().Warn("registry cache entry unreadable", zap.String("tax_id", taxID))
	}

	resp, err := resilience.BreakVal(ctx, r.breaker, func(ctx context.Context) (*brasilapi.CNPJResponse, error) {
		return resilience.DoVal(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) (*brasilapi.CNPJResponse, error) {
			return r.registry.LookupCNPJ(ctx, taxID)
		})
	})
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(resp); err == nil {
		if err := r.store.SetRegistryCache(ctx, taxID, payload, r.cacheTTL); err != nil {
			zap.L().Warn("registry cache write failed", zap.String("tax_id", taxID), zap.Error(err))
		}
	}
	return resp, nil
}

// buildRegistryRecord maps the raw payload into the lead's registry record.
// Owners flagged as administrators come first; the list is capped.
func buildRegistryRecord(taxID string, resp *brasilapi.CNPJResponse) *model.RegistryRecord {
	rec := &model.RegistryRecord{
		TaxID:     taxID,
		LegalName: resp.RazaoSocial,
		TradeName: resp.NomeFantasia,
		SizeClass: sizeBucketFromPorte(resp.Porte),
		State:     resp.UF,
		Phone:     resp.DDDTelefone1,
		Email:     strings.ToLower(resp.Email),
	}
	if len(resp.DataInicioAtividade) >= 4 {
		if year, err := strconv.Atoi(resp.DataInicioAtividade[:4]); err == nil {
			rec.FoundedYear = year
		}
	}

	titler := cases.Title(language.BrazilianPortuguese)
	owners := make([]model.Owner, 0, len(resp.QSA))
	for _, p := range resp.QSA {
		owners = append(owners, model.Owner{
			Name:          titler.String(strings.ToLower(p.Nome)),
			Qualification: p.Qualificacao,
			AgeBracket:    p.FaixaEtaria,
			Administrator: strings.Contains(strings.ToLower(p.Qualificacao), "administrador"),
		})
	}
	sort.SliceStable(owners, func(i, j int) bool {
		return owners[i].Administrator && !owners[j].Administrator
	})
	if len(owners) > maxRegistryOwners {
		owners = owners[:maxRegistryOwners]
	}
	rec.Owners = owners
	return rec
}

// sizeBucketFromPorte maps the registry's porte field to a size bucket.
func sizeBucketFromPorte(porte string) string {
	if porte == "" {
		return ""
	}
	// "DEMAIS" contains "MEI", so MEI must match as a whole word.
	upper := strings.ToUpper(strings.TrimSpace(porte))
	if upper == "MEI" || strings.Contains(upper, "MICRO") || strings.Contains(upper, "PEQUENO") {
		return "pme"
	}
	return "enterprise"
}

// Package fingerprint detects the technology stack of a company's website by
// combining a local signature table with a third-party fingerprint database,
// and derives an aggregate score plus a coarse maturity label.
package fingerprint

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/wappalyzer"
)

const (
	sourceSignature = "signature"
	sourceDatabase  = "wappalyzer"

	maxScore         = 100
	maxScrapedEmails = 5
)

// Engine runs the full fingerprint pass for one domain.
type Engine struct {
	fetcher *Fetcher
	lookup  wappalyzer.Client
}

// Result is the complete outcome of a fingerprint pass, including artifacts
// forwarded downstream that are not part of the persisted fingerprint.
type Result struct {
	Fingerprint    model.Fingerprint
	CompressedHTML string
}

// NewEngine creates an Engine. The lookup client may be nil, in which case
// only the signature detector runs.
func NewEngine(fetcher *Fetcher, lookup wappalyzer.Client) *Engine {
	return &Engine{fetcher: fetcher, lookup: lookup}
}

// Analyze fetches the domain and produces its fingerprint. Total fetch
// failure is not an error: the result carries an inaccessible hosting marker
// and an empty technology set so the lead can still advance.
func (e *Engine) Analyze(ctx context.Context, domain string) (*Result, error) {
	fetched, err := e.fetcher.Fetch(ctx, domain)
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		zap.L().Warn("site inaccessible on all url variants", zap.String("domain", domain))
		return &Result{
			Fingerprint: model.Fingerprint{
				Technologies: []model.Technology{},
				Hosting:      model.HostingInaccessible,
				Maturity:     model.MaturityUnknown,
				AnalyzedAt:   time.Now().UTC(),
			},
		}, nil
	}

	extra := e.fetcher.FetchExtraPages(ctx, fetched.FinalURL)
	fullHTML := fetched.HTML + extra

	// Database lookup first, signature matches overwrite name collisions.
	merged := map[string]model.Technology{}
	if e.lookup != nil {
		dbTechs, err := e.lookup.Lookup(ctx, fetched.FinalURL)
		if err != nil {
			zap.L().Warn("fingerprint database lookup failed",
				zap.String("domain", domain), zap.Error(err))
		}
		for _, t := range mapDatabaseTechs(dbTechs) {
			merged[t.Name] = t
		}
	}
	for _, t := range detectSignatures(fetched.HTML) {
		merged[t.Name] = t
	}

	techs := make([]model.Technology, 0, len(merged))
	for _, t := range merged {
		techs = append(techs, t)
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i].Name < techs[j].Name })

	emails, socials := extractContactInfo(fullHTML)

	fp := model.Fingerprint{
		Technologies:   techs,
		Score:          scoreTechnologies(techs),
		Maturity:       classifyMaturity(techs),
		Hosting:        detectHosting(fetched.HTML),
		Summary:        summarize(techs),
		ScrapedEmails:  emails,
		ScrapedSocials: socials,
		AnalyzedAt:     time.Now().UTC(),
		FinalURL:       fetched.FinalURL,
	}

	return &Result{
		Fingerprint:    fp,
		CompressedHTML: compressHTML(fullHTML),
	}, nil
}

// detectSignatures runs the signature table against lowercased markup. The
// first matching pattern claims a technology; each name is recorded once.
func detectSignatures(html string) []model.Technology {
	if html == "" {
		return nil
	}
	lower := strings.ToLower(html)

	var out []model.Technology
	for name, s := range signatureTable {
		for _, p := range s.patterns {
			if p.MatchString(lower) {
				out = append(out, model.Technology{
					Name:     name,
					Category: s.category,
					Weight:   s.weight,
					Source:   sourceSignature,
				})
				break
			}
		}
	}
	return out
}

// mapDatabaseTechs converts database lookup results, choosing the highest
// weight among a technology's categories. Unmapped categories contribute 1.
func mapDatabaseTechs(techs []wappalyzer.Technology) []model.Technology {
	out := make([]model.Technology, 0, len(techs))
	for _, t := range techs {
		category := "Outros"
		if len(t.Categories) > 0 {
			category = t.Categories[0].Name
		}

		weight := 1
		for _, c := range t.Categories {
			if w, ok := categoryWeights[strings.ToLower(c.Name)]; ok && w > weight {
				weight = w
			}
		}

		out = append(out, model.Technology{
			Name:     t.Name,
			Category: category,
			Weight:   weight,
			Source:   sourceDatabase,
		})
	}
	return out
}

// scoreTechnologies sums technology weights, capped at 100.
func scoreTechnologies(techs []model.Technology) int {
	total := 0
	for _, t := range techs {
		total += t.Weight
	}
	if total > maxScore {
		return maxScore
	}
	return total
}

// classifyMaturity applies the majority rule over the modern and traditional
// signal sets.
func classifyMaturity(techs []model.Technology) model.StackMaturity {
	modern, traditional := 0, 0
	for _, t := range techs {
		if modernStackSignals[t.Name] {
			modern++
		}
		if traditionalStackSignals[t.Name] {
			traditional++
		}
	}
	switch {
	case modern > traditional:
		return model.MaturityModern
	case traditional > 0:
		return model.MaturityTraditional
	default:
		return model.MaturityUnknown
	}
}

// detectHosting sniffs well-known provider fingerprints from the markup.
func detectHosting(html string) string {
	lower := strings.ToLower(html)
	for _, h := range []struct {
		needle string
		label  string
	}{
		{"amazonaws", "AWS (Amazon)"},
		{"googleapis", "Google Cloud"},
		{"azure", "Microsoft Azure"},
		{"cloudflare", "Cloudflare"},
		{"akamai", "Akamai (Enterprise)"},
		{"locaweb", "Locaweb"},
		{"hostgator", "Hostgator"},
		{"vercel", "Vercel"},
		{"netlify", "Netlify"},
	} {
		if strings.Contains(lower, h.needle) {
			return h.label
		}
	}
	return "unidentified"
}

// summarize groups detected names into the preview buckets.
func summarize(techs []model.Technology) map[string][]string {
	out := map[string][]string{}
	for bucket, cats := range summaryBuckets {
		for _, t := range techs {
			lower := strings.ToLower(t.Category)
			for _, c := range cats {
				if lower == c {
					out[bucket] = append(out[bucket], t.Name)
					break
				}
			}
		}
		sort.Strings(out[bucket])
	}
	return out
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	socialPatterns = []struct {
		network string
		re      *regexp.Regexp
	}{
		{"Instagram", regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[a-zA-Z0-9_.-]+`)},
		{"LinkedIn", regexp.MustCompile(`https?://(?:www\.)?linkedin\.com/(?:company|in)/[a-zA-Z0-9_.-]+`)},
		{"Facebook", regexp.MustCompile(`https?://(?:www\.)?facebook\.com/[a-zA-Z0-9_.-]+`)},
		{"WhatsApp", regexp.MustCompile(`https?://(?:api\.whatsapp\.com/send|wa\.me)/\d+`)},
	}

	ignoredEmailSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".js", ".css", ".svg", ".webp"}
	ignoredEmailDomains  = []string{"sentry.io", "wix.com", "example.com", "domain.com"}
)

// extractContactInfo scrapes emails and social profile links from raw markup.
// Asset filenames that look like addresses and tracker domains are filtered.
func extractContactInfo(html string) (emails, socials []string) {
	if html == "" {
		return nil, nil
	}

	seen := map[string]bool{}
	for _, m := range emailPattern.FindAllString(html, -1) {
		lower := strings.ToLower(m)
		if seen[lower] {
			continue
		}
		seen[lower] = true

		skip := false
		for _, suffix := range ignoredEmailSuffixes {
			if strings.HasSuffix(lower, suffix) {
				skip = true
				break
			}
		}
		for _, d := range ignoredEmailDomains {
			if strings.Contains(lower, d) {
				skip = true
				break
			}
		}
		if !skip {
			emails = append(emails, m)
		}
	}
	sort.Strings(emails)
	if len(emails) > maxScrapedEmails {
		emails = emails[:maxScrapedEmails]
	}

	for _, sp := range socialPatterns {
		if m := sp.re.FindString(html); m != "" {
			socials = append(socials, sp.network+": "+m)
		}
	}
	return emails, socials
}

// compressHTML zlib-compresses and base64-encodes the markup so downstream
// stages can reuse the page without a second fetch.
func compressHTML(html string) string {
	if html == "" {
		return ""
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return ""
	}
	if _, err := w.Write([]byte(html)); err != nil {
		return ""
	}
	if err := w.Close(); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecompressHTML reverses compressHTML. Used by downstream consumers of the
// page blob.
func DecompressHTML(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", err
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return "", err
	}
	return out.String(), nil
}

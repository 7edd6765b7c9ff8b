package fingerprint

import "regexp"

// signal is one entry of the signature table: the first matching pattern
// claims the technology, remaining patterns are skipped.
type signal struct {
	patterns []*regexp.Regexp
	category string
	weight   int
}

func sig(category string, weight int, patterns ...string) signal {
	s := signal{category: category, weight: weight}
	for _, p := range patterns {
		s.patterns = append(s.patterns, regexp.MustCompile(p))
	}
	return s
}

// signatureTable maps technology names to markup signatures. Matching runs
// against lowercased markup, so patterns are written lowercase. Entries here
// are authoritative: on a name collision they overwrite database lookups.
var signatureTable = map[string]signal{
	"RD Station":             sig("Marketing", 10, `d335luupugsy2\.cloudfront\.net`, `rdstation\.com\.br`, `rd_station`),
	"HubSpot":                sig("CRM/Marketing", 20, `js\.hs-scripts\.com`, `js\.hs-analytics\.net`, `hubspot\.com`),
	"Salesforce":             sig("CRM Enterprise", 30, `force\.com`, `salesforce\.com`),
	"VTEX":                   sig("Ecommerce", 25, `vteximg\.com\.br`, `vtex\.com`, `io\.vtex\.com`),
	"Shopify":                sig("Ecommerce", 15, `cdn\.shopify\.com`, `shopify\.com`),
	"Nuvemshop":              sig("Ecommerce", 10, `nuvemshop\.com\.br`, `lojanuvem\.com`),
	"Hotmart":                sig("Infoproduto", 10, `hotmart\.com`, `laucher\.hotmart`),
	"WordPress":              sig("CMS", 5, `wp-content`, `wp-includes`),
	"WooCommerce":            sig("Ecommerce", 5, `woocommerce`),
	"Wix":                    sig("CMS Básico", 1, `wix\.com`, `wix-waypoint`),
	"Google Analytics 4":     sig("Analytics", 5, `googletagmanager\.com/gtag/js`, `g-([a-z0-9]+)`),
	"Google Tag Manager":     sig("Analytics", 5, `googletagmanager\.com/gtm\.js`),
	"Meta Pixel":             sig("Ads", 5, `connect\.facebook\.net/en_us/fbevents\.js`, `fbq\('init'`),
	"JivoChat":               sig("Chat", 5, `code\.jivosite\.com`),
	"Zendesk":                sig("Suporte", 15, `zdassets\.com`, `zendesk\.com`),
	"Adobe Experience Cloud": sig("Enterprise Marketing", 25, `assets\.adobedtm\.com`, `adobe\.com`),
	"Oracle Commerce":        sig("Enterprise Ecommerce", 25, `oracle\.com`, `atg\.com`),
	"Intercom":               sig("Suporte", 15, `intercom\.io`, `widget\.intercom\.io`),
	"Drift":                  sig("Chat", 10, `js\.driftt\.com`, `drift\.com`),
	"Pipedrive":              sig("CRM", 15, `pipedrive\.com`),
	"Mailchimp":              sig("Marketing", 8, `mailchimp\.com`, `list-manage\.com`),
	"ActiveCampaign":         sig("Marketing", 12, `activehosted\.com`, `activecampaign\.com`),
	"Segment":                sig("Analytics", 15, `segment\.com`, `segment\.io`),
	"Mixpanel":               sig("Analytics", 12, `mixpanel\.com`),
	"Hotjar":                 sig("Analytics", 8, `hotjar\.com`, `static\.hotjar\.com`),
	"Clarity":                sig("Analytics", 5, `clarity\.ms`),
	"Tawk.to":                sig("Chat", 5, `tawk\.to`, `embed\.tawk\.to`),
	"Crisp":                  sig("Chat", 8, `crisp\.chat`, `client\.crisp\.chat`),
	"Freshdesk":              sig("Suporte", 12, `freshdesk\.com`, `freshworks\.com`),
	"Zoho":                   sig("CRM", 10, `zoho\.com`, `zohocdn\.com`),
	"Calendly":               sig("Agendamento", 8, `calendly\.com`, `assets\.calendly\.com`),
	"Typeform":               sig("Formulários", 8, `typeform\.com`),
	"Stripe":                 sig("Pagamentos", 15, `js\.stripe\.com`, `stripe\.com`),
	"PagSeguro":              sig("Pagamentos", 10, `pagseguro\.uol\.com\.br`, `stc\.pagseguro`),
	"MercadoPago":            sig("Pagamentos", 10, `mercadopago\.com`, `secure\.mlstatic\.com`),
	"Cloudflare":             sig("CDN", 3, `cdnjs\.cloudflare\.com`, `cloudflare\.com`),
	"React":                  sig("Framework", 5, `react\.js`, `react-dom`, `__react`),
	"Vue.js":                 sig("Framework", 5, `vue\.js`, `vuejs\.org`, `__vue`),
	"Angular":                sig("Framework", 5, `angular\.js`, `angular\.io`, `ng-`),
	"Next.js":                sig("Framework", 8, `_next/static`, `__next_data__`),
	"Nuxt":                   sig("Framework", 8, `_nuxt/`, `__nuxt__`),
	"Laravel":                sig("Backend", 5, `laravel`, `csrf-token`),
	"Django":                 sig("Backend", 5, `csrfmiddlewaretoken`, `django`),
}

// modernStackSignals and traditionalStackSignals drive the maturity majority
// rule: modern wins on strict majority, traditional wins when present at all
// otherwise, anything else is unknown.
var modernStackSignals = map[string]bool{
	"HubSpot": true, "Salesforce": true, "Segment": true, "Mixpanel": true,
	"Intercom": true, "Drift": true, "ActiveCampaign": true, "Pipedrive": true,
	"VTEX": true, "Shopify": true, "Adobe Experience Cloud": true,
	"Zendesk": true, "Google Tag Manager": true, "Hotjar": true,
	"Next.js": true, "Nuxt": true, "React": true, "Vue.js": true,
}

var traditionalStackSignals = map[string]bool{
	"WordPress": true, "WooCommerce": true, "Wix": true,
	"Nuvemshop": true, "JivoChat": true, "Mailchimp": true,
}

// categoryWeights maps fingerprint-database categories (lowercased) to score
// contributions. Unmapped categories contribute 1.
var categoryWeights = map[string]int{
	"ecommerce":             10,
	"crm":                   20,
	"marketing automation":  15,
	"analytics":             5,
	"advertising":           5,
	"cms":                   5,
	"web servers":           1,
	"programming languages": 2,
	"javascript frameworks": 3,
	"web frameworks":        3,
	"databases":             5,
	"caching":               3,
	"paas":                  5,
	"hosting":               3,
	"cdn":                   3,
	"tag managers":          5,
	"live chat":             5,
	"widgets":               3,
	"email":                 5,
	"marketing":             8,
	"payment processors":    10,
	"security":              3,
}

// summaryBuckets groups technology categories (lowercased) for the preview
// summary shown to the operator.
var summaryBuckets = map[string][]string{
	"marketing": {"marketing", "crm", "ads", "marketing automation", "enterprise marketing", "crm/marketing"},
	"ecommerce": {"ecommerce", "enterprise ecommerce"},
	"cms":       {"cms", "cms básico"},
	"analytics": {"analytics", "tag managers"},
}

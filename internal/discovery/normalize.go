package discovery

import "strings"

// defaultBlacklist lists substrings of domains that never identify an actual
// company site: social networks, shorteners, review portals, and the
// non-profit suffix.
var defaultBlacklist = []string{
	"instagram.com", "facebook.com", "linkedin.com", "youtube.com",
	"twitter.com", "google.com", "linktr.ee", "whatsapp.com",
	"t.me", "goo.gl", "bit.ly", "reclameaqui.com.br", "glassdoor.com",
	".org",
}

// NormalizeDomain reduces a site reference to a bare domain: protocol, www
// prefix, path, and surrounding whitespace are stripped, and the result is
// lowercased. Returns "" for references that cannot identify a company site
// (empty, contains a space, no dot, shorter than 4 characters).
// Normalization is idempotent.
func NormalizeDomain(raw string) string {
	clean := strings.ToLower(strings.TrimSpace(raw))
	clean = strings.TrimPrefix(clean, "https://")
	clean = strings.TrimPrefix(clean, "http://")
	clean = strings.TrimPrefix(clean, "www.")
	if i := strings.Index(clean, "/"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)

	if clean == "" || strings.Contains(clean, " ") || !strings.Contains(clean, ".") || len(clean) < 4 {
		return ""
	}
	return clean
}

// Blacklist answers whether a normalized domain matches a blocked pattern.
type Blacklist []string

// NewBlacklist combines the default entries with extra configured patterns.
func NewBlacklist(extra []string) Blacklist {
	out := make(Blacklist, 0, len(defaultBlacklist)+len(extra))
	out = append(out, defaultBlacklist...)
	out = append(out, extra...)
	return out
}

// Blocked reports whether the domain contains any blacklisted pattern.
func (b Blacklist) Blocked(domain string) bool {
	for _, entry := range b {
		if strings.Contains(domain, entry) {
			return true
		}
	}
	return false
}

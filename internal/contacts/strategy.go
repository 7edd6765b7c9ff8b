// Package contacts resolves human contacts for an approved lead by walking
// an ordered chain of provider strategies until enough unique people are
// found.
package contacts

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/caracol-labs/salesmachine/internal/model"
)

// Company is the resolved identity handed to each strategy.
type Company struct {
	Domain      string
	DirectoryID int64
	Name        string
	State       string
	Owners      []model.Owner
}

// Strategy is one named method of finding people at a company. A strategy
// must swallow its own provider errors and return what it has; failure of
// one strategy never aborts the chain.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, company Company) ([]model.Contact, error)
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// nameKey reduces a person's display name to a "first last" identity key:
// lowercased, accents stripped, middle names dropped. Single-word names are
// used as-is.
func nameKey(name string) string {
	folded, _, err := transform.String(stripAccents, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(name))
	}
	parts := strings.Fields(folded)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + " " + parts[len(parts)-1]
	}
}

// identityKey derives the dedup key for a contact: the external identifier
// when present, otherwise the normalized name key.
func identityKey(c model.Contact) string {
	if c.ExternalID != "" {
		return c.ExternalID
	}
	if c.LinkedInURL != "" {
		return c.LinkedInURL
	}
	return nameKey(c.Name)
}

package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/apollo"
	"github.com/caracol-labs/salesmachine/pkg/crust"
)

// Score weights for the preview's preliminary score and the post-enrichment
// final score.
const (
	directoryProfileBonus = 20
	noProfileBonus        = 10
	registryBonus         = 10
	perContactBonus       = 10
	scoreCap              = 100
	smallCompanyHeadcount = 25
)

// ProfileResolver fills the lead's company profile from the directory, with
// an organization-enrichment fallback.
type ProfileResolver struct {
	directory crust.Client
	fallback  apollo.Client
}

// NewProfileResolver creates a resolver. Either client may be nil.
func NewProfileResolver(directory crust.Client, fallback apollo.Client) *ProfileResolver {
	return &ProfileResolver{directory: directory, fallback: fallback}
}

// Resolve returns the best available profile for a domain and whether it
// came from the directory. Provider failures degrade to (nil, false).
func (r *ProfileResolver) Resolve(ctx context.Context, domain string) (*model.CompanyProfile, bool) {
	if r.directory != nil {
		company, err := r.directory.CompanyByDomain(ctx, domain)
		if err != nil {
			zap.L().Warn("directory profile lookup failed", zap.String("domain", domain), zap.Error(err))
		} else if company != nil {
			return &model.CompanyProfile{
				Name:          company.Name,
				DirectoryID:   strconv.FormatInt(company.ID, 10),
				SizeBucket:    sizeBucketFromHeadcount(company.EmployeeCount),
				EmployeeRange: headcountRange(company.EmployeeCount),
				Description:   company.Description,
				LinkedInURL:   company.LinkedInURL,
			}, true
		}
	}

	if r.fallback != nil {
		org, err := r.fallback.EnrichOrganization(ctx, domain)
		if err != nil {
			zap.L().Warn("organization enrichment failed", zap.String("domain", domain), zap.Error(err))
		} else if org != nil {
			return &model.CompanyProfile{
				Name:          org.Name,
				SizeBucket:    sizeBucketFromHeadcount(org.EmployeeCount),
				EmployeeRange: headcountRange(org.EmployeeCount),
				Description:   org.Description,
				LinkedInURL:   org.LinkedInURL,
			}, false
		}
	}
	return nil, false
}

func sizeBucketFromHeadcount(n int) string {
	switch {
	case n <= 0:
		return ""
	case n < smallCompanyHeadcount:
		return "pme"
	default:
		return "enterprise"
	}
}

func headcountRange(n int) string {
	switch {
	case n <= 0:
		return ""
	case n < 10:
		return "1-9"
	case n < 50:
		return "10-49"
	case n < 200:
		return "50-199"
	case n < 1000:
		return "200-999"
	default:
		return "1000+"
	}
}

// preliminaryScore combines the fingerprint score with profile and registry
// presence bonuses.
func preliminaryScore(techScore int, hasDirectoryProfile, hasRegistry bool) int {
	score := techScore / 2
	if hasDirectoryProfile {
		score += directoryProfileBonus
	} else {
		score += noProfileBonus
	}
	if hasRegistry {
		score += registryBonus
	}
	if score > scoreCap {
		score = scoreCap
	}
	return score
}

// finalScore adds a per-contact bonus to the preliminary score.
func finalScore(preliminary, contactCount int) int {
	score := preliminary + contactCount*perContactBonus
	if score > scoreCap {
		score = scoreCap
	}
	return score
}

const maxPreviewTechs = 8

// previewText renders the operator-facing decision preview.
func previewText(lead *model.Lead, companyName string) string {
	var b strings.Builder
	b.WriteString("🎯 NOVO LEAD QUALIFICADO\n")
	if companyName != "" {
		fmt.Fprintf(&b, "🏢 %s\n", companyName)
	}
	fmt.Fprintf(&b, "🌐 %s\n", lead.Domain)
	fmt.Fprintf(&b, "📊 Score preliminar: %d/100\n", lead.PreliminaryScore)

	if fp := lead.Fingerprint; fp != nil {
		if fp.Hosting == model.HostingInaccessible {
			b.WriteString("⚠️ Site inacessível, análise de stack indisponível\n")
		} else if len(fp.Technologies) > 0 {
			names := make([]string, 0, maxPreviewTechs)
			for _, t := range fp.Technologies {
				if len(names) == maxPreviewTechs {
					break
				}
				names = append(names, t.Name)
			}
			fmt.Fprintf(&b, "🛠 Stack (%s): %s\n", fp.Maturity, strings.Join(names, ", "))
		}
		if len(fp.ScrapedEmails) > 0 {
			fmt.Fprintf(&b, "📧 Emails no site: %s\n", strings.Join(fp.ScrapedEmails, ", "))
		}
	}

	if reg := lead.Registry; reg != nil {
		fmt.Fprintf(&b, "🏛 Registro: %s", reg.LegalName)
		if reg.State != "" {
			fmt.Fprintf(&b, " (%s)", reg.State)
		}
		if reg.SizeClass != "" {
			fmt.Fprintf(&b, " | %s", reg.SizeClass)
		}
		b.WriteString("\n")
		if len(reg.Owners) > 0 {
			names := make([]string, 0, len(reg.Owners))
			for _, o := range reg.Owners {
				names = append(names, o.Name)
			}
			fmt.Fprintf(&b, "👥 Sócios: %s\n", strings.Join(names, ", "))
		}
	}

	b.WriteString("\nEnriquecer contatos deste lead?")
	return b.String()
}

// companyDisplayName picks the best known name for a lead.
func companyDisplayName(lead *model.Lead) string {
	if lead.CompanyProfile != nil && lead.CompanyProfile.Name != "" {
		return lead.CompanyProfile.Name
	}
	if lead.Registry != nil {
		if lead.Registry.TradeName != "" {
			return lead.Registry.TradeName
		}
		if lead.Registry.LegalName != "" {
			return lead.Registry.LegalName
		}
	}
	return ""
}

package contacts

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/apollo"
	"github.com/caracol-labs/salesmachine/pkg/crust"
	"github.com/caracol-labs/salesmachine/pkg/datastone"
	"github.com/caracol-labs/salesmachine/pkg/lusha"
	"github.com/caracol-labs/salesmachine/pkg/serper"
)

const searchLimit = 5

// DirectoryDecisionMakers queries the directory's decision-makers endpoint
// by internal company ID. Skipped when the ID is unknown.
type DirectoryDecisionMakers struct {
	Client crust.Client
}

func (s *DirectoryDecisionMakers) Name() string { return "directory-decision-makers" }

func (s *DirectoryDecisionMakers) Resolve(ctx context.Context, company Company) ([]model.Contact, error) {
	if s.Client == nil || company.DirectoryID == 0 {
		return nil, nil
	}
	people, err := s.Client.DecisionMakers(ctx, company.DirectoryID)
	if err != nil {
		return nil, err
	}
	return crustContacts(people), nil
}

// DirectoryTitleSearch queries the directory's title-filtered people search.
// With a nil title set it degrades to an unfiltered search.
type DirectoryTitleSearch struct {
	Client crust.Client
	Label  string
	Titles []string
}

func (s *DirectoryTitleSearch) Name() string { return s.Label }

func (s *DirectoryTitleSearch) Resolve(ctx context.Context, company Company) ([]model.Contact, error) {
	if s.Client == nil || company.DirectoryID == 0 {
		return nil, nil
	}
	people, err := s.Client.SearchPeople(ctx, crust.PersonSearchRequest{
		CompanyID: company.DirectoryID,
		Titles:    s.Titles,
		Limit:     searchLimit,
	})
	if err != nil {
		return nil, err
	}
	return crustContacts(people), nil
}

func crustContacts(people []crust.Person) []model.Contact {
	out := make([]model.Contact, 0, len(people))
	for _, p := range people {
		if p.Name == "" {
			continue
		}
		out = append(out, model.Contact{
			ExternalID:  p.ID,
			Name:        p.Name,
			Title:       p.Title,
			LinkedInURL: p.LinkedInURL,
			Email:       p.Email,
		})
	}
	return out
}

// LushaSearch is the first fallback provider, queried with a title filter.
type LushaSearch struct {
	Client lusha.Client
	Titles []string
}

func (s *LushaSearch) Name() string { return "lusha" }

func (s *LushaSearch) Resolve(ctx context.Context, company Company) ([]model.Contact, error) {
	if s.Client == nil {
		return nil, nil
	}
	found, err := s.Client.SearchContacts(ctx, lusha.ContactSearchRequest{
		Domain: company.Domain,
		Titles: s.Titles,
		Limit:  searchLimit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Contact, 0, len(found))
	for _, c := range found {
		if c.Name == "" {
			continue
		}
		out = append(out, model.Contact{
			ExternalID:  c.ID,
			Name:        c.Name,
			Title:       c.Title,
			LinkedInURL: c.LinkedInURL,
			Email:       c.Email,
			Phone:       c.Phone,
		})
	}
	return out, nil
}

// ApolloSearch is the second fallback provider, queried with a title filter.
type ApolloSearch struct {
	Client apollo.Client
	Titles []string
}

func (s *ApolloSearch) Name() string { return "apollo" }

func (s *ApolloSearch) Resolve(ctx context.Context, company Company) ([]model.Contact, error) {
	if s.Client == nil {
		return nil, nil
	}
	people, err := s.Client.SearchPeople(ctx, apollo.PeopleSearchRequest{
		Domains:  []string{company.Domain},
		Titles:   s.Titles,
		PageSize: searchLimit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Contact, 0, len(people))
	for _, p := range people {
		if p.Name == "" {
			continue
		}
		out = append(out, model.Contact{
			ExternalID:  p.ID,
			Name:        p.Name,
			Title:       p.Title,
			LinkedInURL: p.LinkedInURL,
			Email:       p.Email,
		})
	}
	return out, nil
}

// RegistryOwners turns the company's registry partners into contacts,
// administrators first, enriching each by name through the person provider
// and locating LinkedIn profiles with a rate-limited SERP lookup.
type RegistryOwners struct {
	Persons datastone.Client
	Serp    serper.Client
	// Limiter bounds SERP lookups per resolution run.
	Limiter *rate.Limiter
}

func (s *RegistryOwners) Name() string { return "registry-owners" }

func (s *RegistryOwners) Resolve(ctx context.Context, company Company) ([]model.Contact, error) {
	if len(company.Owners) == 0 {
		return nil, nil
	}

	// administrators first, original QSA order otherwise
	owners := make([]model.Owner, 0, len(company.Owners))
	for _, o := range company.Owners {
		if o.Administrator {
			owners = append(owners, o)
		}
	}
	for _, o := range company.Owners {
		if !o.Administrator {
			owners = append(owners, o)
		}
	}

	var out []model.Contact
	for _, owner := range owners {
		if owner.Name == "" {
			continue
		}
		contact := model.Contact{
			Name:       owner.Name,
			Title:      owner.Qualification,
			AgeBracket: owner.AgeBracket,
			Source:     "registry-owners",
		}
		if contact.Title == "" {
			contact.Title = "Sócio"
		}

		if s.Persons != nil {
			if email, phone := s.lookupPerson(ctx, owner.Name); email != "" || phone != "" {
				contact.Email = email
				contact.Phone = phone
				contact.Source = "registry-owners+persons"
			}
		}
		if s.Serp != nil && (s.Limiter == nil || s.Limiter.Allow()) {
			contact.LinkedInURL = s.lookupLinkedIn(ctx, owner.Name, company.Name)
		}
		out = append(out, contact)
	}
	return out, nil
}

func (s *RegistryOwners) lookupPerson(ctx context.Context, name string) (email, phone string) {
	persons, err := s.Persons.SearchPersonByName(ctx, strings.ToUpper(name))
	if err != nil {
		zap.L().Debug("person enrichment failed", zap.String("name", name), zap.Error(err))
		return "", ""
	}
	if len(persons) == 0 {
		return "", ""
	}
	p := persons[0]
	if len(p.Emails) > 0 {
		email = p.Emails[0].Address
	}
	if len(p.Phones) > 0 {
		phone = p.Phones[0].Number
	}
	return email, phone
}

func (s *RegistryOwners) lookupLinkedIn(ctx context.Context, name, companyName string) string {
	resp, err := s.Serp.Search(ctx, serper.SearchRequest{
		Query:   name + " " + companyName + " site:linkedin.com/in",
		Country: "br",
		Num:     3,
	})
	if err != nil {
		zap.L().Debug("linkedin lookup failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	for _, r := range resp.Organic {
		if strings.Contains(r.Link, "linkedin.com/in/") {
			return r.Link
		}
	}
	return ""
}

// BuildChain assembles the default strategy order with the given providers.
func BuildChain(target int, titles TitleSets, crustClient crust.Client, lushaClient lusha.Client,
	apolloClient apollo.Client, personClient datastone.Client, serpClient serper.Client,
	serpLimiter *rate.Limiter) *Chain {
	return NewChain(target,
		&DirectoryDecisionMakers{Client: crustClient},
		&DirectoryTitleSearch{Client: crustClient, Label: "directory-executive-titles", Titles: titles.Executive},
		&DirectoryTitleSearch{Client: crustClient, Label: "directory-manager-titles", Titles: titles.Manager},
		&DirectoryTitleSearch{Client: crustClient, Label: "directory-generic"},
		&LushaSearch{Client: lushaClient, Titles: titles.Fallback},
		&ApolloSearch{Client: apolloClient, Titles: titles.Fallback},
		&RegistryOwners{Persons: personClient, Serp: serpClient, Limiter: serpLimiter},
	)
}

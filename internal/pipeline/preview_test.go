package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/apollo"
	"github.com/caracol-labs/salesmachine/pkg/crust"
)

func TestPreliminaryScore(t *testing.T) {
	tests := []struct {
		name      string
		techScore int
		directory bool
		registry  bool
		want      int
	}{
		{"no signals", 0, false, false, 10},
		{"directory only", 0, true, false, 20},
		{"registry only", 0, false, true, 20},
		{"all signals", 60, true, true, 60},
		{"capped", 100, true, true, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preliminaryScore(tt.techScore, tt.directory, tt.registry))
		})
	}
}

func TestFinalScore(t *testing.T) {
	assert.Equal(t, 40, finalScore(40, 0))
	assert.Equal(t, 70, finalScore(40, 3))
	assert.Equal(t, 100, finalScore(80, 5))
}

func TestSizeBucketFromHeadcount(t *testing.T) {
	assert.Equal(t, "", sizeBucketFromHeadcount(0))
	assert.Equal(t, "pme", sizeBucketFromHeadcount(10))
	assert.Equal(t, "pme", sizeBucketFromHeadcount(24))
	assert.Equal(t, "enterprise", sizeBucketFromHeadcount(25))
	assert.Equal(t, "enterprise", sizeBucketFromHeadcount(3000))
}

func TestProfileResolverPrefersDirectory(t *testing.T) {
	r := NewProfileResolver(&fakeDirectory{company: &crustCompanyFixture}, &fakeApollo{})

	profile, fromDirectory := r.Resolve(context.Background(), "acme.com.br")
	require.NotNil(t, profile)
	assert.True(t, fromDirectory)
	assert.Equal(t, "Acme Sistemas", profile.Name)
	assert.Equal(t, "99", profile.DirectoryID)
	assert.Equal(t, "enterprise", profile.SizeBucket)
	assert.Equal(t, "10-49", profile.EmployeeRange)
}

func TestProfileResolverFallsBackToEnrichment(t *testing.T) {
	r := NewProfileResolver(
		&fakeDirectory{err: &crust.APIError{StatusCode: 500}},
		&fakeApollo{org: &apollo.Organization{Name: "Acme", EmployeeCount: 12}},
	)

	profile, fromDirectory := r.Resolve(context.Background(), "acme.com.br")
	require.NotNil(t, profile)
	assert.False(t, fromDirectory)
	assert.Equal(t, "Acme", profile.Name)
	assert.Equal(t, "pme", profile.SizeBucket)
	assert.Empty(t, profile.DirectoryID)
}

func TestProfileResolverDegradesToNothing(t *testing.T) {
	r := NewProfileResolver(
		&fakeDirectory{err: &crust.APIError{StatusCode: 500}},
		&fakeApollo{err: &apollo.APIError{StatusCode: 429}},
	)

	profile, fromDirectory := r.Resolve(context.Background(), "acme.com.br")
	assert.Nil(t, profile)
	assert.False(t, fromDirectory)
}

func TestPreviewText(t *testing.T) {
	lead := &model.Lead{
		Domain:           "acme.com.br",
		PreliminaryScore: 55,
		Fingerprint: &model.Fingerprint{
			Maturity: model.MaturityModern,
			Technologies: []model.Technology{
				{Name: "HubSpot"}, {Name: "React"},
			},
			ScrapedEmails: []string{"contato@acme.com.br"},
		},
		Registry: &model.RegistryRecord{
			LegalName: "ACME SISTEMAS LTDA",
			State:     "SP",
			SizeClass: "enterprise",
			Owners:    []model.Owner{{Name: "Jose Roberto Souza"}},
		},
	}

	text := previewText(lead, "Acme Sistemas")
	assert.Contains(t, text, "Acme Sistemas")
	assert.Contains(t, text, "acme.com.br")
	assert.Contains(t, text, "55/100")
	assert.Contains(t, text, "HubSpot, React")
	assert.Contains(t, text, "contato@acme.com.br")
	assert.Contains(t, text, "Jose Roberto Souza")
	assert.Contains(t, text, "Enriquecer")
}

func TestCompanyDisplayName(t *testing.T) {
	assert.Equal(t, "", companyDisplayName(&model.Lead{Domain: "x.com"}))
	assert.Equal(t, "Acme", companyDisplayName(&model.Lead{
		CompanyProfile: &model.CompanyProfile{Name: "Acme"},
		Registry:       &model.RegistryRecord{TradeName: "Outro"},
	}))
	assert.Equal(t, "Fantasia", companyDisplayName(&model.Lead{
		Registry: &model.RegistryRecord{TradeName: "Fantasia", LegalName: "Legal"},
	}))
	assert.Equal(t, "Legal", companyDisplayName(&model.Lead{
		Registry: &model.RegistryRecord{LegalName: "Legal"},
	}))
}

package contacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/resilience"
)

type stubStrategy struct {
	name     string
	contacts []model.Contact
	err      error
	calls    int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Resolve(ctx context.Context, company Company) ([]model.Contact, error) {
	s.calls++
	return s.contacts, s.err
}

func TestChainDedupByExternalID(t *testing.T) {
	a := &stubStrategy{name: "a", contacts: []model.Contact{
		{ExternalID: "p-1", Name: "Maria Silva"},
	}}
	b := &stubStrategy{name: "b", contacts: []model.Contact{
		{ExternalID: "p-1", Name: "Maria S."},
		{ExternalID: "p-2", Name: "João Souza"},
	}}

	got := NewChain(5, a, b).Resolve(context.Background(), Company{Domain: "acme.com.br"})
	require.Len(t, got, 2)
	assert.Equal(t, "Maria Silva", got[0].Name)
	assert.Equal(t, "João Souza", got[1].Name)
}

func TestChainDedupByNameAcrossProviders(t *testing.T) {
	// same human under different external IDs; the name key must collapse them
	a := &stubStrategy{name: "a", contacts: []model.Contact{
		{ExternalID: "crust-9", Name: "Maria Fernanda Silva", Title: "CMO"},
	}}
	b := &stubStrategy{name: "b", contacts: []model.Contact{
		{ExternalID: "apollo-44", Name: "maria silva"},
		{ExternalID: "apollo-45", Name: "Pedro Alves"},
	}}

	got := NewChain(5, a, b).Resolve(context.Background(), Company{Domain: "acme.com.br"})
	require.Len(t, got, 2)
	assert.Equal(t, "Maria Fernanda Silva", got[0].Name, "first-seen entry wins")
	assert.Equal(t, "Pedro Alves", got[1].Name)
}

func TestChainStrategyFailureDoesNotAbort(t *testing.T) {
	failing := &stubStrategy{name: "broken", err: errors.New("timeout")}
	ok := &stubStrategy{name: "ok", contacts: []model.Contact{{ExternalID: "p-1", Name: "Ana Costa"}}}

	got := NewChain(5, failing, ok).Resolve(context.Background(), Company{Domain: "acme.com.br"})
	require.Len(t, got, 1)
	assert.Equal(t, 1, ok.calls)
}

func TestChainFlakyProviderTripsItsBreaker(t *testing.T) {
	flaky := &stubStrategy{name: "lusha",
		err: resilience.NewTransientError(errors.New("503"), 503)}
	steady := &stubStrategy{name: "apollo",
		contacts: []model.Contact{{ExternalID: "p-1", Name: "Ana Costa"}}}
	chain := NewChain(5, flaky, steady)

	for i := 0; i < 8; i++ {
		got := chain.Resolve(context.Background(), Company{Domain: "acme.com.br"})
		require.Len(t, got, 1, "the steady provider keeps resolving")
	}

	assert.Equal(t, 5, flaky.calls, "the open circuit stops reaching the flaky provider")
	assert.Equal(t, 8, steady.calls)
}

func TestChainStopsAtTarget(t *testing.T) {
	first := &stubStrategy{name: "first", contacts: []model.Contact{
		{ExternalID: "1", Name: "A B"}, {ExternalID: "2", Name: "C D"},
	}}
	second := &stubStrategy{name: "second", contacts: []model.Contact{{ExternalID: "3", Name: "E F"}}}

	got := NewChain(2, first, second).Resolve(context.Background(), Company{})
	assert.Len(t, got, 2)
	assert.Equal(t, 0, second.calls, "strategies past the target are not consulted")
}

func TestChainTruncatesAfterFullChain(t *testing.T) {
	big := &stubStrategy{name: "big", contacts: []model.Contact{
		{ExternalID: "1", Name: "A B"}, {ExternalID: "2", Name: "C D"},
		{ExternalID: "3", Name: "E F"}, {ExternalID: "4", Name: "G H"},
	}}

	got := NewChain(3, big).Resolve(context.Background(), Company{})
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ExternalID, "earlier entries survive truncation")
}

func TestNameKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Maria Fernanda Silva", "maria silva"},
		{"  João  Souza ", "joao souza"},
		{"MARIA SILVA", "maria silva"},
		{"Cher", "cher"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nameKey(tt.in), tt.in)
	}
}

func TestIdentityKeyPrefersExternalID(t *testing.T) {
	assert.Equal(t, "p-1", identityKey(model.Contact{ExternalID: "p-1", Name: "Maria Silva"}))
	assert.Equal(t, "https://linkedin.com/in/x",
		identityKey(model.Contact{LinkedInURL: "https://linkedin.com/in/x", Name: "Maria Silva"}))
	assert.Equal(t, "maria silva", identityKey(model.Contact{Name: "Maria Silva"}))
}

func TestRegistryOwnersAdministratorFirst(t *testing.T) {
	s := &RegistryOwners{}
	got, err := s.Resolve(context.Background(), Company{
		Name: "Escola Alfa",
		Owners: []model.Owner{
			{Name: "Sócio Comum", Qualification: "Sócio"},
			{Name: "Maria Admin", Qualification: "Sócio-Administrador", Administrator: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Maria Admin", got[0].Name)
	assert.Equal(t, "registry-owners", got[0].Source)
}

func TestLoadTitleSets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executive:\n  - cfo\n"), 0o644))

	sets, err := LoadTitleSets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cfo"}, sets.Executive)
	assert.Equal(t, DefaultTitleSets().Manager, sets.Manager, "missing sections keep defaults")

	sets, err = LoadTitleSets("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitleSets(), sets)
}

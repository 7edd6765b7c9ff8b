package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caracol-labs/salesmachine/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetLead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead, err := s.CreateLead(ctx, "acme.com.br", "escolas em campinas", "chat-42")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, lead.Status)

	got, err := s.GetLead(ctx, "acme.com.br")
	require.NoError(t, err)
	assert.Equal(t, "acme.com.br", got.Domain)
	assert.Equal(t, "escolas em campinas", got.OriginQuery)
	assert.Equal(t, "chat-42", got.RequesterID)
	assert.Nil(t, got.Fingerprint)
	assert.Nil(t, got.Copies)
}

func TestGetLeadNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLead(context.Background(), "missing.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateLeadResetsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "acme.com.br", "query one", "chat-1")
	require.NoError(t, err)
	require.NoError(t, s.TransitionStatus(ctx, "acme.com.br", model.StatusTechAnalyzed))

	_, err = s.CreateLead(ctx, "acme.com.br", "query two", "chat-2")
	require.NoError(t, err)

	got, err := s.GetLead(ctx, "acme.com.br")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Equal(t, "query two", got.OriginQuery)
}

func TestUpdateLeadMergesPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "acme.com.br", "q", "chat-1")
	require.NoError(t, err)

	fp := &model.Fingerprint{
		Technologies: []model.Technology{{Name: "WordPress", Category: "CMS", Weight: 1}},
		Score:        42,
		Maturity:     model.MaturityTraditional,
	}
	require.NoError(t, s.UpdateLead(ctx, LeadPatch{Domain: "acme.com.br", Fingerprint: fp}))

	score := 55
	require.NoError(t, s.UpdateLead(ctx, LeadPatch{Domain: "acme.com.br", PreliminaryScore: &score}))

	got, err := s.GetLead(ctx, "acme.com.br")
	require.NoError(t, err)
	require.NotNil(t, got.Fingerprint, "fingerprint must survive later partial updates")
	assert.Equal(t, 42, got.Fingerprint.Score)
	assert.Equal(t, 55, got.PreliminaryScore)
	assert.Equal(t, "q", got.OriginQuery)
}

func TestUpdateLeadNotFound(t *testing.T) {
	s := newTestStore(t)

	score := 10
	err := s.UpdateLead(context.Background(), LeadPatch{Domain: "missing.com", PreliminaryScore: &score})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "acme.com.br", "q", "chat-1")
	require.NoError(t, err)

	require.NoError(t, s.TransitionStatus(ctx, "acme.com.br", model.StatusTechAnalyzed))
	require.NoError(t, s.TransitionStatus(ctx, "acme.com.br", model.StatusWaitingDecision))

	// backward move is rejected
	err = s.TransitionStatus(ctx, "acme.com.br", model.StatusNew)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// repeating the current status is an idempotent no-op
	require.NoError(t, s.TransitionStatus(ctx, "acme.com.br", model.StatusWaitingDecision))

	got, err := s.GetLead(ctx, "acme.com.br")
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingDecision, got.Status)
}

func TestTransitionStatusSkipRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "acme.com.br", "q", "chat-1")
	require.NoError(t, err)

	err = s.TransitionStatus(ctx, "acme.com.br", model.StatusEnriched)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetLead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "acme.com.br", "q", "chat-1")
	require.NoError(t, err)
	require.NoError(t, s.TransitionStatus(ctx, "acme.com.br", model.StatusTechAnalyzed))

	require.NoError(t, s.ResetLead(ctx, "acme.com.br"))

	got, err := s.GetLead(ctx, "acme.com.br")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.Status)

	assert.ErrorIs(t, s.ResetLead(ctx, "missing.com"), ErrNotFound)
}

func TestIsFresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fresh, err := s.IsFresh(ctx, "missing.com", 60*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh, "unknown domain is never fresh")

	_, err = s.CreateLead(ctx, "acme.com.br", "q", "chat-1")
	require.NoError(t, err)

	fresh, err = s.IsFresh(ctx, "acme.com.br", 60*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = s.IsFresh(ctx, "acme.com.br", 0)
	require.NoError(t, err)
	assert.False(t, fresh, "zero window means nothing is fresh")
}

func TestListLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []string{"a.com", "b.com", "c.com"} {
		_, err := s.CreateLead(ctx, d, "q1", "chat-1")
		require.NoError(t, err)
	}
	require.NoError(t, s.TransitionStatus(ctx, "b.com", model.StatusTechAnalyzed))

	leads, err := s.ListLeads(ctx, ListFilter{Status: model.StatusNew})
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	leads, err = s.ListLeads(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestListLeadsQueryMatchesSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "escola.com.br", "escolas em Campinas", "chat-1")
	require.NoError(t, err)
	_, err = s.CreateLead(ctx, "clinica.com.br", "clínicas em Sorocaba", "chat-1")
	require.NoError(t, err)

	leads, err := s.ListLeads(ctx, ListFilter{Query: "Campinas"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "escola.com.br", leads[0].Domain)
}

func TestPurgeLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateLead(ctx, "old.com", "q", "chat-1")
	require.NoError(t, err)
	_, err = s.CreateLead(ctx, "new.com", "q", "chat-1")
	require.NoError(t, err)

	n, err := s.PurgeLeads(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.PurgeLeads(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRegistryCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetRegistryCache(ctx, "12345678000190")
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil payload")

	payload := []byte(`{"razao_social":"ACME LTDA"}`)
	require.NoError(t, s.SetRegistryCache(ctx, "12345678000190", payload, 180*24*time.Hour))

	got, err = s.GetRegistryCache(ctx, "12345678000190")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRegistryCacheExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetRegistryCache(ctx, "stale", []byte(`{}`), -time.Hour))
	require.NoError(t, s.SetRegistryCache(ctx, "live", []byte(`{}`), time.Hour))

	got, err := s.GetRegistryCache(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries behave as misses")

	n, err := s.DeleteExpiredRegistryCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = s.GetRegistryCache(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestIsFreshHelper(t *testing.T) {
	now := time.Now()

	assert.False(t, isFresh(time.Time{}, now, time.Hour), "zero timestamp is not fresh")
	assert.True(t, isFresh(now.Add(-30*time.Minute), now, time.Hour))
	assert.False(t, isFresh(now.Add(-2*time.Hour), now, time.Hour))
}

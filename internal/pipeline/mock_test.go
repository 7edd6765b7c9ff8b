package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caracol-labs/salesmachine/internal/copies"
	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/store"
	"github.com/caracol-labs/salesmachine/pkg/apollo"
	"github.com/caracol-labs/salesmachine/pkg/brasilapi"
	"github.com/caracol-labs/salesmachine/pkg/crust"
	"github.com/caracol-labs/salesmachine/pkg/serper"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

type publishedRecord struct {
	Topic   string
	Key     string
	Payload []byte
}

type fakePublisher struct {
	mu      sync.Mutex
	records []publishedRecord
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, publishedRecord{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) published(topic string) []publishedRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedRecord
	for _, r := range f.records {
		if r.Topic == topic {
			out = append(out, r)
		}
	}
	return out
}

type sentNotification struct {
	RequesterID string
	Text        string
}

type fakeNotifier struct {
	notifications []sentNotification
	previews      []sentNotification
	edits         []sentNotification
	previewRef    int64
	err           error
}

func (f *fakeNotifier) Notify(ctx context.Context, requesterID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, sentNotification{requesterID, text})
	return nil
}

func (f *fakeNotifier) SendDecisionPreview(ctx context.Context, requesterID, text, domain string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.previews = append(f.previews, sentNotification{requesterID, text})
	return f.previewRef, nil
}

func (f *fakeNotifier) EditMessage(ctx context.Context, requesterID string, messageRef int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.edits = append(f.edits, sentNotification{requesterID, text})
	return nil
}

type fakeDirectory struct {
	company *crust.Company
	err     error
}

func (f *fakeDirectory) CompanyByDomain(ctx context.Context, domain string) (*crust.Company, error) {
	return f.company, f.err
}

func (f *fakeDirectory) SearchPeople(ctx context.Context, req crust.PersonSearchRequest) ([]crust.Person, error) {
	return nil, nil
}

func (f *fakeDirectory) DecisionMakers(ctx context.Context, companyID int64) ([]crust.Person, error) {
	return nil, nil
}

type fakeApollo struct {
	org *apollo.Organization
	err error
}

func (f *fakeApollo) SearchPeople(ctx context.Context, req apollo.PeopleSearchRequest) ([]apollo.Person, error) {
	return nil, nil
}

func (f *fakeApollo) EnrichOrganization(ctx context.Context, domain string) (*apollo.Organization, error) {
	return f.org, f.err
}

type fakeRegistry struct {
	calls int
	resp  *brasilapi.CNPJResponse
	err   error
}

func (f *fakeRegistry) LookupCNPJ(ctx context.Context, cnpj string) (*brasilapi.CNPJResponse, error) {
	f.calls++
	return f.resp, f.err
}

type fakeSerp struct {
	queries []serper.SearchRequest
	resp    *serper.SearchResponse
	err     error
}

func (f *fakeSerp) Search(ctx context.Context, req serper.SearchRequest) (*serper.SearchResponse, error) {
	f.queries = append(f.queries, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return &serper.SearchResponse{}, nil
	}
	return f.resp, nil
}

type fakeGenerator struct {
	requests []copies.Request
	set      *model.CopySet
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, req copies.Request) (*model.CopySet, error) {
	f.requests = append(f.requests, req)
	return f.set, f.err
}

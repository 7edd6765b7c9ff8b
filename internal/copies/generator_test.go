package copies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/anthropic"
)

type fakeLLM struct {
	messages    []anthropic.MessageRequest
	messageResp *anthropic.MessageResponse

	batchReq  *anthropic.BatchRequest
	batchErr  error
	results   []anthropic.BatchResultItem
	resultErr error
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.messages = append(f.messages, req)
	return f.messageResp, nil
}

func (f *fakeLLM) CreateBatch(_ context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.batchReq = &req
	return &anthropic.BatchResponse{ID: "batch_1", ProcessingStatus: "in_progress"}, nil
}

func (f *fakeLLM) GetBatch(_ context.Context, batchID string) (*anthropic.BatchResponse, error) {
	return &anthropic.BatchResponse{ID: batchID, ProcessingStatus: "ended"}, nil
}

func (f *fakeLLM) GetBatchResults(_ context.Context, _ string) (anthropic.BatchResultIterator, error) {
	return &sliceIterator{items: f.results, err: f.resultErr}, nil
}

type sliceIterator struct {
	items []anthropic.BatchResultItem
	idx   int
	err   error
}

func (it *sliceIterator) Next() bool {
	if it.idx >= len(it.items) {
		return false
	}
	it.idx++
	return true
}

func (it *sliceIterator) Item() anthropic.BatchResultItem { return it.items[it.idx-1] }
func (it *sliceIterator) Err() error                      { return it.err }
func (it *sliceIterator) Close() error                    { return nil }

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func TestBuildPromptItemsChannelEligibility(t *testing.T) {
	contacts := []model.Contact{
		{IdentityKey: "a", Name: "Ana", Email: "ana@acme.com.br", Phone: "+5511999990000"},
		{IdentityKey: "b", Name: "Bruno", LinkedInURL: "https://linkedin.com/in/bruno"},
		{Name: "Sem Canal"},
	}
	req := Request{Domain: "acme.com.br", CompanyName: "Acme"}

	items := buildPromptItems(contacts, req, false)
	require.Len(t, items, 3)

	assert.Equal(t, "a", items[0].contactKey)
	assert.Equal(t, ChannelEmail, items[0].channel)
	assert.Equal(t, "a", items[1].contactKey)
	assert.Equal(t, ChannelWhatsApp, items[1].channel)
	assert.Equal(t, "b", items[2].contactKey)
	assert.Equal(t, ChannelLinkedIn, items[2].channel)
}

func TestBuildPromptItemsGeneric(t *testing.T) {
	contact := model.Contact{IdentityKey: genericKey, Name: "Acme", Phone: "+5511999990000"}
	req := Request{Domain: "acme.com.br", CompanyName: "Acme", StackMaturity: model.MaturityModern}

	items := buildPromptItems([]model.Contact{contact}, req, true)
	require.Len(t, items, 2)

	channels := []string{items[0].channel, items[1].channel}
	assert.ElementsMatch(t, []string{ChannelEmail, ChannelLinkedIn}, channels)
	for _, item := range items {
		assert.Equal(t, ToneConsultivo, item.tone)
		assert.Contains(t, item.prompt, "Equipe Acme")
	}
}

func TestGenericContact(t *testing.T) {
	contact := genericContact(Request{
		CompanyName: "Acme",
		SiteEmails:  []string{"contato@acme.com.br", "rh@acme.com.br"},
		SiteSocials: []string{"https://instagram.com/acme", "https://www.linkedin.com/company/acme"},
	})
	assert.Equal(t, genericKey, contact.IdentityKey)
	assert.Equal(t, "contato@acme.com.br", contact.Email)
	assert.Equal(t, "https://www.linkedin.com/company/acme", contact.LinkedInURL)

	contact = genericContact(Request{CompanyName: "Acme", RegistryEmail: "fiscal@acme.com.br"})
	assert.Equal(t, "fiscal@acme.com.br", contact.Email)
	assert.Empty(t, contact.LinkedInURL)
}

func TestGenerateSinglePromptUsesDirectCall(t *testing.T) {
	llm := &fakeLLM{messageResp: textResponse("Olá Ana, tudo bem?")}
	g := NewGenerator(llm, "claude-test")

	set, err := g.Generate(context.Background(), Request{
		Domain:      "acme.com.br",
		CompanyName: "Acme",
		Contacts:    []model.Contact{{IdentityKey: "a", Name: "Ana", Email: "ana@acme.com.br"}},
	})
	require.NoError(t, err)
	require.Len(t, set.Entries, 1)
	assert.Equal(t, "a", set.Entries[0].ContactKey)
	assert.Equal(t, ChannelEmail, set.Entries[0].Channel)
	assert.Equal(t, "Olá Ana, tudo bem?", set.Entries[0].Text)

	require.Len(t, llm.messages, 1)
	assert.Equal(t, "claude-test", llm.messages[0].Model)
	require.NotEmpty(t, llm.messages[0].System)
	assert.Contains(t, llm.messages[0].System[0].Text, "prospecção B2B")
	assert.Nil(t, llm.batchReq)
}

func TestGenerateMultiplePromptsUsesBatch(t *testing.T) {
	llm := &fakeLLM{
		results: []anthropic.BatchResultItem{
			{CustomID: "copy-0", Type: "succeeded", Message: textResponse("Email para Ana")},
			{CustomID: "copy-1", Type: "succeeded", Message: textResponse("LinkedIn para Bruno")},
			{CustomID: "copy-2", Type: "errored"},
		},
	}
	g := NewGenerator(llm, "claude-test", anthropic.WithPollInterval(time.Millisecond))

	set, err := g.Generate(context.Background(), Request{
		Domain:      "acme.com.br",
		CompanyName: "Acme",
		Contacts: []model.Contact{
			{IdentityKey: "a", Name: "Ana", Email: "ana@acme.com.br"},
			{IdentityKey: "b", Name: "Bruno", LinkedInURL: "https://linkedin.com/in/bruno", Phone: "+5511999990000"},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, llm.batchReq)
	require.Len(t, llm.batchReq.Requests, 3)
	assert.Equal(t, "copy-0", llm.batchReq.Requests[0].CustomID)
	assert.Equal(t, "copy-2", llm.batchReq.Requests[2].CustomID)

	// The errored item is dropped, the rest keep prompt order.
	require.Len(t, set.Entries, 2)
	assert.Equal(t, "a", set.Entries[0].ContactKey)
	assert.Equal(t, "Email para Ana", set.Entries[0].Text)
	assert.Equal(t, "b", set.Entries[1].ContactKey)
	assert.Equal(t, "LinkedIn para Bruno", set.Entries[1].Text)
}

func TestGenerateNoContactsFallsBackToGenericCopy(t *testing.T) {
	llm := &fakeLLM{
		results: []anthropic.BatchResultItem{
			{CustomID: "copy-0", Type: "succeeded", Message: textResponse("Olá equipe")},
			{CustomID: "copy-1", Type: "succeeded", Message: textResponse("Conexão")},
		},
	}
	g := NewGenerator(llm, "claude-test", anthropic.WithPollInterval(time.Millisecond))

	set, err := g.Generate(context.Background(), Request{
		Domain:      "acme.com.br",
		CompanyName: "Acme",
		SiteEmails:  []string{"contato@acme.com.br"},
	})
	require.NoError(t, err)
	require.Len(t, set.Entries, 2)
	for _, entry := range set.Entries {
		assert.Equal(t, genericKey, entry.ContactKey)
		assert.Equal(t, ToneConsultivo, entry.Tone)
	}
}

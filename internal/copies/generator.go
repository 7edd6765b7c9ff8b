package copies

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/pkg/anthropic"
)

const (
	maxCopyContacts = 5
	genericKey      = "generic"
)

const systemPrompt = `Você escreve copies de prospecção B2B em português brasileiro.
Personalize cada copy com o contexto fornecido e responda apenas com o texto da copy, sem explicações.`

var linkedInURLPattern = regexp.MustCompile(`https?://[^\s]*linkedin[^\s]*`)

// Request carries everything the generator needs for one enriched lead.
type Request struct {
	Domain        string
	CompanyName   string
	Contacts      []model.Contact
	TechSummary   map[string][]string
	StackMaturity model.StackMaturity
	FoundedYear   int
	SiteEmails    []string
	SiteSocials   []string
	RegistryEmail string
}

// Generator produces the outreach copy set for a lead.
type Generator struct {
	llm      anthropic.Client
	modelID  string
	pollOpts []anthropic.PollOption
}

// NewGenerator creates a Generator for the given model.
func NewGenerator(llm anthropic.Client, modelID string, pollOpts ...anthropic.PollOption) *Generator {
	return &Generator{llm: llm, modelID: modelID, pollOpts: pollOpts}
}

// promptItem is one (contact, channel) generation unit.
type promptItem struct {
	contactKey string
	channel    string
	tone       string
	prompt     string
}

// Generate builds one copy per contact and reachable channel. A lead with no
// contacts gets a generic company copy instead. Multiple prompts go through
// the batch API; a single prompt is sent directly.
func (g *Generator) Generate(ctx context.Context, req Request) (*model.CopySet, error) {
	contacts := req.Contacts
	generic := false
	if len(contacts) == 0 {
		contacts = []model.Contact{genericContact(req)}
		generic = true
	}
	if len(contacts) > maxCopyContacts {
		contacts = contacts[:maxCopyContacts]
	}

	items := buildPromptItems(contacts, req, generic)
	set := &model.CopySet{GeneratedAt: time.Now().UTC()}
	if len(items) == 0 {
		return set, nil
	}

	texts, err := g.generateTexts(ctx, items)
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		text, ok := texts[customID(i)]
		if !ok || text == "" {
			continue
		}
		set.Entries = append(set.Entries, model.CopyEntry{
			ContactKey: item.contactKey,
			Channel:    item.channel,
			Tone:       item.tone,
			Text:       text,
		})
	}
	return set, nil
}

// buildPromptItems expands contacts into per-channel prompts. Email and
// LinkedIn need the respective handle (generic copies always get both);
// WhatsApp needs a phone and is never generic.
func buildPromptItems(contacts []model.Contact, req Request, generic bool) []promptItem {
	companyName := req.CompanyName
	if companyName == "" {
		companyName = req.Domain
	}
	techs := techHighlights(req.TechSummary)

	var items []promptItem
	for i, c := range contacts {
		tone := ToneFor(c.AgeBracket, req.StackMaturity, req.FoundedYear)
		name, title := c.Name, c.Title
		if generic {
			tone = ToneConsultivo
			name = "Equipe " + companyName
			title = "Equipe"
		}
		if title == "" {
			title = "Decisor"
		}
		key := c.IdentityKey
		if key == "" {
			key = fmt.Sprintf("contact-%d", i)
		}

		add := func(channel string) {
			items = append(items, promptItem{
				contactKey: key,
				channel:    channel,
				tone:       tone,
				prompt:     buildPrompt(tone, channel, name, companyName, title, techs),
			})
		}
		if c.Email != "" || generic {
			add(ChannelEmail)
		}
		if c.LinkedInURL != "" || generic {
			add(ChannelLinkedIn)
		}
		if c.Phone != "" && !generic {
			add(ChannelWhatsApp)
		}
	}
	return items
}

// generateTexts runs the prompts and returns texts keyed by customID index.
func (g *Generator) generateTexts(ctx context.Context, items []promptItem) (map[string]string, error) {
	system := anthropic.BuildCachedSystemBlocks(systemPrompt)

	if len(items) == 1 {
		resp, err := g.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     g.modelID,
			MaxTokens: 1024,
			System:    system,
			Messages:  []anthropic.Message{{Role: "user", Content: items[0].prompt}},
		})
		if err != nil {
			return nil, eris.Wrap(err, "copies: generate")
		}
		resp.Usage.LogCost(g.modelID, "copies")
		return map[string]string{customID(0): responseText(resp)}, nil
	}

	batchReq := anthropic.BatchRequest{Requests: make([]anthropic.BatchRequestItem, len(items))}
	for i, item := range items {
		batchReq.Requests[i] = anthropic.BatchRequestItem{
			CustomID: customID(i),
			Params: anthropic.MessageRequest{
				Model:     g.modelID,
				MaxTokens: 1024,
				System:    system,
				Messages:  []anthropic.Message{{Role: "user", Content: item.prompt}},
			},
		}
	}

	batch, err := g.llm.CreateBatch(ctx, batchReq)
	if err != nil {
		return nil, eris.Wrap(err, "copies: create batch")
	}
	if _, err := anthropic.PollBatch(ctx, g.llm, batch.ID, g.pollOpts...); err != nil {
		return nil, eris.Wrap(err, "copies: poll batch")
	}
	iter, err := g.llm.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "copies: fetch batch results")
	}
	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return nil, eris.Wrap(err, "copies: collect batch results")
	}

	var usage anthropic.TokenUsage
	texts := make(map[string]string, len(results))
	for id, resp := range results {
		texts[id] = responseText(resp)
		usage.Add(resp.Usage)
	}
	usage.LogCost(g.modelID, "copies")
	return texts, nil
}

func customID(i int) string {
	return fmt.Sprintf("copy-%d", i)
}

// genericContact builds the company-level fallback contact from scraped and
// registry data.
func genericContact(req Request) model.Contact {
	contact := model.Contact{
		IdentityKey: genericKey,
		Name:        req.CompanyName,
		Source:      genericKey,
	}
	if len(req.SiteEmails) > 0 {
		contact.Email = req.SiteEmails[0]
	} else if req.RegistryEmail != "" {
		contact.Email = req.RegistryEmail
	}
	for _, social := range req.SiteSocials {
		if !strings.Contains(strings.ToLower(social), "linkedin") {
			continue
		}
		if url := linkedInURLPattern.FindString(social); url != "" {
			contact.LinkedInURL = url
			break
		}
	}
	return contact
}

func responseText(resp *anthropic.MessageResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text)
		}
	}
	zap.L().Warn("copies: response had no text block")
	return ""
}

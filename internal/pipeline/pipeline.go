package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/bus"
	"github.com/caracol-labs/salesmachine/internal/contacts"
	"github.com/caracol-labs/salesmachine/internal/copies"
	"github.com/caracol-labs/salesmachine/internal/discovery"
	"github.com/caracol-labs/salesmachine/internal/fingerprint"
	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/resilience"
	"github.com/caracol-labs/salesmachine/internal/store"
)

// CopyGenerator produces the outreach copy set for an enriched lead.
type CopyGenerator interface {
	Generate(ctx context.Context, req copies.Request) (*model.CopySet, error)
}

// Deps wires the pipeline's collaborators. Engine, Chain, Registry, Profiles
// and Copies are only needed by the workers that run those stages.
type Deps struct {
	Store       store.Store
	Publisher   bus.Publisher
	TopicPrefix string
	Notifier    Notifier

	Searcher      discovery.Searcher
	Blacklist     discovery.Blacklist
	DiscoveryOpts discovery.Options

	Engine   *fingerprint.Engine
	Registry *RegistryResolver
	Profiles *ProfileResolver
	Chain    *contacts.Chain
	Copies   CopyGenerator
}

// Pipeline implements the stage handlers. Every handler loads the persisted
// lead and checks its status before acting, so queue redelivery of an
// already-processed message is a logged no-op.
type Pipeline struct {
	store    store.Store
	pub      bus.Publisher
	prefix   string
	notifier Notifier

	loop     *discovery.Loop
	engine   *fingerprint.Engine
	registry *RegistryResolver
	profiles *ProfileResolver
	chain    *contacts.Chain
	copies   CopyGenerator
}

// New assembles a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		store:    deps.Store,
		pub:      deps.Publisher,
		prefix:   deps.TopicPrefix,
		notifier: deps.Notifier,
		engine:   deps.Engine,
		registry: deps.Registry,
		profiles: deps.Profiles,
		chain:    deps.Chain,
		copies:   deps.Copies,
	}
	if deps.Searcher != nil {
		p.loop = discovery.NewLoop(deps.Searcher, deps.Store, deps.Blacklist, p.emitCandidate, deps.DiscoveryOpts)
	}
	return p
}

// PublishCommand enqueues an inbound prospecting request.
func (p *Pipeline) PublishCommand(ctx context.Context, cmd Command) error {
	return p.publish(ctx, bus.StageDiscovery, cmd.RequesterID, cmd)
}

// PublishDecision enqueues an operator decision callback.
func (p *Pipeline) PublishDecision(ctx context.Context, msg DecisionMsg) error {
	return p.publish(ctx, bus.StageEnrich, msg.Domain, msg)
}

func (p *Pipeline) publish(ctx context.Context, stage, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "pipeline: encode %s message", stage)
	}
	return p.pub.Publish(ctx, bus.Topic(p.prefix, stage), key, payload)
}

// emitCandidate publishes one newly discovered lead to the fingerprint stage.
func (p *Pipeline) emitCandidate(ctx context.Context, lead model.Lead, candidate discovery.Candidate) error {
	return p.publish(ctx, bus.StageFingerprint, lead.Domain, FingerprintMsg{
		Domain:      lead.Domain,
		OriginQuery: lead.OriginQuery,
		RequesterID: lead.RequesterID,
		Context: CandidateContext{
			Name:           candidate.Name,
			Sector:         candidate.Sector,
			Size:           candidate.Size,
			FitExplanation: candidate.FitExplanation,
		},
	})
}

// HandleCommand runs the discovery loop for one prospecting request and
// reports the yield to the requester.
func (p *Pipeline) HandleCommand(ctx context.Context, key string, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return resilience.NewPermanentError(eris.Wrap(err, "pipeline: decode command"))
	}
	if cmd.RequestText == "" {
		return p.permanent(ctx, cmd.RequesterID, "❌ Pedido de busca vazio.",
			eris.New("pipeline: empty request text"))
	}

	query := cmd.OriginalTerm
	if query == "" {
		query = cmd.RequestText
	}
	result, err := p.loop.Run(ctx, discovery.Request{
		Prompt:      cmd.RequestText,
		Query:       query,
		RequesterID: cmd.RequesterID,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: discovery")
	}

	p.notify(ctx, cmd.RequesterID, fmt.Sprintf(
		"🔎 Busca concluída: %d novos leads enviados, %d já conhecidos.", result.New, result.Known))
	return nil
}

// HandleFingerprint analyzes a discovered domain and forwards the result to
// the decision gate.
func (p *Pipeline) HandleFingerprint(ctx context.Context, key string, payload []byte) error {
	var msg FingerprintMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return resilience.NewPermanentError(eris.Wrap(err, "pipeline: decode fingerprint message"))
	}

	lead, err := p.loadLead(ctx, msg.Domain)
	if err != nil {
		return err
	}
	if lead.Status.AtOrPast(model.StatusTechAnalyzed) {
		p.skip(lead, model.StatusTechAnalyzed)
		return nil
	}

	result, err := p.engine.Analyze(ctx, msg.Domain)
	if err != nil {
		return eris.Wrapf(err, "pipeline: fingerprint %s", msg.Domain)
	}

	if err := p.store.UpdateLead(ctx, store.LeadPatch{
		Domain:      msg.Domain,
		Fingerprint: &result.Fingerprint,
	}); err != nil {
		return eris.Wrapf(err, "pipeline: persist fingerprint %s", msg.Domain)
	}
	if err := p.transition(ctx, msg.Domain, model.StatusTechAnalyzed); err != nil {
		return err
	}

	return p.publish(ctx, bus.StageDecision, msg.Domain, GateMsg{
		Domain:          msg.Domain,
		Technologies:    result.Fingerprint.Technologies,
		TechScore:       result.Fingerprint.Score,
		Hosting:         result.Fingerprint.Hosting,
		RequesterID:     msg.RequesterID,
		OriginQuery:     msg.OriginQuery,
		ScrapedContacts: result.Fingerprint.ScrapedEmails,
		ScrapedSocials:  result.Fingerprint.ScrapedSocials,
		RawPageBlob:     result.CompressedHTML,
		StackMaturity:   result.Fingerprint.Maturity,
	})
}

// HandleGate assembles the decision preview: company profile, registry
// record and preliminary score, then presents it to the operator and parks
// the lead at WAITING_DECISION.
func (p *Pipeline) HandleGate(ctx context.Context, key string, payload []byte) error {
	var msg GateMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return resilience.NewPermanentError(eris.Wrap(err, "pipeline: decode gate message"))
	}

	lead, err := p.loadLead(ctx, msg.Domain)
	if err != nil {
		return err
	}
	if lead.Status.AtOrPast(model.StatusWaitingDecision) {
		p.skip(lead, model.StatusWaitingDecision)
		return nil
	}

	markup := ""
	if msg.RawPageBlob != "" {
		if markup, err = fingerprint.DecompressHTML(msg.RawPageBlob); err != nil {
			zap.L().Warn("page blob unreadable", zap.String("domain", msg.Domain), zap.Error(err))
			markup = ""
		}
	}

	profile, fromDirectory := p.profiles.Resolve(ctx, msg.Domain)
	companyName := msg.Domain
	if profile != nil && profile.Name != "" {
		companyName = profile.Name
	}

	registry, err := p.registry.Resolve(ctx, msg.Domain, companyName, markup)
	if err != nil {
		if resilience.IsTransient(err) {
			return eris.Wrapf(err, "pipeline: registry lookup %s", msg.Domain)
		}
		zap.L().Warn("registry lookup failed", zap.String("domain", msg.Domain), zap.Error(err))
		registry = nil
	}

	score := preliminaryScore(msg.TechScore, fromDirectory, registry != nil)
	if err := p.store.UpdateLead(ctx, store.LeadPatch{
		Domain:           msg.Domain,
		Profile:          profile,
		Registry:         registry,
		PreliminaryScore: &score,
	}); err != nil {
		return eris.Wrapf(err, "pipeline: persist preview %s", msg.Domain)
	}

	lead, err = p.loadLead(ctx, msg.Domain)
	if err != nil {
		return err
	}
	if _, err := p.notifier.SendDecisionPreview(ctx, msg.RequesterID,
		previewText(lead, companyDisplayName(lead)), msg.Domain); err != nil {
		return eris.Wrapf(err, "pipeline: present preview %s", msg.Domain)
	}

	return p.transition(ctx, msg.Domain, model.StatusWaitingDecision)
}

// HandleDecision applies the operator's verdict: DISCARD terminates the
// lead; ENRICH runs the contact resolution chain and forwards the lead to
// copy generation.
func (p *Pipeline) HandleDecision(ctx context.Context, key string, payload []byte) error {
	var msg DecisionMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return resilience.NewPermanentError(eris.Wrap(err, "pipeline: decode decision"))
	}
	if msg.Action != ActionEnrich && msg.Action != ActionDiscard {
		return p.permanent(ctx, msg.RequesterID,
			fmt.Sprintf("❌ Ação desconhecida para %s.", msg.Domain),
			eris.Errorf("pipeline: unknown decision action %q", msg.Action))
	}

	lead, err := p.loadLead(ctx, msg.Domain)
	if err != nil {
		return err
	}

	if msg.Action == ActionDiscard {
		if lead.Status == model.StatusDiscarded {
			p.skip(lead, model.StatusDiscarded)
			return nil
		}
		// The acknowledgment must reflect what actually happened: a lead
		// that already advanced past the gate is not discarded here.
		err := p.store.TransitionStatus(ctx, msg.Domain, model.StatusDiscarded)
		if err != nil {
			if eris.Is(err, store.ErrInvalidTransition) {
				zap.L().Warn("discard rejected, lead already advanced",
					zap.String("domain", msg.Domain), zap.String("status", string(lead.Status)))
				return nil
			}
			return eris.Wrapf(err, "pipeline: transition %s to %s", msg.Domain, model.StatusDiscarded)
		}
		p.acknowledgeDecision(ctx, msg, "❌ Lead descartado: "+msg.Domain)
		return nil
	}

	if lead.Status.AtOrPast(model.StatusEnriched) {
		p.skip(lead, model.StatusEnriched)
		return nil
	}

	resolved := p.chain.Resolve(ctx, p.chainCompany(lead))
	score := finalScore(lead.PreliminaryScore, len(resolved))
	if err := p.store.UpdateLead(ctx, store.LeadPatch{
		Domain:     msg.Domain,
		Contacts:   resolved,
		FinalScore: &score,
	}); err != nil {
		return eris.Wrapf(err, "pipeline: persist contacts %s", msg.Domain)
	}
	if err := p.transition(ctx, msg.Domain, model.StatusEnriched); err != nil {
		return err
	}

	var summary map[string][]string
	maturity := model.MaturityUnknown
	if lead.Fingerprint != nil {
		summary = lead.Fingerprint.Summary
		maturity = lead.Fingerprint.Maturity
	}
	if err := p.publish(ctx, bus.StageCopies, msg.Domain, CopyMsg{
		Domain:        msg.Domain,
		CompanyName:   companyDisplayName(lead),
		Contacts:      resolved,
		TechSummary:   summary,
		StackMaturity: maturity,
		FinalScore:    score,
	}); err != nil {
		return err
	}

	p.acknowledgeDecision(ctx, msg, fmt.Sprintf(
		"✅ %s enriquecido: %d contatos, score final %d/100. Gerando copies...",
		msg.Domain, len(resolved), score))
	return nil
}

// HandleCopies generates the outreach copy set and closes the pipeline for
// the lead.
func (p *Pipeline) HandleCopies(ctx context.Context, key string, payload []byte) error {
	var msg CopyMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return resilience.NewPermanentError(eris.Wrap(err, "pipeline: decode copy message"))
	}

	lead, err := p.loadLead(ctx, msg.Domain)
	if err != nil {
		return err
	}
	if lead.Status.AtOrPast(model.StatusCopiesReady) {
		p.skip(lead, model.StatusCopiesReady)
		return nil
	}

	req := copies.Request{
		Domain:        msg.Domain,
		CompanyName:   msg.CompanyName,
		Contacts:      msg.Contacts,
		TechSummary:   msg.TechSummary,
		StackMaturity: msg.StackMaturity,
	}
	if lead.Fingerprint != nil {
		req.SiteEmails = lead.Fingerprint.ScrapedEmails
		req.SiteSocials = lead.Fingerprint.ScrapedSocials
	}
	if lead.Registry != nil {
		req.RegistryEmail = lead.Registry.Email
		req.FoundedYear = lead.Registry.FoundedYear
	}

	set, err := p.copies.Generate(ctx, req)
	if err != nil {
		return eris.Wrapf(err, "pipeline: generate copies %s", msg.Domain)
	}
	if len(set.Entries) == 0 {
		p.notify(ctx, lead.RequesterID, "❌ Não foi possível gerar copies para "+msg.Domain)
		return nil
	}

	if err := p.store.UpdateLead(ctx, store.LeadPatch{Domain: msg.Domain, Copies: set}); err != nil {
		return eris.Wrapf(err, "pipeline: persist copies %s", msg.Domain)
	}
	if err := p.transition(ctx, msg.Domain, model.StatusCopiesReady); err != nil {
		return err
	}

	p.notify(ctx, lead.RequesterID, fmt.Sprintf(
		"✍️ %d copies geradas para %s. Lead pronto para abordagem.", len(set.Entries), msg.Domain))
	return nil
}

// chainCompany builds the resolution chain's input from the persisted lead.
func (p *Pipeline) chainCompany(lead *model.Lead) contacts.Company {
	company := contacts.Company{
		Domain: lead.Domain,
		Name:   companyDisplayName(lead),
	}
	if lead.CompanyProfile != nil && lead.CompanyProfile.DirectoryID != "" {
		if id, err := strconv.ParseInt(lead.CompanyProfile.DirectoryID, 10, 64); err == nil {
			company.DirectoryID = id
		}
	}
	if lead.Registry != nil {
		company.State = lead.Registry.State
		company.Owners = lead.Registry.Owners
	}
	return company
}

// loadLead fetches the lead record; a missing record is permanent (the
// message refers to a purged or never-created lead), any other store error
// stays transient for redelivery.
func (p *Pipeline) loadLead(ctx context.Context, domain string) (*model.Lead, error) {
	lead, err := p.store.GetLead(ctx, domain)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, resilience.NewPermanentError(eris.Wrapf(err, "pipeline: lead %s missing", domain))
		}
		return nil, eris.Wrapf(err, "pipeline: load lead %s", domain)
	}
	return lead, nil
}

// transition advances the lead's status. ErrInvalidTransition here means a
// concurrent worker already advanced the lead; that is a redelivery
// artifact, logged and acked.
func (p *Pipeline) transition(ctx context.Context, domain string, next model.Status) error {
	err := p.store.TransitionStatus(ctx, domain, next)
	if err == nil {
		return nil
	}
	if eris.Is(err, store.ErrInvalidTransition) {
		zap.L().Warn("transition rejected, lead already advanced",
			zap.String("domain", domain), zap.String("target", string(next)))
		return nil
	}
	return eris.Wrapf(err, "pipeline: transition %s to %s", domain, next)
}

// acknowledgeDecision edits the preview message in place when a reference is
// known, otherwise sends a fresh notification.
func (p *Pipeline) acknowledgeDecision(ctx context.Context, msg DecisionMsg, text string) {
	if msg.MessageRef != 0 {
		err := p.notifier.EditMessage(ctx, msg.RequesterID, msg.MessageRef, text)
		if err == nil {
			return
		}
		zap.L().Warn("preview edit failed, sending fresh message",
			zap.String("domain", msg.Domain), zap.Error(err))
	}
	p.notify(ctx, msg.RequesterID, text)
}

// notify sends a best-effort user notification; delivery failure never
// fails the stage.
func (p *Pipeline) notify(ctx context.Context, requesterID, text string) {
	if requesterID == "" {
		return
	}
	if err := p.notifier.Notify(ctx, requesterID, text); err != nil {
		zap.L().Warn("notification failed", zap.String("requester", requesterID), zap.Error(err))
	}
}

// permanent notifies the requester of an unrecoverable input problem and
// returns the error marked permanent so the message is acked.
func (p *Pipeline) permanent(ctx context.Context, requesterID, text string, err error) error {
	p.notify(ctx, requesterID, text)
	return resilience.NewPermanentError(err)
}

func (p *Pipeline) skip(lead *model.Lead, stage model.Status) {
	zap.L().Info("redelivery for already-processed lead, skipping",
		zap.String("domain", lead.Domain),
		zap.String("status", string(lead.Status)),
		zap.String("stage", string(stage)))
}

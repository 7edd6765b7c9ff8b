// Package pipeline sequences the lead stages: discovery, fingerprinting,
// the operator decision gate, contact enrichment and copy generation. Stage
// handlers consume bus messages, check the persisted lead status before
// acting, merge-upsert their results and publish the next stage's message.
package pipeline

import (
	"github.com/caracol-labs/salesmachine/internal/model"
)

// Command is the inbound prospecting request from the messaging front-end.
type Command struct {
	RequestText  string `json:"request_text"`
	RequesterID  string `json:"requester_id"`
	OriginalTerm string `json:"original_term,omitempty"`
}

// CandidateContext carries per-candidate discovery context downstream.
type CandidateContext struct {
	Name           string `json:"name,omitempty"`
	Sector         string `json:"sector,omitempty"`
	Size           string `json:"size,omitempty"`
	FitExplanation string `json:"fit_explanation,omitempty"`
}

// FingerprintMsg flows from discovery to the fingerprint stage.
type FingerprintMsg struct {
	Domain      string           `json:"domain"`
	OriginQuery string           `json:"origin_query,omitempty"`
	RequesterID string           `json:"requester_id,omitempty"`
	Context     CandidateContext `json:"context"`
}

// GateMsg flows from the fingerprint stage to the decision gate. RawPageBlob
// is the zlib-compressed, base64-encoded page markup; the gate mines it for
// a registry tax ID before presenting the preview.
type GateMsg struct {
	Domain          string              `json:"domain"`
	Technologies    []model.Technology  `json:"technologies"`
	TechScore       int                 `json:"tech_score"`
	Hosting         string              `json:"hosting,omitempty"`
	RequesterID     string              `json:"requester_id,omitempty"`
	OriginQuery     string              `json:"origin_query,omitempty"`
	ScrapedContacts []string            `json:"scraped_contacts,omitempty"`
	ScrapedSocials  []string            `json:"scraped_socials,omitempty"`
	RawPageBlob     string              `json:"raw_page_blob,omitempty"`
	StackMaturity   model.StackMaturity `json:"stack_maturity"`
}

// Operator decision actions.
const (
	ActionEnrich  = "ENRICH"
	ActionDiscard = "DISCARD"
)

// DecisionMsg is the operator's callback on a preview. MessageRef identifies
// the preview message so it can be edited in place.
type DecisionMsg struct {
	Action      string `json:"action"`
	Domain      string `json:"domain"`
	RequesterID string `json:"requester_id,omitempty"`
	MessageRef  int64  `json:"message_ref,omitempty"`
}

// CopyMsg flows from enrichment to copy generation.
type CopyMsg struct {
	Domain        string              `json:"domain"`
	CompanyName   string              `json:"company_name,omitempty"`
	Contacts      []model.Contact     `json:"contacts,omitempty"`
	TechSummary   map[string][]string `json:"tech_summary,omitempty"`
	StackMaturity model.StackMaturity `json:"stack_maturity"`
	FinalScore    int                 `json:"final_score"`
}

// Package model defines the lead record and its lifecycle types.
package model

import "time"

// Lead is the central pipeline entity, keyed by normalized domain.
type Lead struct {
	Domain      string `json:"domain"`
	Status      Status `json:"status"`
	OriginQuery string `json:"origin_query,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`

	Fingerprint    *Fingerprint    `json:"fingerprint,omitempty"`
	CompanyProfile *CompanyProfile `json:"company_profile,omitempty"`
	Contacts       []Contact       `json:"contacts,omitempty"`
	Registry       *RegistryRecord `json:"registry,omitempty"`
	Copies         *CopySet        `json:"copies,omitempty"`

	PreliminaryScore int `json:"preliminary_score,omitempty"`
	FinalScore       int `json:"final_score,omitempty"`
}

// Fingerprint holds the detected technology set plus derived aggregates.
// A new fingerprinting pass replaces the whole struct atomically.
type Fingerprint struct {
	Technologies   []Technology        `json:"technologies"`
	Score          int                 `json:"score"`
	Maturity       StackMaturity       `json:"maturity"`
	Hosting        string              `json:"hosting,omitempty"`
	Summary        map[string][]string `json:"summary,omitempty"`
	ScrapedEmails  []string            `json:"scraped_emails,omitempty"`
	ScrapedSocials []string            `json:"scraped_socials,omitempty"`
	AnalyzedAt     time.Time           `json:"analyzed_at"`
	FinalURL       string              `json:"final_url,omitempty"`
}

// Technology is one detected artifact. Immutable within a fingerprint pass.
type Technology struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Weight   int    `json:"weight"`
	Source   string `json:"source"`
}

// StackMaturity is the coarse classification of a company's web stack.
type StackMaturity string

const (
	MaturityModern      StackMaturity = "modern"
	MaturityTraditional StackMaturity = "traditional"
	MaturityUnknown     StackMaturity = "unknown"
)

// HostingInaccessible marks a domain whose site could not be fetched on any
// URL variant. The lead still advances through the pipeline.
const HostingInaccessible = "inaccessible"

// CompanyProfile holds directory-sourced company attributes, partially filled.
type CompanyProfile struct {
	Name          string `json:"name,omitempty"`
	DirectoryID   string `json:"directory_id,omitempty"`
	SizeBucket    string `json:"size_bucket,omitempty"`
	EmployeeRange string `json:"employee_range,omitempty"`
	Location      string `json:"location,omitempty"`
	Revenue       string `json:"revenue,omitempty"`
	Description   string `json:"description,omitempty"`
	LinkedInURL   string `json:"linkedin_url,omitempty"`
}

// Contact is a resolved person or generic company handle. Read-only once
// appended to a lead within one resolution run.
type Contact struct {
	IdentityKey string       `json:"identity_key"`
	ExternalID  string       `json:"external_id,omitempty"`
	Name        string       `json:"name"`
	Title       string       `json:"title,omitempty"`
	LinkedInURL string       `json:"linkedin_url,omitempty"`
	Email       string       `json:"email,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	AgeBracket  string       `json:"age_bracket,omitempty"`
	Source      string       `json:"source"`
	History     []Employment `json:"history,omitempty"`
}

// Employment is one entry of a contact's work history, most recent first.
type Employment struct {
	Company   string `json:"company"`
	Title     string `json:"title,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Current   bool   `json:"current,omitempty"`
}

// RegistryRecord holds company-registry data resolved from a tax ID.
type RegistryRecord struct {
	TaxID       string  `json:"tax_id"`
	LegalName   string  `json:"legal_name,omitempty"`
	TradeName   string  `json:"trade_name,omitempty"`
	SizeClass   string  `json:"size_class,omitempty"`
	State       string  `json:"state,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Email       string  `json:"email,omitempty"`
	Owners      []Owner `json:"owners,omitempty"`
	FoundedYear int     `json:"founded_year,omitempty"`
}

// Owner is a registry-derived partner or shareholder.
type Owner struct {
	Name          string `json:"name"`
	Qualification string `json:"qualification,omitempty"`
	AgeBracket    string `json:"age_bracket,omitempty"`
	Administrator bool   `json:"administrator,omitempty"`
}

// CopySet holds generated outreach texts per contact and channel.
type CopySet struct {
	Entries     []CopyEntry `json:"entries"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// CopyEntry is one generated outreach message.
type CopyEntry struct {
	ContactKey string `json:"contact_key,omitempty"`
	Channel    string `json:"channel"`
	Tone       string `json:"tone"`
	Text       string `json:"text"`
}

// RegistryCacheEntry caches a raw registry payload keyed by normalized tax ID.
type RegistryCacheEntry struct {
	TaxID    string    `json:"tax_id"`
	Payload  []byte    `json:"payload"`
	CachedAt time.Time `json:"cached_at"`
}

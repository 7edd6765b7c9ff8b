package copies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caracol-labs/salesmachine/internal/model"
)

func TestToneFor(t *testing.T) {
	thisYear := time.Now().Year()

	tests := []struct {
		name        string
		ageBracket  string
		maturity    model.StackMaturity
		foundedYear int
		want        string
	}{
		{"young contact, modern stack", "entre 31 a 40 anos", model.MaturityModern, 0, ToneDireto},
		{"young contact, traditional stack", "entre 21 a 30 anos", model.MaturityTraditional, 0, ToneConsultivo},
		{"senior contact, modern stack", "entre 51 a 60 anos", model.MaturityModern, 0, ToneInovador},
		{"senior contact, traditional stack", "maior de 70 anos", model.MaturityTraditional, 0, ToneFormal},
		{"unknown bracket counts as young", "", model.MaturityModern, 0, ToneDireto},
		{"recent founding keeps company young", "entre 41 a 50 anos", model.MaturityUnknown, thisYear - 2, ToneInovador},
		{"old founding makes company mature", "entre 41 a 50 anos", model.MaturityUnknown, thisYear - 20, ToneFormal},
		{"bracket casing is normalized", "Entre 61 a 70 Anos", model.MaturityTraditional, 0, ToneFormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToneFor(tt.ageBracket, tt.maturity, tt.foundedYear))
		})
	}
}

func TestBuildPromptCarriesChannelSpec(t *testing.T) {
	prompt := buildPrompt(ToneDireto, ChannelLinkedIn, "Maria Silva", "Acme", "CTO", "HubSpot, WordPress")

	assert.Contains(t, prompt, "Maria Silva")
	assert.Contains(t, prompt, "Acme")
	assert.Contains(t, prompt, "CTO")
	assert.Contains(t, prompt, "HubSpot, WordPress")
	assert.Contains(t, prompt, "ESPECIFICAÇÕES DO CANAL (LINKEDIN)")
	assert.Contains(t, prompt, "Máximo 300 caracteres")
	assert.Contains(t, prompt, "Responda APENAS com a copy")
}

func TestBuildPromptUnknownToneFallsBack(t *testing.T) {
	prompt := buildPrompt("agressivo", ChannelEmail, "Maria", "Acme", "CEO", "nenhuma")
	assert.Contains(t, prompt, "consultor de negócios")
	assert.Contains(t, prompt, "Máximo 1500 caracteres")
}

func TestTechHighlights(t *testing.T) {
	summary := map[string][]string{
		"marketing": {"HubSpot", "RD Station", "Mailchimp"},
		"cms":       {"WordPress"},
		"ecommerce": {"VTEX"},
		"analytics": {"Google Analytics"},
	}
	assert.Equal(t, "HubSpot, RD Station, WordPress, VTEX", techHighlights(summary))

	assert.Equal(t, "não identificadas", techHighlights(nil))
	assert.Equal(t, "não identificadas", techHighlights(map[string][]string{"analytics": {"GA"}}))
}

// Package copies generates outreach texts for an enriched lead, one per
// contact and channel, with the tone picked from the contact's age bracket
// and the company's stack maturity.
package copies

import (
	"fmt"
	"strings"
	"time"

	"github.com/caracol-labs/salesmachine/internal/model"
)

// Tones of voice.
const (
	ToneDireto     = "direto"
	ToneConsultivo = "consultivo"
	ToneInovador   = "inovador"
	ToneFormal     = "formal"
)

// Outreach channels.
const (
	ChannelEmail    = "email"
	ChannelLinkedIn = "linkedin"
	ChannelWhatsApp = "whatsapp"
)

// youngCompanyMaxAge is the founding-age threshold below which a company
// counts as young when stack maturity alone is inconclusive.
const youngCompanyMaxAge = 5

// seniorBrackets lists registry age brackets treated as senior contacts.
var seniorBrackets = map[string]bool{
	"entre 41 a 50 anos": true,
	"entre 51 a 60 anos": true,
	"entre 61 a 70 anos": true,
	"maior de 70 anos":   true,
}

// ToneFor picks the tone from the contact/company matrix: young contact at a
// young company gets direct, young at mature gets consultative, senior at
// young gets innovative, senior at mature gets formal.
func ToneFor(ageBracket string, maturity model.StackMaturity, foundedYear int) string {
	seniorContact := seniorBrackets[strings.ToLower(strings.TrimSpace(ageBracket))]

	youngCompany := true
	if maturity == model.MaturityTraditional {
		youngCompany = false
	} else if foundedYear > 0 {
		youngCompany = time.Now().Year()-foundedYear < youngCompanyMaxAge
	}

	switch {
	case !seniorContact && youngCompany:
		return ToneDireto
	case !seniorContact:
		return ToneConsultivo
	case youngCompany:
		return ToneInovador
	default:
		return ToneFormal
	}
}

// tonePrompts are the per-tone templates; placeholders are channel, contact
// name, company, title, technologies.
var tonePrompts = map[string]string{
	ToneDireto: `Você é um SDR jovem e dinâmico. Escreva uma copy %s para %s.

CONTEXTO:
- Empresa: %s
- Cargo: %s
- Tecnologias: %s

ESTILO:
- Tom informal e direto
- Pode usar 1-2 emojis estratégicos
- Frases curtas e impactantes
- Foque em resultados rápidos

REGRAS:
- Máximo 3 parágrafos curtos
- Inclua uma pergunta no final
- Não seja genérico, mencione algo específico da empresa`,

	ToneConsultivo: `Você é um consultor de negócios experiente. Escreva uma copy %s para %s.

CONTEXTO:
- Empresa: %s
- Cargo: %s
- Tecnologias: %s

ESTILO:
- Tom profissional mas acessível
- Foque em dados e resultados
- Posicione-se como especialista

REGRAS:
- Máximo 4 parágrafos
- Inclua um insight sobre o mercado deles
- Termine com proposta de valor clara`,

	ToneInovador: `Você é um executivo que entende de inovação. Escreva uma copy %s para %s.

CONTEXTO:
- Empresa: %s
- Cargo: %s
- Tecnologias: %s

ESTILO:
- Tom respeitoso mas com visão moderna
- Use "Sr./Sra." no início
- Fale sobre transformação digital e tendências do setor

REGRAS:
- Máximo 4 parágrafos
- Seja respeitoso mas não formal demais
- Foque em visão estratégica`,

	ToneFormal: `Você é um diretor comercial experiente. Escreva uma copy %s para %s.

CONTEXTO:
- Empresa: %s
- Cargo: %s
- Tecnologias: %s

ESTILO:
- Tom formal e respeitoso
- Use "Prezado Sr./Sra."
- Linguagem corporativa, sem gírias ou emojis
- Foque em credibilidade

REGRAS:
- Máximo 4 parágrafos
- Seja direto ao ponto
- Mencione credenciais ou cases relevantes`,
}

// channelSpec constrains a copy to its channel's format.
type channelSpec struct {
	maxChars int
	include  string
	format   string
}

var channelSpecs = map[string]channelSpec{
	ChannelEmail: {
		maxChars: 1500,
		include:  "Assunto do email (linha separada no início)",
		format:   "Email profissional com saudação e assinatura",
	},
	ChannelLinkedIn: {
		maxChars: 300,
		include:  "Pedido de conexão breve",
		format:   "Mensagem curta e direta para InMail/conexão",
	},
	ChannelWhatsApp: {
		maxChars: 500,
		include:  "Pode usar emojis com moderação",
		format:   "Mensagem conversacional, como se fosse para um conhecido profissional",
	},
}

// buildPrompt assembles the generation prompt for one contact and channel.
func buildPrompt(tone, channel, contactName, companyName, title, techs string) string {
	base, ok := tonePrompts[tone]
	if !ok {
		base = tonePrompts[ToneConsultivo]
	}
	spec, ok := channelSpecs[channel]
	if !ok {
		spec = channelSpecs[ChannelEmail]
	}

	prompt := fmt.Sprintf(base, channel, contactName, companyName, title, techs)
	prompt += fmt.Sprintf(`

ESPECIFICAÇÕES DO CANAL (%s):
- Máximo %d caracteres
- %s
- Formato: %s

Responda APENAS com a copy, sem explicações.`,
		strings.ToUpper(channel), spec.maxChars, spec.include, spec.format)
	return prompt
}

// techHighlights picks the technologies worth citing in a copy: top two
// marketing tools, the CMS and the ecommerce platform.
func techHighlights(summary map[string][]string) string {
	var techs []string
	if m := summary["marketing"]; len(m) > 0 {
		if len(m) > 2 {
			m = m[:2]
		}
		techs = append(techs, m...)
	}
	if c := summary["cms"]; len(c) > 0 {
		techs = append(techs, c[0])
	}
	if e := summary["ecommerce"]; len(e) > 0 {
		techs = append(techs, e[0])
	}
	if len(techs) == 0 {
		return "não identificadas"
	}
	return strings.Join(techs, ", ")
}

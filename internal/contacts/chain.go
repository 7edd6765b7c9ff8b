package contacts

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/resilience"
)

const defaultTarget = 5

// Chain walks strategies in priority order, deduplicating across them, and
// truncates to the target only after the whole chain has run so that
// higher-trust strategies win on truncation.
//
// Each strategy runs behind its own circuit breaker: a paid provider that
// keeps failing transiently is skipped for a cooldown instead of burning a
// call per lead.
type Chain struct {
	strategies []Strategy
	target     int
	breakers   *resilience.BreakerSet
}

// NewChain creates a Chain. A zero target falls back to the default of 5.
func NewChain(target int, strategies ...Strategy) *Chain {
	if target <= 0 {
		target = defaultTarget
	}
	return &Chain{
		strategies: strategies,
		target:     target,
		breakers:   resilience.NewBreakerSet(resilience.BreakerConfig{}),
	}
}

// Resolve runs the chain for one company. Strategies are consulted only
// while the unique-contact count is below the target; each failure is logged
// and the next strategy still runs.
func (c *Chain) Resolve(ctx context.Context, company Company) []model.Contact {
	log := zap.L().With(zap.String("domain", company.Domain))

	var resolved []model.Contact
	seenIDs := map[string]bool{}
	seenNames := map[string]bool{}

	for _, strat := range c.strategies {
		if len(resolved) >= c.target {
			break
		}

		found, err := resilience.BreakVal(ctx, c.breakers.Get(strat.Name()),
			func(ctx context.Context) ([]model.Contact, error) {
				return strat.Resolve(ctx, company)
			})
		if err != nil {
			if eris.Is(err, resilience.ErrCircuitOpen) {
				log.Debug("contact strategy circuit open, skipping",
					zap.String("strategy", strat.Name()))
			} else {
				log.Warn("contact strategy failed",
					zap.String("strategy", strat.Name()), zap.Error(err))
			}
			continue
		}

		added := 0
		for _, contact := range found {
			key := identityKey(contact)
			nk := nameKey(contact.Name)
			if key == "" && nk == "" {
				continue
			}
			if (key != "" && seenIDs[key]) || (nk != "" && seenNames[nk]) {
				continue
			}
			if key != "" {
				seenIDs[key] = true
			}
			if nk != "" {
				seenNames[nk] = true
			}

			contact.IdentityKey = key
			if contact.Source == "" {
				contact.Source = strat.Name()
			}
			resolved = append(resolved, contact)
			added++
		}
		log.Debug("contact strategy done",
			zap.String("strategy", strat.Name()),
			zap.Int("found", len(found)), zap.Int("added", added))
	}

	if len(resolved) > c.target {
		resolved = resolved[:c.target]
	}
	return resolved
}

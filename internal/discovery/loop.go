// Package discovery implements the retry-with-exclusion search loop that
// turns a free-text prospecting request into newly-seen lead domains.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/model"
	"github.com/caracol-labs/salesmachine/internal/store"
)

// Request is one prospecting request entering the loop.
type Request struct {
	Prompt      string
	Query       string
	RequesterID string
}

// Result summarizes one loop run for the requester notification.
type Result struct {
	New      int
	Known    int
	NewNames []string
	Rounds   int
}

// EmitFunc publishes a newly created lead downstream.
type EmitFunc func(ctx context.Context, lead model.Lead, candidate Candidate) error

// Options bound the loop.
type Options struct {
	Freshness      time.Duration
	MaxRetries     int
	MinNewPerRound int
	MaxExclusions  int
}

// Loop runs discovery rounds until the retry budget is spent, a round yields
// nothing, or enough new candidates were found.
type Loop struct {
	searcher  Searcher
	store     store.Store
	blacklist Blacklist
	emit      EmitFunc
	opts      Options
}

// NewLoop creates a Loop. Zero option fields fall back to defaults.
func NewLoop(searcher Searcher, st store.Store, blacklist Blacklist, emit EmitFunc, opts Options) *Loop {
	if opts.Freshness == 0 {
		opts.Freshness = 60 * 24 * time.Hour
	}
	if opts.MinNewPerRound == 0 {
		opts.MinNewPerRound = 2
	}
	if opts.MaxExclusions == 0 {
		opts.MaxExclusions = 15
	}
	return &Loop{searcher: searcher, store: st, blacklist: blacklist, emit: emit, opts: opts}
}

// attemptState carries the loop's progress across rounds.
type attemptState struct {
	round      int
	exclusions []string
	seenNames  map[string]bool
	result     Result
}

// exclude records a known company name once, case-insensitively, keeping the
// original spelling for display in the retry prompt.
func (s *attemptState) exclude(name string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || s.seenNames[key] {
		return
	}
	s.seenNames[key] = true
	s.exclusions = append(s.exclusions, strings.TrimSpace(name))
}

// Run executes the loop for one request.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("query", req.Query), zap.String("requester", req.RequesterID))
	state := &attemptState{seenNames: map[string]bool{}}

	for state.round <= l.opts.MaxRetries {
		prompt := req.Prompt
		if state.round > 0 && len(state.exclusions) > 0 {
			names := state.exclusions
			if len(names) > l.opts.MaxExclusions {
				names = names[:l.opts.MaxExclusions]
			}
			prompt += fmt.Sprintf("\n\nIMPORTANTE: Busque OUTRAS empresas. NÃO inclua estas: %s.",
				strings.Join(names, ", "))
		}

		candidates, err := l.searcher.Search(ctx, prompt)
		if err != nil {
			// Ends the run with whatever was emitted so far; a nack here
			// would replay leads already sent downstream.
			log.Warn("discovery search failed", zap.Int("round", state.round), zap.Error(err))
			break
		}
		if len(candidates) == 0 {
			log.Info("discovery round yielded no candidates", zap.Int("round", state.round))
			break
		}

		newInRound := l.processRound(ctx, log, req, candidates, state)

		if newInRound < l.opts.MinNewPerRound && state.round < l.opts.MaxRetries {
			state.round++
			continue
		}
		break
	}

	state.result.Rounds = state.round + 1
	return &state.result, nil
}

func (l *Loop) processRound(ctx context.Context, log *zap.Logger, req Request, candidates []Candidate, state *attemptState) int {
	newInRound := 0
	for _, cand := range candidates {
		domain := NormalizeDomain(cand.Website)
		if domain == "" {
			continue
		}
		if l.blacklist.Blocked(domain) {
			log.Debug("candidate blacklisted", zap.String("domain", domain))
			continue
		}

		name := cand.Name
		if name == "" {
			name = domain
		}

		fresh, err := l.store.IsFresh(ctx, domain, l.opts.Freshness)
		if err != nil {
			// Fail closed: a store error must not trigger a duplicate paid
			// pipeline run for a lead we may already have.
			log.Warn("freshness check failed, treating as known",
				zap.String("domain", domain), zap.Error(err))
			fresh = true
		}
		if fresh {
			state.result.Known++
			state.exclude(name)
			continue
		}

		lead, err := l.store.CreateLead(ctx, domain, req.Query, req.RequesterID)
		if err != nil {
			log.Error("create lead failed", zap.String("domain", domain), zap.Error(err))
			continue
		}
		if err := l.emit(ctx, *lead, cand); err != nil {
			log.Error("emit lead failed", zap.String("domain", domain), zap.Error(err))
			continue
		}

		state.result.New++
		state.result.NewNames = append(state.result.NewNames, fmt.Sprintf("%s (%s)", name, domain))
		newInRound++
	}
	return newInRound
}

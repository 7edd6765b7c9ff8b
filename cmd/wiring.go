package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/caracol-labs/salesmachine/internal/bus"
	"github.com/caracol-labs/salesmachine/internal/contacts"
	"github.com/caracol-labs/salesmachine/internal/copies"
	"github.com/caracol-labs/salesmachine/internal/discovery"
	"github.com/caracol-labs/salesmachine/internal/fingerprint"
	"github.com/caracol-labs/salesmachine/internal/pipeline"
	"github.com/caracol-labs/salesmachine/internal/store"
	"github.com/caracol-labs/salesmachine/pkg/anthropic"
	"github.com/caracol-labs/salesmachine/pkg/apollo"
	"github.com/caracol-labs/salesmachine/pkg/brasilapi"
	"github.com/caracol-labs/salesmachine/pkg/crust"
	"github.com/caracol-labs/salesmachine/pkg/datastone"
	"github.com/caracol-labs/salesmachine/pkg/lusha"
	"github.com/caracol-labs/salesmachine/pkg/perplexity"
	"github.com/caracol-labs/salesmachine/pkg/serper"
	"github.com/caracol-labs/salesmachine/pkg/telegram"
	"github.com/caracol-labs/salesmachine/pkg/wappalyzer"
)

// pipelineEnv bundles the wired pipeline with the resources that need
// closing on shutdown.
type pipelineEnv struct {
	Store     store.Store
	Publisher *bus.KafkaPublisher
	Pipeline  *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Publisher != nil {
		e.Publisher.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect postgres")
		}
		st = store.NewPostgres(pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// initPipeline wires every stage dependency from config. Workers share the
// same construction and only differ in which handler their consumer drives.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	pub, err := bus.NewPublisher(cfg.Bus.Brokers)
	if err != nil {
		st.Close()
		return nil, err
	}

	titles, err := contacts.LoadTitleSets(cfg.Contacts.ChainFile)
	if err != nil {
		pub.Close()
		st.Close()
		return nil, err
	}

	crustClient := crust.NewClient(cfg.Crust.Key, crust.WithBaseURL(cfg.Crust.BaseURL))
	apolloClient := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
	serpClient := serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL))
	serpLimiter := rate.NewLimiter(rate.Limit(cfg.Serper.MaxCalls), cfg.Serper.MaxCalls)

	engine := fingerprint.NewEngine(
		fingerprint.NewFetcher(fingerprint.FetcherOptions{
			FetchTimeout:     time.Duration(cfg.Fingerprint.FetchTimeoutSecs) * time.Second,
			ExtraPageTimeout: time.Duration(cfg.Fingerprint.ExtraPageTimeoutSecs) * time.Second,
			ExtraPages:       cfg.Fingerprint.ExtraPages,
			MaxHTMLBytes:     cfg.Fingerprint.MaxHTMLBytes,
		}),
		wappalyzer.NewClient(cfg.Wappalyzer.Key, wappalyzer.WithBaseURL(cfg.Wappalyzer.BaseURL)),
	)

	p := pipeline.New(pipeline.Deps{
		Store:       st,
		Publisher:   pub,
		TopicPrefix: cfg.Bus.TopicPrefix,
		Notifier: pipeline.NewTelegramNotifier(
			telegram.NewClient(cfg.Telegram.Token, telegram.WithBaseURL(cfg.Telegram.BaseURL)),
		),

		Searcher: discovery.NewPerplexitySearcher(perplexity.NewClient(
			cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)),
		Blacklist: discovery.NewBlacklist(cfg.Discovery.Blacklist),
		DiscoveryOpts: discovery.Options{
			Freshness:      time.Duration(cfg.Discovery.FreshnessDays) * 24 * time.Hour,
			MaxRetries:     cfg.Discovery.MaxRetries,
			MinNewPerRound: cfg.Discovery.MinNewPerRound,
			MaxExclusions:  cfg.Discovery.MaxExclusions,
		},

		Engine: engine,
		Registry: pipeline.NewRegistryResolver(
			st,
			brasilapi.NewClient(brasilapi.WithBaseURL(cfg.BrasilAPI.BaseURL)),
			serpClient,
			time.Duration(cfg.Registry.CacheTTLDays)*24*time.Hour,
		),
		Profiles: pipeline.NewProfileResolver(crustClient, apolloClient),
		Chain: contacts.BuildChain(
			cfg.Contacts.Target,
			titles,
			crustClient,
			lusha.NewClient(cfg.Lusha.Key, lusha.WithBaseURL(cfg.Lusha.BaseURL)),
			apolloClient,
			datastone.NewClient(cfg.DataStone.Key, datastone.WithBaseURL(cfg.DataStone.BaseURL)),
			serpClient,
			serpLimiter,
		),
		Copies: copies.NewGenerator(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model),
	})

	return &pipelineEnv{Store: st, Publisher: pub, Pipeline: p}, nil
}

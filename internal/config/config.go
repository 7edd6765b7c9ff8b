package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Bus         BusConfig         `yaml:"bus" mapstructure:"bus"`
	Telegram    TelegramConfig    `yaml:"telegram" mapstructure:"telegram"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Wappalyzer  WappalyzerConfig  `yaml:"wappalyzer" mapstructure:"wappalyzer"`
	Crust       CrustConfig       `yaml:"crust" mapstructure:"crust"`
	Apollo      ApolloConfig      `yaml:"apollo" mapstructure:"apollo"`
	Lusha       LushaConfig       `yaml:"lusha" mapstructure:"lusha"`
	Serper      SerperConfig      `yaml:"serper" mapstructure:"serper"`
	BrasilAPI   BrasilAPIConfig   `yaml:"brasilapi" mapstructure:"brasilapi"`
	DataStone   DataStoneConfig   `yaml:"datastone" mapstructure:"datastone"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Discovery   DiscoveryConfig   `yaml:"discovery" mapstructure:"discovery"`
	Fingerprint FingerprintConfig `yaml:"fingerprint" mapstructure:"fingerprint"`
	Contacts    ContactsConfig    `yaml:"contacts" mapstructure:"contacts"`
	Registry    RegistryConfig    `yaml:"registry" mapstructure:"registry"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Memory      MemoryConfig      `yaml:"memory" mapstructure:"memory"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BusConfig configures the Kafka message bus between pipeline stages.
type BusConfig struct {
	Brokers     []string `yaml:"brokers" mapstructure:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix" mapstructure:"topic_prefix"`
	GroupPrefix string   `yaml:"group_prefix" mapstructure:"group_prefix"`
	// MaxInFlight bounds concurrently processed messages per stage worker.
	MaxInFlight map[string]int `yaml:"max_in_flight" mapstructure:"max_in_flight"`
}

// TelegramConfig holds messaging front-end credentials.
type TelegramConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	DebugChatID string `yaml:"debug_chat_id" mapstructure:"debug_chat_id"`
}

// PerplexityConfig holds discovery API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// WappalyzerConfig holds the technology fingerprint database settings.
type WappalyzerConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CrustConfig holds the company/people directory API settings.
type CrustConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ApolloConfig holds the Apollo fallback provider settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LushaConfig holds the Lusha fallback provider settings.
type LushaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerperConfig holds the SERP lookup settings.
type SerperConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxCalls int    `yaml:"max_calls" mapstructure:"max_calls"`
}

// BrasilAPIConfig holds the company registry API settings.
type BrasilAPIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DataStoneConfig holds the person enrichment provider settings.
type DataStoneConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds copy generation model settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// DiscoveryConfig configures the retry-with-exclusion discovery loop.
type DiscoveryConfig struct {
	FreshnessDays  int      `yaml:"freshness_days" mapstructure:"freshness_days"`
	MaxRetries     int      `yaml:"max_retries" mapstructure:"max_retries"`
	MinNewPerRound int      `yaml:"min_new_per_round" mapstructure:"min_new_per_round"`
	MaxExclusions  int      `yaml:"max_exclusions" mapstructure:"max_exclusions"`
	Blacklist      []string `yaml:"blacklist" mapstructure:"blacklist"`
}

// FingerprintConfig configures page fetching and analysis.
type FingerprintConfig struct {
	FetchTimeoutSecs     int      `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	ExtraPageTimeoutSecs int      `yaml:"extra_page_timeout_secs" mapstructure:"extra_page_timeout_secs"`
	ExtraPages           []string `yaml:"extra_pages" mapstructure:"extra_pages"`
	MaxHTMLBytes         int      `yaml:"max_html_bytes" mapstructure:"max_html_bytes"`
}

// ContactsConfig configures the contact resolution chain.
type ContactsConfig struct {
	Target            int    `yaml:"target" mapstructure:"target"`
	ChainFile         string `yaml:"chain_file" mapstructure:"chain_file"`
	SearchTimeoutSecs int    `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
}

// RegistryConfig configures the registry lookup cache.
type RegistryConfig struct {
	CacheTTLDays int `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// ServerConfig configures the callback webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MemoryConfig configures the per-requester sliding-window history.
type MemoryConfig struct {
	WindowSize int `yaml:"window_size" mapstructure:"window_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALESMACHINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "salesmachine.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("bus.brokers", []string{"localhost:9092"})
	v.SetDefault("bus.topic_prefix", "leads")
	v.SetDefault("bus.group_prefix", "salesmachine")
	v.SetDefault("bus.max_in_flight", map[string]int{
		"discovery":   4,
		"fingerprint": 10,
		"decision":    4,
		"enrich":      2,
		"copies":      2,
	})
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("wappalyzer.base_url", "https://api.wappalyzer.com/v2")
	v.SetDefault("crust.base_url", "https://api.crustdata.com")
	v.SetDefault("apollo.base_url", "https://api.apollo.io")
	v.SetDefault("lusha.base_url", "https://api.lusha.com")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.max_calls", 5)
	v.SetDefault("brasilapi.base_url", "https://brasilapi.com.br")
	v.SetDefault("datastone.base_url", "https://api.datastone.com.br")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("discovery.freshness_days", 60)
	v.SetDefault("discovery.max_retries", 1)
	v.SetDefault("discovery.min_new_per_round", 2)
	v.SetDefault("discovery.max_exclusions", 15)
	v.SetDefault("fingerprint.fetch_timeout_secs", 10)
	v.SetDefault("fingerprint.extra_page_timeout_secs", 5)
	v.SetDefault("fingerprint.extra_pages", []string{
		"/contato", "/sobre", "/quem-somos", "/contact", "/about", "/fale-conosco",
	})
	v.SetDefault("fingerprint.max_html_bytes", 500_000)
	v.SetDefault("contacts.target", 5)
	v.SetDefault("contacts.search_timeout_secs", 25)
	v.SetDefault("registry.cache_ttl_days", 180)
	v.SetDefault("memory.window_size", 20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

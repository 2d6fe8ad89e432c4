package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"NewsRelay/internal/infrastructure/scheduler"
)

const (
	configPathEnv      = "NEWSRELAY_CONFIG"
	secretsPathEnv     = "NEWSRELAY_SECRETS"
	databaseDSNEnv     = "DATABASE_DSN"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	geminiAPIKeyEnv    = "GEMINI_API_KEY"
	blueskyHandleEnv   = "BLUESKY_HANDLE"
	blueskyPasswordEnv = "BLUESKY_APP_PASSWORD"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	ollamaHostEnv      = "OLLAMA_HOST"
	logLevelEnv        = "LOG_LEVEL"
)

// Provider and strategy names accepted by Validate.
const (
	SummarizerOpenAI = "openai"
	SummarizerGemini = "gemini"
	SummarizerNone   = "none"

	PublisherBluesky  = "bluesky"
	PublisherTelegram = "telegram"
	PublisherNone     = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Filter     FilterConfig     `yaml:"filter"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Relevance  RelevanceConfig  `yaml:"relevance"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Publish    PublishConfig    `yaml:"publish"`
	Bluesky    BlueskyConfig    `yaml:"bluesky"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Runner     RunnerConfig     `yaml:"runner"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// LoggingConfig selects level, output format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DatabaseConfig points at the item store. Supported schemes are
// postgres://, sqlite:// (or file:) and memory://.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// FetchConfig parameterizes the news search feed.
type FetchConfig struct {
	Query          string `yaml:"query"`
	LookbackDays   int    `yaml:"lookback_days"`
	Language       string `yaml:"language"`
	Country        string `yaml:"country"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FilterConfig lists source allow-lists and banned keywords.
type FilterConfig struct {
	ConfirmedSources       []string `yaml:"confirmed_sources"`
	AcceptedSources        []string `yaml:"accepted_sources"`
	BannedHeadlineKeywords []string `yaml:"banned_headline_keywords"`
	BannedURLKeywords      []string `yaml:"banned_url_keywords"`
}

// DedupConfig tunes the optional semantic duplicate check.
type DedupConfig struct {
	Semantic SemanticConfig `yaml:"semantic"`
}

// SemanticConfig enables embedding similarity between headlines.
type SemanticConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Threshold   float64 `yaml:"threshold"`
	RecentLimit int     `yaml:"recent_limit"`
}

// ScrapeConfig controls publisher page fetching.
type ScrapeConfig struct {
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	Retries           int      `yaml:"retries"`
	RetryDelaySeconds float64  `yaml:"retry_delay_seconds"`
	UserAgent         string   `yaml:"user_agent"`
	MinTextLength     int      `yaml:"min_text_length"`
	Strategies        []string `yaml:"strategies"`
}

// SummarizerConfig defines how summaries are produced.
type SummarizerConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	MaxLength      int    `yaml:"max_length"`
	RetryCount     int    `yaml:"retry_count"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RelevanceConfig selects the topic relevance strategy.
type RelevanceConfig struct {
	Strategy  string   `yaml:"strategy"`
	Keywords  []string `yaml:"keywords"`
	Threshold float64  `yaml:"threshold"`
}

// EmbeddingConfig points at an Ollama-compatible embeddings endpoint.
type EmbeddingConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// PublishConfig governs pacing and retry of outbound posts.
type PublishConfig struct {
	Provider            string `yaml:"provider"`
	PostIntervalMinutes int    `yaml:"post_interval_minutes"`
	MaxAttempts         int    `yaml:"max_attempts"`
	MaxAgeHours         int    `yaml:"max_age_hours"`
	DryRun              bool   `yaml:"dry_run"`
	Language            string `yaml:"language"`
}

// BlueskyConfig holds the account used for posting.
type BlueskyConfig struct {
	Host        string `yaml:"host"`
	Handle      string `yaml:"handle"`
	AppPassword string `yaml:"app_password"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	BaseURL  string `yaml:"base_url"`
}

// PipelineConfig bounds per-item work.
type PipelineConfig struct {
	MaxStageAttempts    int `yaml:"max_stage_attempts"`
	MaxItemsPerRun      int `yaml:"max_items_per_run"`
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
}

// RunnerConfig defines the continuous runner loop.
type RunnerConfig struct {
	Interval      string `yaml:"interval"`
	MaxIterations int    `yaml:"max_iterations"`
	StopOnError   bool   `yaml:"stop_on_error"`
}

// MonitoringConfig enables the health and metrics endpoint when ListenAddr is set.
type MonitoringConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads the YAML configuration and secrets overlay (if present) and
// applies environment overrides. Empty paths fall back to the
// NEWSRELAY_CONFIG and NEWSRELAY_SECRETS variables. A missing file leaves
// the defaults in place; a malformed one is an error.
func Load(path, secretsPath string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if secretsPath == "" {
		secretsPath = os.Getenv(secretsPathEnv)
	}

	for _, p := range []string{path, secretsPath} {
		if err := overlayFile(&cfg, p); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// overlayFile decodes a YAML document onto cfg; keys absent from the file
// keep their current values, nested sections merge key by key.
func overlayFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("config: %s not found, keeping defaults", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" && c.Summarizer.Provider != SummarizerGemini {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv(geminiAPIKeyEnv); v != "" && c.Summarizer.Provider == SummarizerGemini {
		c.Summarizer.APIKey = v
	}

	if v := os.Getenv(blueskyHandleEnv); v != "" {
		c.Bluesky.Handle = v
	}
	if v := os.Getenv(blueskyPasswordEnv); v != "" {
		c.Bluesky.AppPassword = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(ollamaHostEnv); v != "" {
		c.Embedding.Host = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		add("database.dsn is required")
	}
	if strings.TrimSpace(c.Fetch.Query) == "" {
		add("fetch.query is required")
	}
	if c.Fetch.LookbackDays < 0 {
		add("fetch.lookback_days must not be negative")
	}

	if c.Summarizer.MaxLength <= 0 {
		add("summarizer.max_length must be positive")
	}
	if c.Summarizer.RetryCount < 0 {
		add("summarizer.retry_count must not be negative")
	}
	switch c.Summarizer.Provider {
	case SummarizerOpenAI, SummarizerGemini:
		if c.Summarizer.APIKey == "" {
			log.Printf("config: summarizer %s has no api key, summaries fall back to headlines", c.Summarizer.Provider)
		}
	case SummarizerNone:
	default:
		add("unknown summarizer.provider %q", c.Summarizer.Provider)
	}

	switch c.Relevance.Strategy {
	case "", "substring", "disabled":
	case "embedding":
		if c.Embedding.Host == "" {
			add("relevance.strategy embedding requires embedding.host")
		}
	default:
		add("unknown relevance.strategy %q", c.Relevance.Strategy)
	}

	sem := c.Dedup.Semantic
	if sem.Threshold < 0 || sem.Threshold > 1 {
		add("dedup.semantic.threshold must be within [0,1]")
	}
	if sem.Enabled && c.Embedding.Host == "" {
		add("dedup.semantic requires embedding.host")
	}

	if c.Publish.PostIntervalMinutes < 0 {
		add("publish.post_interval_minutes must not be negative")
	}
	if c.Publish.MaxAttempts < 1 {
		add("publish.max_attempts must be at least 1")
	}
	switch c.Publish.Provider {
	case PublisherBluesky:
		if !c.Publish.DryRun && (c.Bluesky.Handle == "" || c.Bluesky.AppPassword == "") {
			add("bluesky publisher requires bluesky.handle and bluesky.app_password")
		}
	case PublisherTelegram:
		if !c.Publish.DryRun && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
			add("telegram publisher requires telegram.bot_token and telegram.chat_id")
		}
	case PublisherNone:
	default:
		add("unknown publish.provider %q", c.Publish.Provider)
	}

	if c.Pipeline.MaxStageAttempts < 1 {
		add("pipeline.max_stage_attempts must be at least 1")
	}
	if _, err := c.Runner.IntervalDuration(); err != nil {
		add("runner.interval: %v", err)
	}

	return errors.Join(errs...)
}

// IntervalDuration parses the runner interval (30s, 5m, 2h or bare seconds).
func (r RunnerConfig) IntervalDuration() (time.Duration, error) {
	return scheduler.ParseInterval(r.Interval)
}

// PostInterval is the minimum spacing between successful posts.
func (p PublishConfig) PostInterval() time.Duration {
	return time.Duration(p.PostIntervalMinutes) * time.Minute
}

// MaxAge is the oldest item still worth posting; zero disables the check.
func (p PublishConfig) MaxAge() time.Duration {
	return time.Duration(p.MaxAgeHours) * time.Hour
}

// Lookback converts the search window to a duration.
func (f FetchConfig) Lookback() time.Duration {
	return time.Duration(f.LookbackDays) * 24 * time.Hour
}

// Default mirrors the settings a fresh deployment starts from.
func Default() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{DSN: "sqlite://newsrelay.db"},
		Fetch: FetchConfig{
			LookbackDays:   1,
			Language:       "en",
			Country:        "US",
			TimeoutSeconds: 30,
		},
		Dedup: DedupConfig{Semantic: SemanticConfig{Threshold: 0.9, RecentLimit: 200}},
		Scrape: ScrapeConfig{
			TimeoutSeconds:    30,
			Retries:           3,
			RetryDelaySeconds: 1,
			MinTextLength:     50,
		},
		Summarizer: SummarizerConfig{
			Provider:       SummarizerOpenAI,
			Model:          "gpt-4o-mini",
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			MaxLength:      300,
			RetryCount:     2,
			TimeoutSeconds: 30,
		},
		Relevance: RelevanceConfig{Strategy: "substring", Threshold: 0.5},
		Embedding: EmbeddingConfig{Host: "", Model: "nomic-embed-text"},
		Publish: PublishConfig{
			Provider:            PublisherBluesky,
			PostIntervalMinutes: 30,
			MaxAttempts:         3,
			Language:            "en",
		},
		Bluesky:  BlueskyConfig{Host: "https://bsky.social"},
		Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		Pipeline: PipelineConfig{MaxStageAttempts: 3, StageTimeoutSeconds: 120},
		Runner:   RunnerConfig{Interval: "30m"},
	}
}

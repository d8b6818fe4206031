package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/skill-translator/pkg/icron"
	"github.com/MimeLyc/skill-translator/pkg/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Config holds all application configuration. It is built once at start-up
// and passed to each component's constructor.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML config file, a .env file in the working directory, and the process
// environment.
//
// Provider:
// - LLM_API_KEY (alias OPENAI_API_KEY): API key for the provider
// - LLM_API_URL (alias OPENAI_BASE_URL): default https://api.openai.com/v1
// - LLM_MODEL (alias OPENAI_MODEL): default gpt-4o-mini
// - LLM_MAX_TOKENS (alias MAX_TOKENS): default 16000
// - LLM_TEMPERATURE: default 0.3
// - LLM_SITE_URL, LLM_APP_NAME: optional attribution headers
//
// HTTP:
// - HOST: default 127.0.0.1
// - PORT: default 8080
// - LOCAL_API_BEARER: bearer token; empty leaves the API open
//
// Translation:
// - TRANSLATOR_VERSION: default 1.0.0
// - SOURCE_LANGUAGE / TARGET_LANGUAGE: default en / zh-CN
// - MAX_CONCURRENT_TRANSLATIONS: provider call permits, default 5
// - TRANSLATION_TIMEOUT_SECONDS: per provider call, default 600
// - DOCUMENT_TIMEOUT_SECONDS: per document, default 1800
// - MAX_RETRIES: attempts per call, default 3
// - RETRY_DELAY_SECONDS: first backoff, default 2
// - MAX_LINE_LENGTH: longer lines are dropped, default 5000
// - CHUNK_SIZE: prose characters per provider call, default 4000
// - BATCH_PARALLELISM: documents in flight per batch, default 4
// - GLOSSARY_DIR: directory of term_map.<src>-<tgt>.json files
// - PROTECTED_TERMS: comma-separated names never translated
//
// Cache:
// - CACHE_DB_PATH: default ./data/cache.db
// - CACHE_MAX_AGE_DAYS: default 30
// - CACHE_CLEANUP_CRON: default "0 1 * * *"
// - CACHE_BACKUP_ON_START: default true
//
// - LOG_LEVEL: debug, info, warn or error; default info
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	HTTP      HTTPConfig      `json:"http"`
	Translate TranslateConfig `json:"translate"`
	Cache     CacheConfig     `json:"cache"`
	Log       LogConfig       `json:"log"`
}

// LLMConfig holds the configuration for LLM client
type LLMConfig struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url,omitempty"`
	AppName     string  `json:"app_name,omitempty"`
}

// Configured reports whether an API key is present.
func (c LLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type HTTPConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Bearer       string `json:"-"`
	MaxBodyBytes int64  `json:"max_body_bytes"`
}

// Addr is the listen address.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type TranslateConfig struct {
	Version          string        `json:"version"`
	SourceLanguage   language.Tag  `json:"source_language"`
	TargetLanguage   language.Tag  `json:"target_language"`
	MaxConcurrent    int           `json:"max_concurrent"`
	CallTimeout      time.Duration `json:"call_timeout"`
	DocumentTimeout  time.Duration `json:"document_timeout"`
	MaxAttempts      int           `json:"max_attempts"`
	RetryDelay       time.Duration `json:"retry_delay"`
	MaxLineLength    int           `json:"max_line_length"`
	ChunkSize        int           `json:"chunk_size"`
	BatchParallelism int           `json:"batch_parallelism"`
	GlossaryDir      string        `json:"glossary_dir,omitempty"`
	ProtectedTerms   []string      `json:"protected_terms"`
}

type CacheConfig struct {
	DBPath        string `json:"db_path"`
	MaxAgeDays    int    `json:"max_age_days"`
	CleanupCron   string `json:"cleanup_cron"`
	BackupOnStart bool   `json:"backup_on_start"`
}

// MaxAge is the idle time after which an entry expires.
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

type LogConfig struct {
	Level string `json:"level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// String renders the configuration without secrets.
func (c *Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config(%v)", err)
	}
	return string(data)
}

var defaults = map[string]any{
	"llm_api_url":                 "https://api.openai.com/v1",
	"llm_model":                   "gpt-4o-mini",
	"llm_max_tokens":              16000,
	"llm_temperature":             0.3,
	"host":                        "127.0.0.1",
	"port":                        8080,
	"max_body_bytes":              32 << 20,
	"translator_version":          "1.0.0",
	"source_language":             "en",
	"target_language":             "zh-CN",
	"max_concurrent_translations": 5,
	"translation_timeout_seconds": 600,
	"document_timeout_seconds":    1800,
	"max_retries":                 3,
	"retry_delay_seconds":         2,
	"max_line_length":             5000,
	"chunk_size":                  4000,
	"batch_parallelism":           4,
	"protected_terms":             "OpenClaw,ClawHub,API,CLI",
	"cache_db_path":               "./data/cache.db",
	"cache_max_age_days":          30,
	"cache_cleanup_cron":          "0 1 * * *",
	"cache_backup_on_start":       true,
	"log_level":                   "info",
}

var aliases = map[string][]string{
	"llm_api_key":    {"LLM_API_KEY", "OPENAI_API_KEY"},
	"llm_api_url":    {"LLM_API_URL", "OPENAI_BASE_URL"},
	"llm_model":      {"LLM_MODEL", "OPENAI_MODEL"},
	"llm_max_tokens": {"LLM_MAX_TOKENS", "MAX_TOKENS"},
}

// NewFromEnv builds the configuration from defaults, .env and the
// environment, then applies opts and validates the result.
func NewFromEnv(opts ...Option) (*Config, error) {
	return Load("", opts...)
}

// Load is NewFromEnv with an optional YAML config file underneath the
// environment. Keys in the file are the lower-case variable names, e.g.
// "llm_model".
func Load(configFile string, opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Ignoring .env: %v", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	callTimeout := v.GetInt("translation_timeout_seconds")
	config := &Config{
		LLM: LLMConfig{
			APIKey:      v.GetString("llm_api_key"),
			APIURL:      v.GetString("llm_api_url"),
			Model:       v.GetString("llm_model"),
			MaxTokens:   v.GetInt("llm_max_tokens"),
			Temperature: v.GetFloat64("llm_temperature"),
			Timeout:     callTimeout,
			SiteURL:     v.GetString("llm_site_url"),
			AppName:     v.GetString("llm_app_name"),
		},
		HTTP: HTTPConfig{
			Host:         v.GetString("host"),
			Port:         v.GetInt("port"),
			Bearer:       v.GetString("local_api_bearer"),
			MaxBodyBytes: v.GetInt64("max_body_bytes"),
		},
		Translate: TranslateConfig{
			Version:          v.GetString("translator_version"),
			MaxConcurrent:    v.GetInt("max_concurrent_translations"),
			CallTimeout:      time.Duration(callTimeout) * time.Second,
			DocumentTimeout:  time.Duration(v.GetInt("document_timeout_seconds")) * time.Second,
			MaxAttempts:      v.GetInt("max_retries"),
			RetryDelay:       time.Duration(v.GetFloat64("retry_delay_seconds") * float64(time.Second)),
			MaxLineLength:    v.GetInt("max_line_length"),
			ChunkSize:        v.GetInt("chunk_size"),
			BatchParallelism: v.GetInt("batch_parallelism"),
			GlossaryDir:      v.GetString("glossary_dir"),
			ProtectedTerms:   splitList(v.GetString("protected_terms")),
		},
		Cache: CacheConfig{
			DBPath:        v.GetString("cache_db_path"),
			MaxAgeDays:    v.GetInt("cache_max_age_days"),
			CleanupCron:   v.GetString("cache_cleanup_cron"),
			BackupOnStart: v.GetBool("cache_backup_on_start"),
		},
		Log: LogConfig{
			Level: v.GetString("log_level"),
		},
	}

	var err error
	if config.Translate.SourceLanguage, err = parseLanguage("SOURCE_LANGUAGE", v.GetString("source_language")); err != nil {
		return nil, err
	}
	if config.Translate.TargetLanguage, err = parseLanguage("TARGET_LANGUAGE", v.GetString("target_language")); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: %v", config)
	return config, nil
}

func parseLanguage(name, value string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return language.Und, fmt.Errorf("%s %q is not a valid language tag: %w", name, value, err)
	}
	return tag, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.HTTP.Port > 0 && c.HTTP.Port < 65536, "PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	check(c.HTTP.MaxBodyBytes > 0, "MAX_BODY_BYTES must be positive")
	check(c.Translate.Version != "", "TRANSLATOR_VERSION is required")
	check(c.Translate.MaxConcurrent >= 1, "MAX_CONCURRENT_TRANSLATIONS must be at least 1")
	check(c.Translate.CallTimeout > 0, "TRANSLATION_TIMEOUT_SECONDS must be positive")
	check(c.Translate.DocumentTimeout > 0, "DOCUMENT_TIMEOUT_SECONDS must be positive")
	check(c.Translate.MaxAttempts >= 1, "MAX_RETRIES must be at least 1")
	check(c.Translate.RetryDelay >= 0, "RETRY_DELAY_SECONDS must not be negative")
	check(c.Translate.MaxLineLength > 0, "MAX_LINE_LENGTH must be positive")
	check(c.Translate.ChunkSize > 0, "CHUNK_SIZE must be positive")
	check(c.Translate.BatchParallelism >= 1, "BATCH_PARALLELISM must be at least 1")
	check(c.LLM.MaxTokens > 0, "LLM_MAX_TOKENS must be positive")
	check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "LLM_TEMPERATURE must be between 0 and 2")
	check(strings.TrimSpace(c.Cache.DBPath) != "", "CACHE_DB_PATH is required")
	check(c.Cache.MaxAgeDays >= 1, "CACHE_MAX_AGE_DAYS must be at least 1")
	if err := icron.Validate(c.Cache.CleanupCron); err != nil {
		errs = append(errs, fmt.Errorf("CACHE_CLEANUP_CRON: %w", err))
	}
	return errors.Join(errs...)
}

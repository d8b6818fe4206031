package service

import (
	"context"
	"time"

	"github.com/MimeLyc/skill-translator/internal/cache"
	"github.com/MimeLyc/skill-translator/internal/config"
	"github.com/MimeLyc/skill-translator/internal/document"
	"github.com/MimeLyc/skill-translator/internal/glossary"
	"github.com/MimeLyc/skill-translator/pkg/retry"
)

// Cache is the part of *cache.Store the service depends on.
type Cache interface {
	Lookup(ctx context.Context, id cache.Identity) (cache.Entry, bool, error)
	Store(ctx context.Context, id cache.Identity, translated string, meta cache.Metadata) error
	Touch(ctx context.Context, id cache.Identity) (bool, error)
	Purge(ctx context.Context, expiredOnly bool) (int64, error)
	Stats(ctx context.Context) (cache.Stats, error)
	Ping(ctx context.Context) error
}

// GlossarySource returns the glossary for a language pair.
type GlossarySource interface {
	For(sourceLang, targetLang string) glossary.Glossary
}

// StaticGlossary serves the same glossary for every language pair.
type StaticGlossary glossary.Glossary

func (g StaticGlossary) For(string, string) glossary.Glossary {
	return glossary.Glossary(g)
}

// Document is one source file submitted for translation.
type Document struct {
	Path    string
	Content []byte
	// ContentHash is "sha256:<hex>" of Content. It is computed when empty.
	ContentHash string
}

// Options override the configured languages for one request.
type Options struct {
	SourceLanguage string
	TargetLanguage string
	// ForceRefresh skips the cache lookup; the fresh result still replaces
	// the cached entry.
	ForceRefresh bool
}

type Result struct {
	Content        string
	ContentHash    string
	TranslatedHash string
	Cached         bool
	Metadata       cache.Metadata
	// Warnings describe degraded but successful processing, such as dropped
	// lines or a failed cache write.
	Warnings []string
}

// OrchestratorConfig holds the settings the orchestrator is built from.
type OrchestratorConfig struct {
	Version          string
	Model            string
	SourceLanguage   string
	TargetLanguage   string
	MaxConcurrent    int
	CallTimeout      time.Duration
	DocumentTimeout  time.Duration
	BatchParallelism int
	Retry            retry.Policy
	Parse            document.Options
}

// OrchestratorConfigFrom maps the application configuration.
func OrchestratorConfigFrom(cfg config.Config) OrchestratorConfig {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Translate.MaxAttempts
	if cfg.Translate.RetryDelay > 0 {
		policy.InitialDelay = cfg.Translate.RetryDelay
	}
	return OrchestratorConfig{
		Version:          cfg.Translate.Version,
		Model:            cfg.LLM.Model,
		SourceLanguage:   cfg.Translate.SourceLanguage.String(),
		TargetLanguage:   cfg.Translate.TargetLanguage.String(),
		MaxConcurrent:    cfg.Translate.MaxConcurrent,
		CallTimeout:      cfg.Translate.CallTimeout,
		DocumentTimeout:  cfg.Translate.DocumentTimeout,
		BatchParallelism: cfg.Translate.BatchParallelism,
		Retry:            policy,
		Parse: document.Options{
			MaxLineLength: cfg.Translate.MaxLineLength,
			ChunkSize:     cfg.Translate.ChunkSize,
		},
	}
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.SourceLanguage == "" {
		c.SourceLanguage = "en"
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "zh-CN"
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 5
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 600 * time.Second
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 30 * time.Minute
	}
	if c.BatchParallelism < 1 {
		c.BatchParallelism = 4
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry = retry.DefaultPolicy()
	}
	return c
}

package main

import (
	"context"
	"errors"

	"github.com/MimeLyc/skill-translator/internal/cache"
	"github.com/MimeLyc/skill-translator/internal/config"
	"github.com/MimeLyc/skill-translator/internal/glossary"
	"github.com/MimeLyc/skill-translator/internal/llm"
	"github.com/MimeLyc/skill-translator/internal/metrics"
	"github.com/MimeLyc/skill-translator/internal/service"
	"github.com/MimeLyc/skill-translator/internal/translator"
	"github.com/MimeLyc/skill-translator/pkg/log"
)

var errProviderNotConfigured = errors.New("LLM_API_KEY is not configured")

// app holds the components shared by the commands.
type app struct {
	store        *cache.Store
	orchestrator *service.Orchestrator
	metrics      *metrics.Metrics
}

// newApp opens the cache and builds the orchestrator. With degrade set, a
// cache that cannot be opened is logged and the app runs without one;
// otherwise it is an error.
func newApp(cfg *config.Config, degrade bool) (*app, error) {
	a := &app{metrics: metrics.New()}

	if cfg.Cache.BackupOnStart {
		if backup, err := cache.Backup(cfg.Cache.DBPath); err != nil {
			log.Warn("Cache backup failed: %v", err)
		} else if backup != "" {
			log.Info("Backed up cache to %s", backup)
		}
	}

	store, err := cache.Open(cfg.Cache.DBPath, cache.WithMaxAge(cfg.Cache.MaxAge()))
	if err != nil {
		if !degrade {
			return nil, err
		}
		log.Error("Cache unavailable, continuing without it: %v", err)
	} else {
		a.store = store
		log.Info("Cache opened at %s", cfg.Cache.DBPath)
	}

	var c service.Cache
	if a.store != nil {
		c = a.store
	}

	a.orchestrator = service.NewOrchestrator(
		service.OrchestratorConfigFrom(*cfg),
		c,
		newTranslator(cfg),
		service.WithGlossary(glossary.NewLoader(cfg.Translate.GlossaryDir, cfg.Translate.ProtectedTerms)),
		service.WithMetrics(a.metrics),
	)
	return a, nil
}

func newTranslator(cfg *config.Config) translator.Translator {
	if !cfg.LLM.Configured() {
		return translator.Func(func(context.Context, translator.Request) (string, error) {
			return "", errProviderNotConfigured
		})
	}

	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
	if err != nil {
		log.Error("Failed to create LLM client: %v", err)
		return translator.Func(func(context.Context, translator.Request) (string, error) {
			return "", err
		})
	}
	return translator.NewLLMTranslator(client)
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		log.Error("Failed to close cache: %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/skill-translator/internal/cache"
	"github.com/MimeLyc/skill-translator/internal/document"
	"github.com/MimeLyc/skill-translator/internal/glossary"
	"github.com/MimeLyc/skill-translator/internal/llm"
	"github.com/MimeLyc/skill-translator/internal/metrics"
	"github.com/MimeLyc/skill-translator/internal/translator"
	"github.com/MimeLyc/skill-translator/pkg/log"
	"github.com/MimeLyc/skill-translator/pkg/retry"
)

// errSkipped ends a unit that was never dispatched because a sibling failed.
var errSkipped = errors.New("skipped after sibling failure")

// Orchestrator translates whole documents. All documents share one pool of
// provider call permits.
type Orchestrator struct {
	cfg        OrchestratorConfig
	cache      Cache
	translator translator.Translator
	glossary   GlossarySource
	metrics    *metrics.Metrics

	permits *semaphore.Weighted
	flight  singleflight.Group
}

type OrchestratorOption func(*Orchestrator)

func WithGlossary(g GlossarySource) OrchestratorOption {
	return func(o *Orchestrator) {
		o.glossary = g
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator builds an orchestrator. store may be nil, in which case
// every result carries a cache_unavailable warning.
func NewOrchestrator(cfg OrchestratorConfig, store Cache, tr translator.Translator, opts ...OrchestratorOption) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:        cfg,
		cache:      store,
		translator: tr,
		glossary:   StaticGlossary{Protected: glossary.DefaultProtectedTerms},
		permits:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Config() OrchestratorConfig {
	return o.cfg
}

// Cache returns the store, or nil when running without one.
func (o *Orchestrator) Cache() Cache {
	return o.cache
}

// Translate returns the translation of doc, from the cache when possible.
// Concurrent calls for the same identity share one translation, which runs
// to completion even if the caller goes away.
func (o *Orchestrator) Translate(ctx context.Context, doc Document, opts Options) (*Result, error) {
	res, err := o.translate(ctx, doc, opts, !opts.ForceRefresh)
	if err != nil {
		o.metrics.DocumentDone(KindOf(err).String())
		return nil, err
	}
	if res.Cached {
		o.metrics.DocumentDone("cached")
	} else {
		o.metrics.DocumentDone("translated")
	}
	return res, nil
}

func (o *Orchestrator) translate(ctx context.Context, doc Document, opts Options, lookup bool) (*Result, error) {
	req, err := o.prepare(doc, opts)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if lookup {
		res, warning := o.lookup(ctx, req.id)
		if res != nil {
			return res, nil
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	ch := o.flight.DoChan(req.id.Key(), func() (any, error) {
		return o.translateDocument(context.WithoutCancel(ctx), req)
	})

	select {
	case <-ctx.Done():
		return nil, contextError(ctx.Err(), "request cancelled")
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			log.Debug("Shared in-flight translation of %s", req.id)
			o.touch(ctx, req.id)
		}
		res := *r.Val.(*Result)
		res.Warnings = append(warnings, res.Warnings...)
		return &res, nil
	}
}

// request is a validated Document with its resolved languages.
type request struct {
	id      cache.Identity
	content []byte
	source  string
}

func (o *Orchestrator) prepare(doc Document, opts Options) (request, error) {
	if strings.TrimSpace(doc.Path) == "" {
		return request{}, NewError(ErrInvalidInput, "path is required")
	}
	if err := document.Validate(doc.Content); err != nil {
		return request{}, WrapError(err, ErrInvalidInput, "content is not valid UTF-8").WithContext("path", doc.Path)
	}

	hash := strings.TrimSpace(doc.ContentHash)
	if hash == "" {
		hash = cache.HashContent(doc.Content)
	} else if !cache.ValidHash(hash) {
		return request{}, NewError(ErrInvalidInput, "content_hash must be sha256:<64 hex digits>").WithContext("path", doc.Path)
	}

	source, err := resolveLanguage(opts.SourceLanguage, o.cfg.SourceLanguage)
	if err != nil {
		return request{}, WrapError(err, ErrInvalidInput, "invalid source_language")
	}
	target, err := resolveLanguage(opts.TargetLanguage, o.cfg.TargetLanguage)
	if err != nil {
		return request{}, WrapError(err, ErrInvalidInput, "invalid target_language")
	}

	return request{
		id: cache.Identity{
			Path:              doc.Path,
			ContentHash:       hash,
			TargetLanguage:    target,
			TranslatorVersion: o.cfg.Version,
		},
		content: doc.Content,
		source:  source,
	}, nil
}

// resolveLanguage canonicalises a BCP 47 tag so that "zh-cn" and "zh-CN"
// share cache entries.
func resolveLanguage(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// lookup returns the cached result for id, or a warning when the cache could
// not be consulted. Lookup errors count as misses.
func (o *Orchestrator) lookup(ctx context.Context, id cache.Identity) (*Result, string) {
	if o.cache == nil {
		return nil, ""
	}
	entry, ok, err := o.cache.Lookup(ctx, id)
	if err != nil {
		log.Warn("Cache lookup failed for %s: %v", id, err)
		o.metrics.CacheLookup("error")
		return nil, fmt.Sprintf("%s: lookup failed: %v", ErrCacheUnavailable, err)
	}
	if !ok {
		o.metrics.CacheLookup("miss")
		return nil, ""
	}
	o.metrics.CacheLookup("hit")
	log.Debug("Cache hit for %s", id)
	return &Result{
		Content:        entry.TranslatedDocument,
		ContentHash:    id.ContentHash,
		TranslatedHash: entry.TranslatedHash,
		Cached:         true,
		Metadata:       entry.Metadata,
	}, ""
}

// touch counts a request served from a translation another request produced
// as an access of the cached entry. Errors are only logged.
func (o *Orchestrator) touch(ctx context.Context, id cache.Identity) {
	if o.cache == nil {
		return
	}
	if _, err := o.cache.Touch(ctx, id); err != nil {
		log.Warn("Cache touch failed for %s: %v", id, err)
	}
}

func (o *Orchestrator) translateDocument(ctx context.Context, req request) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout)
	defer cancel()

	parsed := document.Parse(req.content, o.cfg.Parse)
	units := parsed.Units()
	gloss := o.glossary.For(req.source, req.id.TargetLanguage)

	var warnings []string
	if parsed.DroppedLines > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped %d line(s) longer than %d characters", parsed.DroppedLines, o.parseMaxLine()))
	}

	outputs := make([]string, len(units))
	translated := make([]bool, len(units))
	var failed atomic.Bool
	var g errgroup.Group
	for i, unit := range units {
		if !unit.NeedsTranslation() {
			continue
		}
		g.Go(func() error {
			out, err := o.translateUnit(ctx, unit, o.unitRequest(unit, req, gloss), &failed)
			if errors.Is(err, errSkipped) {
				return nil
			}
			if err != nil {
				failed.Store(true)
				return err
			}
			outputs[i] = out
			translated[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, o.documentError(ctx, req, err)
	}

	replacements := make(map[int]string, len(parsed.Segments))
	var sourceShape, translatedShape document.Shape
	count := 0
	for i, unit := range units {
		if !translated[i] {
			continue
		}
		count++
		unit.Apply(replacements, outputs[i])
		if !unit.IsField() {
			sourceShape = sourceShape.Add(document.ShapeOf(unit.Source()))
			translatedShape = translatedShape.Add(document.ShapeOf(outputs[i]))
		}
	}
	for _, what := range sourceShape.Diff(translatedShape) {
		warnings = append(warnings, "translation changed the number of "+what)
	}

	content := parsed.Assemble(replacements)
	elapsed := time.Since(start)
	meta := cache.Metadata{
		Model:            o.cfg.Model,
		SourceLanguage:   req.source,
		TargetLanguage:   req.id.TargetLanguage,
		OriginalChars:    utf8.RuneCount(req.content),
		TranslatedChars:  utf8.RuneCountInString(content),
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		Units:            count,
		DroppedLines:     parsed.DroppedLines,
	}
	o.metrics.ObserveDocument(elapsed)

	res := &Result{
		Content:        content,
		ContentHash:    req.id.ContentHash,
		TranslatedHash: cache.HashContent([]byte(content)),
		Metadata:       meta,
	}

	if o.cache == nil {
		warnings = append(warnings, fmt.Sprintf("%s: no cache configured", ErrCacheUnavailable))
	} else if err := o.cache.Store(ctx, req.id, content, meta); err != nil {
		log.Warn("Translated %s but could not cache it: %v", req.id, err)
		warnings = append(warnings, fmt.Sprintf("%s: store failed: %v", ErrCacheUnavailable, err))
	}
	res.Warnings = warnings

	log.Info("Translated %s: %d/%d units, %d code fences kept, in %v",
		req.id, count, len(units), parsed.CountKind(document.KindCodeFence), elapsed.Round(time.Millisecond))
	return res, nil
}

func (o *Orchestrator) parseMaxLine() int {
	if o.cfg.Parse.MaxLineLength > 0 {
		return o.cfg.Parse.MaxLineLength
	}
	return document.DefaultMaxLineLength
}

func (o *Orchestrator) unitRequest(unit document.Unit, req request, gloss glossary.Glossary) translator.Request {
	match := gloss.Match(unit.Text)
	kind := translator.KindProse
	if unit.IsField() {
		kind = translator.KindMetadata
	}
	return translator.Request{
		Text:           unit.Text,
		SourceLanguage: req.source,
		TargetLanguage: req.id.TargetLanguage,
		Kind:           kind,
		ProtectedTerms: match.Protected,
		Glossary:       match.Terms,
		Placeholders:   unit.Placeholders(),
	}
}

// translateUnit runs the provider call for one unit with retries. Every
// attempt holds a permit; backoff sleeps do not.
func (o *Orchestrator) translateUnit(ctx context.Context, unit document.Unit, req translator.Request, failed *atomic.Bool) (string, error) {
	policy := o.cfg.Retry
	policy.OnRetry = func(attempt int, err error) {
		log.Warn("Provider attempt %d/%d failed, retrying: %v", attempt, policy.MaxAttempts, err)
	}

	out, err := retry.DoValue(ctx, policy, func(ctx context.Context, attempt int) (string, error) {
		if failed.Load() {
			return "", retry.Permanent(errSkipped)
		}
		if err := o.permits.Acquire(ctx, 1); err != nil {
			return "", retry.Permanent(err)
		}
		o.metrics.PermitAcquired()
		defer func() {
			o.permits.Release(1)
			o.metrics.PermitReleased()
		}()
		// A sibling may have failed while this unit waited for a permit.
		if failed.Load() {
			return "", retry.Permanent(errSkipped)
		}
		return o.call(ctx, unit, req)
	})
	switch {
	case err == nil || errors.Is(err, errSkipped):
		return out, err
	case ctx.Err() != nil:
		return "", contextError(ctx.Err(), fmt.Sprintf("document exceeded %v", o.cfg.DocumentTimeout))
	case IsErrorKind(err, ErrProviderTransient):
		return "", WrapError(err, ErrProviderFailure, fmt.Sprintf("provider still failing after %d attempts", policy.MaxAttempts))
	}
	return "", err
}

// call makes a single provider attempt and classifies its failure.
func (o *Orchestrator) call(ctx context.Context, unit document.Unit, req translator.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	var out string
	err := SafeExecute(func() error {
		var err error
		out, err = o.translator.Translate(callCtx, req)
		return err
	})
	if IsErrorKind(err, ErrInternal) {
		o.metrics.ProviderCall("panic", time.Since(start))
		return "", retry.Permanent(err)
	}
	if err == nil {
		var restored string
		restored, err = unit.Restore(out)
		if err != nil {
			o.metrics.ProviderCall("malformed", time.Since(start))
			return "", retry.Permanent(WrapError(err, ErrProviderFailure, "provider response could not be restored into the document"))
		}
		o.metrics.ProviderCall("ok", time.Since(start))
		return restored, nil
	}

	switch {
	case ctx.Err() != nil:
		o.metrics.ProviderCall("cancelled", time.Since(start))
		return "", retry.Permanent(err)
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		o.metrics.ProviderCall("timeout", time.Since(start))
		return "", retry.Permanent(WrapError(err, ErrTimeout, fmt.Sprintf("provider call exceeded %v", o.cfg.CallTimeout)))
	case llm.IsTransient(err):
		o.metrics.ProviderCall("transient", time.Since(start))
		return "", WrapError(err, ErrProviderTransient, "provider temporarily unavailable")
	default:
		o.metrics.ProviderCall("failed", time.Since(start))
		return "", retry.Permanent(WrapError(err, ErrProviderFailure, "provider request failed"))
	}
}

// documentError gives a failed document its final kind.
func (o *Orchestrator) documentError(ctx context.Context, req request, err error) error {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		if ctx.Err() != nil {
			err = contextError(ctx.Err(), fmt.Sprintf("document exceeded %v", o.cfg.DocumentTimeout))
		} else {
			err = WrapError(err, ErrInternal, "translation failed")
		}
	}
	log.Error("Failed to translate %s: %v", req.id, err)
	return err
}

func contextError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrTimeout, message)
	}
	return WrapError(err, ErrInternal, message)
}

// Purge removes cache entries. It is a no-op without a cache.
func (o *Orchestrator) Purge(ctx context.Context, expiredOnly bool) (int64, error) {
	if o.cache == nil {
		return 0, nil
	}
	n, err := o.cache.Purge(ctx, expiredOnly)
	if err != nil {
		return 0, WrapError(err, ErrInternal, "cache purge failed")
	}
	o.metrics.Purged(n)
	return n, nil
}

// Stats reports cache statistics.
func (o *Orchestrator) Stats(ctx context.Context) (cache.Stats, error) {
	if o.cache == nil {
		return cache.Stats{}, NewError(ErrInternal, "cache is not available")
	}
	stats, err := o.cache.Stats(ctx)
	if err != nil {
		return cache.Stats{}, WrapError(err, ErrInternal, "cache stats failed")
	}
	return stats, nil
}

// CacheConnected reports whether the cache answers.
func (o *Orchestrator) CacheConnected(ctx context.Context) bool {
	return o.cache != nil && o.cache.Ping(ctx) == nil
}

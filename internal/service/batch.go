package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/skill-translator/pkg/log"
)

type ItemState int

const (
	ItemPending ItemState = iota
	ItemCacheHit
	ItemTranslating
	ItemDone
	ItemFailed
)

func (s ItemState) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemCacheHit:
		return "cache_hit"
	case ItemTranslating:
		return "translating"
	case ItemDone:
		return "done"
	case ItemFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BatchItem is one document of a batch. DecodeErr carries a failure to
// decode the item upstream; such items fail as invalid input without being
// looked at.
type BatchItem struct {
	Document
	DecodeErr error
}

type BatchResult struct {
	Path        string
	ContentHash string
	State       ItemState
	Result      *Result
	Err         error
}

// Succeeded is true for cache hits and completed translations.
func (r BatchResult) Succeeded() bool {
	return r.State == ItemCacheHit || r.State == ItemDone
}

type BatchResponse struct {
	Results        []BatchResult
	TotalFiles     int
	Successful     int
	CachedCount    int
	Failed         int
	ProcessingTime time.Duration
}

// TranslateBatch translates every item and reports each outcome in request
// order. It never fails as a whole. With skipCached, items already in the
// cache resolve without using a provider permit; without it, every item is
// translated afresh.
func (o *Orchestrator) TranslateBatch(ctx context.Context, items []BatchItem, skipCached bool, opts Options) BatchResponse {
	start := time.Now()
	results := make([]BatchResult, len(items))

	var g errgroup.Group
	g.SetLimit(o.cfg.BatchParallelism)

	for i, item := range items {
		results[i] = BatchResult{Path: item.Path, ContentHash: item.ContentHash, State: ItemPending}
		if item.DecodeErr != nil {
			results[i].fail(WrapError(item.DecodeErr, ErrInvalidInput, "content could not be decoded"))
			continue
		}

		var warning string
		if skipCached {
			req, err := o.prepare(item.Document, opts)
			if err != nil {
				results[i].fail(err)
				continue
			}
			var res *Result
			if res, warning = o.lookup(ctx, req.id); res != nil {
				results[i].State = ItemCacheHit
				results[i].Result = res
				continue
			}
		}

		results[i].State = ItemTranslating
		itemOpts := opts
		itemOpts.ForceRefresh = !skipCached
		g.Go(func() error {
			// A panic fails only this item.
			err := SafeExecute(func() error {
				res, err := o.translate(ctx, item.Document, itemOpts, false)
				if err != nil {
					return err
				}
				if warning != "" {
					res.Warnings = append([]string{warning}, res.Warnings...)
				}
				results[i].State = ItemDone
				results[i].Result = res
				return nil
			})
			if err != nil {
				results[i].fail(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := BatchResponse{Results: results, TotalFiles: len(items)}
	for _, r := range results {
		o.metrics.BatchItem(r.State.String())
		switch r.State {
		case ItemCacheHit:
			resp.CachedCount++
			resp.Successful++
		case ItemDone:
			resp.Successful++
		default:
			resp.Failed++
		}
	}
	resp.ProcessingTime = time.Since(start)

	log.Info("Batch of %d: %d successful (%d cached), %d failed in %v",
		resp.TotalFiles, resp.Successful, resp.CachedCount, resp.Failed, resp.ProcessingTime.Round(time.Millisecond))
	return resp
}

func (r *BatchResult) fail(err error) {
	r.State = ItemFailed
	r.Err = err
	log.Warn("Batch item %s failed: %v", r.Path, err)
}

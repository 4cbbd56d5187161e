// Package pipeline is the translation engine: it fans a document's
// segments out to the remote translator with bounded concurrency and
// retry, and drives multi-file jobs with partial-failure semantics and
// cooperative cancellation.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dvelkov/subtrans/internal/job"
	"github.com/dvelkov/subtrans/internal/subdoc"
	"github.com/dvelkov/subtrans/internal/translate"
)

// DefaultWorkers bounds in-flight translation requests per document.
// Kept small to respect endpoint rate limits.
const DefaultWorkers = 4

// Translator is the single-unit translation capability the orchestrator
// dispatches to.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Orchestrator runs one document's segments through the retry policy and
// translator with a fixed-size worker pool.
type Orchestrator struct {
	Translator Translator
	Retry      *Retryer
	Workers    int
	Log        *slog.Logger
}

// NewOrchestrator wires an orchestrator with default retry policy and
// worker count.
func NewOrchestrator(tr Translator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Translator: tr,
		Retry:      NewRetryer(),
		Workers:    DefaultWorkers,
		Log:        log,
	}
}

type segResult struct {
	idx  int
	text string
	err  error
}

// Run dispatches every pending text segment of doc. The cancel flag is
// checked before each dispatch: once set, no new segment starts, units
// already in flight finish, and Run returns after they drain. Segment
// order in doc is never altered; results are indexed back into place.
// The sink receives exactly one event per segment terminal transition,
// from a single goroutine.
//
// The returned error is non-nil only for an authentication failure,
// which also stops further dispatch; transient failures resolve to
// Fallback and never escape.
func (o *Orchestrator) Run(ctx context.Context, doc *subdoc.Document, sourceLang, targetLang, file string, cancel *job.CancelFlag, sink job.Sink) error {
	workers := o.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	total := doc.TextSegments()
	if total == 0 {
		return nil
	}

	results := make(chan segResult, total)
	sem := make(chan struct{}, workers)
	dispatched := 0

	for i := range doc.Segments {
		seg := &doc.Segments[i]
		if seg.Kind != subdoc.KindText || seg.Status != subdoc.StatusPending {
			continue
		}
		if cancel.IsSet() || ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		if cancel.IsSet() || ctx.Err() != nil {
			<-sem
			break
		}
		seg.Status = subdoc.StatusInFlight
		dispatched++
		go func(idx int, text string) {
			defer func() { <-sem }()
			out, err := o.Retry.Attempt(ctx, func(ctx context.Context) (string, error) {
				return o.Translator.Translate(ctx, text, sourceLang, targetLang)
			})
			if err != nil && translate.IsAuth(err) {
				// The credential is shared; stop dispatch everywhere
				// before the collector even sees this result.
				cancel.Set()
			}
			results <- segResult{idx: idx, text: out, err: err}
		}(i, seg.Original)
	}

	var authErr error
	for range dispatched {
		r := <-results
		seg := &doc.Segments[r.idx]
		detail := ""
		switch {
		case r.err == nil && strings.TrimSpace(r.text) != "":
			seg.Translated = r.text
			seg.Status = subdoc.StatusTranslated
		case r.err == nil:
			// The endpoint answered with nothing usable; keep the
			// original text.
			seg.Status = subdoc.StatusFallback
			detail = "empty translation"
		case translate.IsAuth(r.err):
			seg.Status = subdoc.StatusFailed
			detail = r.err.Error()
			authErr = r.err
		default:
			seg.Status = subdoc.StatusFallback
			detail = r.err.Error()
			o.Log.Warn("translation fell back to original",
				"file", file, "segment", seg.ID, "error", r.err)
		}
		sink(job.Event{
			File:      file,
			SegmentID: seg.ID,
			Status:    seg.Status,
			Detail:    detail,
		})
	}

	return authErr
}

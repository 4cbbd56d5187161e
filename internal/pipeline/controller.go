package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvelkov/subtrans/internal/codec"
	"github.com/dvelkov/subtrans/internal/job"
	"github.com/dvelkov/subtrans/internal/subdoc"
)

// DefaultMaxFileBytes caps input file size.
const DefaultMaxFileBytes = 5 * 1024 * 1024

// Controller coordinates one multi-file translation job: per file it
// parses, runs the orchestrator, merges and writes output, sharing a
// single cancellation flag across all files.
type Controller struct {
	Orch *Orchestrator
	Log  *slog.Logger
}

// NewController wires a controller around an orchestrator.
func NewController(orch *Orchestrator, log *slog.Logger) *Controller {
	return &Controller{Orch: orch, Log: log}
}

// Run processes the input files in order. A failure in one file is
// reported in its result and the job continues; an auth failure stops
// dispatch for the rest of the job, though the file it surfaced in is
// still merged and saved. After cancellation, the in-progress file saves
// its partial result and files not yet started follow opts.OnCancel:
// skipped entirely (default) or copied through untranslated.
func (c *Controller) Run(ctx context.Context, paths []string, opts job.Options, cancel *job.CancelFlag, sink job.Sink) []job.FileResult {
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	results := make([]job.FileResult, 0, len(paths))
	authFailed := false

	for _, path := range paths {
		name := filepath.Base(path)

		if authFailed {
			results = append(results, c.report(sink, job.FileResult{
				Path: path, Status: job.FileSkipped, Err: "job aborted: invalid credentials",
				AuthFailure: true,
			}))
			continue
		}
		if cancel.IsSet() || ctx.Err() != nil {
			results = append(results, c.cancelledFile(path, opts, sink))
			continue
		}

		log := c.Log.With("file", name)
		log.Info("processing file", "target_lang", opts.TargetLang)

		res, authErr := c.runFile(ctx, path, opts, cancel, sink)
		if authErr != nil {
			authFailed = true
			log.Error("authentication failed, aborting remaining files", "error", authErr)
		}
		results = append(results, c.report(sink, res))
	}

	return results
}

// runFile translates a single file end to end.
func (c *Controller) runFile(ctx context.Context, path string, opts job.Options, cancel *job.CancelFlag, sink job.Sink) (job.FileResult, error) {
	res := job.FileResult{Path: path}
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		res.Status = job.FileFailed
		res.Err = err.Error()
		return res, nil
	}
	if info.Size() > maxBytes {
		res.Status = job.FileFailed
		res.Err = fmt.Sprintf("file exceeds max size (%d bytes)", maxBytes)
		return res, nil
	}

	cdc, err := codec.ForFile(path)
	if err != nil {
		res.Status = job.FileFailed
		res.Err = err.Error()
		return res, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Status = job.FileFailed
		res.Err = err.Error()
		return res, nil
	}

	doc, err := cdc.Parse(raw)
	if err != nil {
		res.Status = job.FileFailed
		res.Err = "parse: " + err.Error()
		return res, nil
	}
	res.Segments = doc.TextSegments()

	authErr := c.Orch.Run(ctx, doc, opts.SourceLang, opts.TargetLang, filepath.Base(path), cancel, sink)
	if authErr != nil {
		res.AuthFailure = true
	}

	merged := subdoc.Merge(doc)
	outPath := OutputPath(path, opts)
	if err := os.WriteFile(outPath, cdc.Serialize(merged), 0644); err != nil {
		res.Status = job.FileFailed
		res.Err = "write: " + err.Error()
		return res, authErr
	}

	res.OutPath = outPath
	res.Translated = doc.Count(subdoc.StatusTranslated)
	res.Fallback = doc.Count(subdoc.StatusFallback)
	res.Failed = doc.Count(subdoc.StatusFailed)
	if pending := doc.Count(subdoc.StatusPending); pending > 0 || res.Failed > 0 {
		res.Status = job.FilePartial
	} else {
		res.Status = job.FileCompleted
	}
	if authErr != nil {
		res.Err = authErr.Error()
	}
	return res, authErr
}

// cancelledFile applies the OnCancel policy to a file that never started.
func (c *Controller) cancelledFile(path string, opts job.Options, sink job.Sink) job.FileResult {
	if opts.OnCancel != job.CancelCopy {
		return c.report(sink, job.FileResult{Path: path, Status: job.FileSkipped, Err: "cancelled before start"})
	}
	res := job.FileResult{Path: path, Status: job.FileCopied}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Status = job.FileFailed
		res.Err = err.Error()
		return c.report(sink, res)
	}
	outPath := OutputPath(path, opts)
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		res.Status = job.FileFailed
		res.Err = err.Error()
		return c.report(sink, res)
	}
	res.OutPath = outPath
	return c.report(sink, res)
}

// report emits one file-level event and passes the result through.
func (c *Controller) report(sink job.Sink, res job.FileResult) job.FileResult {
	sink(job.Event{
		File:      filepath.Base(res.Path),
		SegmentID: -1,
		Detail:    string(res.Status),
	})
	return res
}

// OutputPath derives where a file's translation is written: the
// configured output directory (default: next to the input) with the
// suffix (default "_translated_<targetLang>") inserted before the
// extension.
func OutputPath(path string, opts job.Options) string {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	suffix := opts.OutputSuffix
	if suffix == "" {
		suffix = "_translated_" + opts.TargetLang
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+suffix+ext)
}

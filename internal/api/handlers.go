package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dvelkov/subtrans/internal/codec"
	"github.com/dvelkov/subtrans/internal/job"
)

// handleSubmit accepts a multipart upload of one or more translatable
// files plus language parameters, stores them in a per-job directory and
// runs the job in the background.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileBytes*10+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	targetLang := r.FormValue("target_lang")
	if targetLang == "" {
		jsonError(w, "target_lang is required", http.StatusBadRequest)
		return
	}
	sourceLang := r.FormValue("source_lang")
	if sourceLang == "" {
		sourceLang = s.cfg.SourceLang
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	dir := filepath.Join(os.TempDir(), "subtrans", jobID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		jsonError(w, "creating job directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var paths []string
	seen := make(map[string]bool, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !codec.IsSupportedExtension(filename) {
			os.RemoveAll(dir)
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return
		}
		if seen[filename] {
			os.RemoveAll(dir)
			jsonError(w, "duplicate filename: "+filename, http.StatusBadRequest)
			return
		}
		seen[filename] = true
		f, err := fh.Open()
		if err != nil {
			os.RemoveAll(dir)
			jsonError(w, "failed to open upload "+filename, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxFileBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxFileBytes {
			os.RemoveAll(dir)
			jsonError(w, fmt.Sprintf("%s exceeds max size (%d bytes)", filename, s.cfg.MaxFileBytes), http.StatusRequestEntityTooLarge)
			return
		}
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, data, 0600); err != nil {
			os.RemoveAll(dir)
			jsonError(w, "storing upload: "+err.Error(), http.StatusInternalServerError)
			return
		}
		paths = append(paths, path)
	}

	opts := job.Options{
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		OutputDir:    dir,
		OutputSuffix: s.cfg.OutputSuffix,
		OnCancel:     job.CancelPolicy(s.cfg.OnCancel),
		MaxFileBytes: s.cfg.MaxFileBytes,
	}
	j := job.New(jobID, paths, opts)

	select {
	case s.slots <- struct{}{}:
	default:
		os.RemoveAll(dir)
		jsonError(w, fmt.Sprintf("job queue is full (%d)", s.cfg.MaxQueueSize), http.StatusServiceUnavailable)
		return
	}

	s.store.Put(j)
	s.wg.Add(1)
	go s.runJob(j)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   j.ID,
		"status":   job.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", j.ID),
	})
}

// runJob drives one submitted job to a terminal status.
func (s *Server) runJob(j *job.Job) {
	defer s.wg.Done()
	defer func() { <-s.slots }()

	j.SetStatus(job.StatusRunning)
	results := s.ctrl.Run(s.baseCtx, j.Paths, j.Opts, j.Cancel, func(e job.Event) {
		j.Bus.Publish(e)
	})
	j.SetResults(results)
	j.SetStatus(finalStatus(results, j.Cancel.IsSet()))
}

func finalStatus(results []job.FileResult, cancelled bool) job.Status {
	// An auth abort also sets the cancel flag to stop dispatch, but the
	// job failed; only a genuine cancel reports as cancelled.
	authFailed := false
	for _, res := range results {
		if res.AuthFailure {
			authFailed = true
			break
		}
	}
	if cancelled && !authFailed {
		return job.StatusCancelled
	}
	completed, produced := 0, 0
	for _, res := range results {
		switch res.Status {
		case job.FileCompleted:
			completed++
			produced++
		case job.FilePartial, job.FileCopied:
			produced++
		}
	}
	switch {
	case completed == len(results):
		return job.StatusCompleted
	case produced > 0:
		return job.StatusPartial
	default:
		return job.StatusFailed
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j := s.store.Get(chi.URLParam(r, "jobID"))
	if j == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(j.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	j := s.store.Get(chi.URLParam(r, "jobID"))
	if j == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if j.Terminal() {
		jsonError(w, "job already finished", http.StatusConflict)
		return
	}
	j.Cancel.Set()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": j.ID,
		"status": "cancelling",
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	j := s.store.Get(chi.URLParam(r, "jobID"))
	if j == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, "invalid since cursor", http.StatusBadRequest)
			return
		}
		since = n
	}
	events := j.Bus.Since(since)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": j.ID,
		"events": events,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

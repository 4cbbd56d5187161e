package job

import (
	"sync"
	"time"
)

// Status represents the state of a translation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// CancelPolicy decides what happens to files not yet started when the
// job is cancelled.
type CancelPolicy string

const (
	// CancelSkip produces no output for files that never started.
	CancelSkip CancelPolicy = "skip"
	// CancelCopy writes not-yet-started files through untranslated so
	// the output set is always complete.
	CancelCopy CancelPolicy = "copy"
)

// Options controls one multi-file translation job.
type Options struct {
	SourceLang string
	TargetLang string

	// OutputDir receives output files; empty means next to each input.
	OutputDir string
	// OutputSuffix is inserted before the extension. Empty selects
	// "_translated_<targetLang>".
	OutputSuffix string

	// OnCancel is the policy for files not yet started at cancellation.
	OnCancel CancelPolicy

	// MaxFileBytes skips larger inputs. Zero selects 5 MB.
	MaxFileBytes int64
}

// FileStatus is the per-file outcome within a job.
type FileStatus string

const (
	FileCompleted FileStatus = "completed"
	FilePartial   FileStatus = "partial"
	FileFailed    FileStatus = "failed"
	FileSkipped   FileStatus = "skipped"
	FileCopied    FileStatus = "copied"
)

// FileResult reports what happened to one input file.
type FileResult struct {
	Path       string     `json:"path"`
	OutPath    string     `json:"out_path,omitempty"`
	Status     FileStatus `json:"status"`
	Segments   int        `json:"segments"`
	Translated int        `json:"translated"`
	Fallback   int        `json:"fallback"`
	Failed     int        `json:"failed"`
	Err        string     `json:"error,omitempty"`

	// AuthFailure marks a file hit by an invalid credential. One of
	// these aborts the whole job, which must then not report itself as
	// merely cancelled.
	AuthFailure bool `json:"auth_failure,omitempty"`
}

// Job tracks the state of one submitted translation job.
type Job struct {
	mu sync.Mutex

	ID        string
	Status    Status
	Opts      Options
	Paths     []string
	Results   []FileResult
	CreatedAt time.Time
	UpdatedAt time.Time

	Cancel *CancelFlag
	Bus    *EventBus
}

// New creates a queued job with its own cancel flag and event bus.
func New(id string, paths []string, opts Options) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Opts:      opts,
		Paths:     paths,
		CreatedAt: now,
		UpdatedAt: now,
		Cancel:    &CancelFlag{},
		Bus:       NewEventBus(0),
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetResults records the per-file outcomes.
func (j *Job) SetResults(results []FileResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results = results
	j.UpdatedAt = time.Now()
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID        string       `json:"job_id"`
	Status    Status       `json:"status"`
	Files     []string     `json:"files"`
	Results   []FileResult `json:"results,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Cancelled bool         `json:"cancelled"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]FileResult, len(j.Results))
	copy(results, j.Results)
	return Snapshot{
		ID:        j.ID,
		Status:    j.Status,
		Files:     j.Paths,
		Results:   results,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Cancelled: j.Cancel.IsSet(),
	}
}

// Terminal reports whether the job reached a final status.
func (j *Job) Terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.Status {
	case StatusCompleted, StatusPartial, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// Store is a thread-safe in-memory job registry with TTL eviction.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

// NewStore creates a registry whose entries expire ttl after their last
// update.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *Store) Put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, j := range s.jobs {
		j.mu.Lock()
		expired := now.Sub(j.UpdatedAt) > s.ttl
		j.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

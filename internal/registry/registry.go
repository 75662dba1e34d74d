package registry

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/api/internal/model"
)

// CancelMessage is the sentinel error text set on jobs that were cancelled
// rather than failed by the pipeline.
const CancelMessage = "job cancelled"

// Store persists one durable record per job. Implementations must keep a
// single Save atomic so a crash mid-job never leaves a torn record.
type Store interface {
	Save(ctx context.Context, job *model.Job) error
	Delete(ctx context.Context, jobID string) error
	LoadAll(ctx context.Context) ([]model.Job, error)
}

// Registry tracks every submitted job in a mutex-guarded map and mirrors each
// mutation to the durable store. It is the only state shared across
// concurrently running jobs; callers get snapshots, never live records.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	store Store
}

// New creates a registry backed by store and loads any previously persisted
// records, so restarts see the last known state of interrupted jobs.
func New(ctx context.Context, store Store) (*Registry, error) {
	r := &Registry{
		jobs:  make(map[string]*model.Job),
		store: store,
	}
	loaded, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range loaded {
		job := loaded[i]
		r.jobs[job.ID] = &job
	}
	if len(loaded) > 0 {
		log.Printf("[Registry] loaded %d persisted jobs", len(loaded))
	}
	return r, nil
}

// StatusUpdate carries the optional fields of a SetStatus call.
type StatusUpdate struct {
	Progress     *float64
	CurrentStep  *int
	ErrorMessage *string
}

// Create allocates a new pending job and persists it.
func (r *Registry) Create(ctx context.Context, jobType model.JobType, totalSteps int) (model.Job, error) {
	if totalSteps < 0 {
		totalSteps = 0
	}
	now := time.Now()
	job := &model.Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     model.JobStatusPending,
		Progress:   0,
		TotalSteps: totalSteps,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	snap := *job
	r.mu.Unlock()

	if err := r.store.Save(ctx, &snap); err != nil {
		return model.Job{}, err
	}
	log.Printf("[Registry] created job %s (%s, %d steps)", snap.ID, jobType, totalSteps)
	return snap, nil
}

// Get returns a snapshot of the job, if it exists.
func (r *Registry) Get(jobID string) (model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, false
	}
	return *job, true
}

// SetStatus transitions a job and applies the optional updates. Returns false
// for unknown ids and for jobs already in a terminal state. Progress is
// clamped to [0,1] and never decreases while the job is running; a transition
// to running without an explicit error clears any prior one; completion
// forces progress to 1.0.
func (r *Registry) SetStatus(ctx context.Context, jobID string, status model.JobStatus, upd StatusUpdate) bool {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		r.mu.Unlock()
		return false
	}

	job.Status = status

	if upd.Progress != nil {
		p := *upd.Progress
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		if status == model.JobStatusRunning && p < job.Progress {
			p = job.Progress
		}
		job.Progress = p
	}
	if upd.CurrentStep != nil {
		step := *upd.CurrentStep
		if step < 0 {
			step = 0
		}
		if job.TotalSteps > 0 && step > job.TotalSteps {
			step = job.TotalSteps
		}
		job.CurrentStep = step
	}
	if upd.ErrorMessage != nil {
		job.ErrorMessage = upd.ErrorMessage
	} else if status == model.JobStatusRunning {
		job.ErrorMessage = nil
	}
	if status == model.JobStatusCompleted {
		job.Progress = 1.0
	}
	job.UpdatedAt = time.Now()

	snap := *job
	r.mu.Unlock()

	r.persist(ctx, &snap)
	return true
}

// Increment advances the job's step counter by one and recomputes progress.
// Increments are linearized by the registry lock, so progress stays monotone
// even when callbacks race. Returns false for unknown or terminal jobs.
func (r *Registry) Increment(ctx context.Context, jobID string) bool {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		r.mu.Unlock()
		return false
	}

	job.CurrentStep++
	if job.TotalSteps > 0 {
		if job.CurrentStep > job.TotalSteps {
			job.CurrentStep = job.TotalSteps
		}
		job.Progress = float64(job.CurrentStep) / float64(job.TotalSteps)
	}
	job.UpdatedAt = time.Now()

	snap := *job
	r.mu.Unlock()

	r.persist(ctx, &snap)
	return true
}

// Cancel marks a pending or running job as failed with the cancel sentinel.
// It is advisory: an in-flight synthesis call is not interrupted.
func (r *Registry) Cancel(ctx context.Context, jobID string) bool {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		r.mu.Unlock()
		return false
	}

	msg := CancelMessage
	job.Status = model.JobStatusFailed
	job.ErrorMessage = &msg
	job.UpdatedAt = time.Now()

	snap := *job
	r.mu.Unlock()

	r.persist(ctx, &snap)
	log.Printf("[Registry] cancelled job %s", jobID)
	return true
}

// Delete removes a job record from memory and the store.
func (r *Registry) Delete(ctx context.Context, jobID string) bool {
	r.mu.Lock()
	_, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.jobs, jobID)
	r.mu.Unlock()

	if err := r.store.Delete(ctx, jobID); err != nil {
		log.Printf("[Registry] failed to delete job %s from store: %v", jobID, err)
	}
	return true
}

// List returns snapshots of all jobs, oldest first. A non-empty jobType
// filters by type.
func (r *Registry) List(jobType model.JobType) []model.Job {
	r.mu.Lock()
	jobs := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if jobType != "" && job.Type != jobType {
			continue
		}
		jobs = append(jobs, *job)
	}
	r.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs
}

// ListRunning returns snapshots of all running jobs, oldest first.
func (r *Registry) ListRunning() []model.Job {
	running := make([]model.Job, 0)
	for _, job := range r.List("") {
		if job.Status == model.JobStatusRunning {
			running = append(running, job)
		}
	}
	return running
}

// persist writes one record outside the registry lock. A store failure keeps
// the in-memory state authoritative and is only logged, matching the
// file-per-record durability model.
func (r *Registry) persist(ctx context.Context, job *model.Job) {
	if err := r.store.Save(ctx, job); err != nil {
		log.Printf("[Registry] failed to persist job %s: %v", job.ID, err)
	}
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a persisted job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is a unit of background work.
type Job interface {
	ID() uuid.UUID
	Type() string
	// Payload is the JSON stored with the job and handed back to its Decoder
	// on recovery.
	Payload() []byte
	Execute(ctx context.Context) error
}

// Record is a job as loaded from the store.
type Record struct {
	ID        uuid.UUID
	Type      string
	Payload   []byte
	Status    Status
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists jobs and their status transitions.
type Store interface {
	SaveJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error
	// PendingJobs returns every pending job, oldest first.
	PendingJobs(ctx context.Context) ([]Record, error)
	// ProcessingJobs returns jobs in the processing state. A non-zero
	// olderThan restricts the result to jobs untouched for that long.
	ProcessingJobs(ctx context.Context, olderThan time.Duration) ([]Record, error)
}

// Decoder rebuilds an executable job from its stored record.
type Decoder func(rec Record) (Job, error)

// ErrUnknownType is returned when no decoder is registered for a job type.
var ErrUnknownType = errors.New("unknown job type")

// Registry maps job types to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds the decoder for jobType, replacing any earlier one.
func (r *Registry) Register(jobType string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[jobType] = d
}

// Decode rebuilds rec into a Job.
func (r *Registry) Decode(rec Record) (Job, error) {
	r.mu.RLock()
	d, ok := r.decoders[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, rec.Type)
	}
	return d(rec)
}

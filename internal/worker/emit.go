package worker

import (
	"context"

	"github.com/ppiankov/decadal/internal/model"
)

// Emitter defines the interface for writing one named record sequence
type Emitter interface {
	Emit(ctx context.Context, name string, records []model.Record) (model.Artifact, error)
}

// Target is one artifact to produce: a bucket or the full dataset
type Target struct {
	Name    string
	Records []model.Record
}

// EmitJob writes a single Target
type EmitJob struct {
	Target  Target
	Emitter Emitter
}

// Execute executes the emit job
func (j *EmitJob) Execute(ctx context.Context) Result {
	artifact, err := j.Emitter.Emit(ctx, j.Target.Name, j.Target.Records)
	return &EmitResult{
		Name:     j.Target.Name,
		Artifact: artifact,
		Error:    err,
	}
}

// EmitResult represents the result of an emit job
type EmitResult struct {
	Name     string
	Artifact model.Artifact
	Error    error
}

// GetError returns the error from the emit result
func (r *EmitResult) GetError() error {
	return r.Error
}

// BatchEmitter writes independent targets concurrently.
// Targets must have distinct names; each maps to its own artifact.
type BatchEmitter struct {
	emitter     Emitter
	concurrency int
}

// NewBatchEmitter creates a new batch emitter
func NewBatchEmitter(emitter Emitter, concurrency int) *BatchEmitter {
	return &BatchEmitter{
		emitter:     emitter,
		concurrency: concurrency,
	}
}

// EmitAll writes every target and returns one result per target, in target
// order. A target dropped by cancellation gets a result carrying ctx.Err().
func (b *BatchEmitter) EmitAll(ctx context.Context, targets []Target) []*EmitResult {
	if len(targets) == 0 {
		return []*EmitResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	// Workers and the collector are gone by the time EmitAll returns,
	// including when ctx is canceled mid-batch
	defer pool.Shutdown()

	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		pool.Submit(&EmitJob{
			Target:  t,
			Emitter: b.emitter,
		})
	}

	results := pool.Wait()

	emitResults := make([]*EmitResult, len(targets))
	for i := range targets {
		if i < len(results) && results[i] != nil {
			emitResults[i] = results[i].(*EmitResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		emitResults[i] = &EmitResult{Name: targets[i].Name, Error: err}
	}

	return emitResults
}

// FirstError returns the first failed result's error in target order
func FirstError(results []*EmitResult) error {
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/storage"
)

// JobType is the queue type of asynchronous content generations.
const JobType = "generate_content"

// JobStore abstracts the job queue and generation records.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetGeneration(id string) (storage.Generation, error)
	CompleteGeneration(id, outputJSON string) error
	FailGeneration(id, errMsg string) error
}

// ContentGenerator produces content for one request.
type ContentGenerator interface {
	Generate(ctx context.Context, req marketing.GenerateRequest) (marketing.Content, error)
}

// GeneratorFactory builds a generator from the current model configuration.
// It is called once per job so configuration changes apply to queued work.
type GeneratorFactory func(ctx context.Context) (ContentGenerator, error)

// Payload is the JSON body of a generate_content job.
type Payload struct {
	GenerationID string `json:"generation_id"`
}

// Worker processes generate_content jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	factory GeneratorFactory
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, factory GeneratorFactory, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		factory: factory,
		poll:    pollInterval,
		logger:  slog.Default().With("component", "worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single generate_content job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	genID, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		if genID != "" && job.Attempts+1 >= job.MaxAttempts {
			if failErr := w.store.FailGeneration(genID, err.Error()); failErr != nil {
				w.logger.Error("failed to record generation error", "generation_id", genID, "error", failErr)
			}
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("generation completed", "job_id", job.ID, "generation_id", genID)
	return true, nil
}

// processJob returns the generation ID once the payload is readable, so the
// caller can record a final failure against it.
func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	gen, err := w.store.GetGeneration(payload.GenerationID)
	if err != nil {
		return "", fmt.Errorf("loading generation %s: %w", payload.GenerationID, err)
	}

	req := marketing.GenerateRequest{
		Prompt:      gen.Prompt,
		ContentType: marketing.ContentType(gen.ContentType),
		Channel:     marketing.Channel(gen.Channel),
	}
	if gen.OverridesJSON != "" {
		var ov marketing.Overrides
		if err := json.Unmarshal([]byte(gen.OverridesJSON), &ov); err != nil {
			return gen.ID, fmt.Errorf("parsing overrides: %w", err)
		}
		req.Overrides = &ov
	}

	generator, err := w.factory(ctx)
	if err != nil {
		return gen.ID, fmt.Errorf("building generator: %w", err)
	}

	content, err := generator.Generate(ctx, req)
	if err != nil {
		return gen.ID, err
	}

	out, err := json.Marshal(content)
	if err != nil {
		return gen.ID, fmt.Errorf("encoding content: %w", err)
	}
	if err := w.store.CompleteGeneration(gen.ID, string(out)); err != nil {
		return gen.ID, fmt.Errorf("storing output: %w", err)
	}
	return gen.ID, nil
}

// Enqueue records a pending generation and queues the job that fills it.
// Both are written together or not at all.
func Enqueue(store interface {
	QueueGeneration(g storage.Generation, job storage.Job) error
}, id string, req marketing.GenerateRequest) error {
	var overrides string
	if req.Overrides != nil {
		data, err := json.Marshal(req.Overrides)
		if err != nil {
			return fmt.Errorf("encoding overrides: %w", err)
		}
		overrides = string(data)
	}
	payload, err := json.Marshal(Payload{GenerationID: id})
	if err != nil {
		return err
	}
	err = store.QueueGeneration(
		storage.Generation{
			ID:            id,
			Prompt:        req.Prompt,
			ContentType:   string(req.ContentType),
			Channel:       string(req.Channel),
			OverridesJSON: overrides,
		},
		storage.Job{ID: "job-" + id, Type: JobType, PayloadJSON: string(payload)},
	)
	if err != nil {
		return fmt.Errorf("queueing generation: %w", err)
	}
	return nil
}

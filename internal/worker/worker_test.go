package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/provider"
	"github.com/kalambet/flowcraft/internal/storage"
)

type mockGenerator struct {
	generateFn func(ctx context.Context, req marketing.GenerateRequest) (marketing.Content, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req marketing.GenerateRequest) (marketing.Content, error) {
	return m.generateFn(ctx, req)
}

func factoryFor(g ContentGenerator) GeneratorFactory {
	return func(context.Context) (ContentGenerator, error) { return g, nil }
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueueTestGeneration(t *testing.T, store *storage.Store, id string) {
	t.Helper()
	req := marketing.GenerateRequest{
		Prompt:      "spring sale",
		ContentType: marketing.Post,
		Channel:     marketing.LinkedIn,
		Overrides:   &marketing.Overrides{Params: map[string]any{"temperature": 0.2}},
	}
	if err := Enqueue(store, id, req); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

// resetRunAfter makes a backed-off job immediately claimable.
func resetRunAfter(t *testing.T, store *storage.Store, jobID string) {
	t.Helper()
	past := time.Now().Add(-time.Minute).UTC().Format("2006-01-02T15:04:05.000Z")
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE id = ?`, past, jobID); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store, jobID string) (string, int) {
	t.Helper()
	var status string
	var attempts int
	if err := store.DB().QueryRow(`SELECT status, attempts FROM jobs WHERE id = ?`, jobID).Scan(&status, &attempts); err != nil {
		t.Fatalf("query job: %v", err)
	}
	return status, attempts
}

func TestEnqueue_LeavesNothingWhenJobFails(t *testing.T) {
	store := openTestStore(t)
	if err := store.EnqueueJob(storage.Job{ID: "job-gen-dup", Type: JobType, PayloadJSON: `{}`}); err != nil {
		t.Fatal(err)
	}

	err := Enqueue(store, "gen-dup", marketing.GenerateRequest{Prompt: "p", ContentType: marketing.Post, Channel: marketing.LinkedIn})
	if err == nil {
		t.Fatal("Enqueue succeeded despite a clashing job id")
	}
	if _, err := store.GetGeneration("gen-dup"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetGeneration = %v, want ErrNotFound", err)
	}
}

func TestWorker_ProcessesJob(t *testing.T) {
	store := openTestStore(t)
	enqueueTestGeneration(t, store, "gen-1")

	var got marketing.GenerateRequest
	w := NewWorker(store, factoryFor(&mockGenerator{
		generateFn: func(_ context.Context, req marketing.GenerateRequest) (marketing.Content, error) {
			got = req
			return marketing.Content{
				ContentType: req.ContentType,
				Channel:     req.Channel,
				Model:       "gpt-4",
				Output:      &provider.Output{Kind: provider.KindText, Text: "Spring is here"},
			}, nil
		},
	}), 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	if got.Prompt != "spring sale" || got.Channel != marketing.LinkedIn {
		t.Errorf("request = %+v", got)
	}
	if got.Overrides == nil || got.Overrides.Params["temperature"] != 0.2 {
		t.Errorf("overrides not restored: %+v", got.Overrides)
	}

	gen, err := store.GetGeneration("gen-1")
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if gen.Status != storage.GenerationCompleted {
		t.Errorf("status = %q, want completed", gen.Status)
	}
	var content marketing.Content
	if err := json.Unmarshal([]byte(gen.OutputJSON), &content); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if content.Output == nil || content.Output.Text != "Spring is here" {
		t.Errorf("output = %+v", content.Output)
	}

	if status, _ := jobStatus(t, store, "job-gen-1"); status != "completed" {
		t.Errorf("job status = %q, want completed", status)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, factoryFor(&mockGenerator{}), 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("RunOnce returned true with an empty queue")
	}
}

func TestWorker_RetryThenSucceed(t *testing.T) {
	store := openTestStore(t)
	enqueueTestGeneration(t, store, "gen-r")

	var calls atomic.Int32
	w := NewWorker(store, factoryFor(&mockGenerator{
		generateFn: func(_ context.Context, req marketing.GenerateRequest) (marketing.Content, error) {
			if n := calls.Add(1); n == 1 {
				return marketing.Content{}, fmt.Errorf("transient error %d", n)
			}
			return marketing.Content{ContentType: req.ContentType, Channel: req.Channel}, nil
		},
	}), 0)
	ctx := context.Background()

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 1 error: %v", err)
	}
	if status, attempts := jobStatus(t, store, "job-gen-r"); status != "pending" || attempts != 1 {
		t.Errorf("after 1st fail: status=%q attempts=%d, want pending/1", status, attempts)
	}
	gen, _ := store.GetGeneration("gen-r")
	if gen.Status != storage.GenerationPending {
		t.Errorf("generation status after retryable failure = %q, want pending", gen.Status)
	}

	resetRunAfter(t, store, "job-gen-r")

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 2 error: %v", err)
	}
	if status, _ := jobStatus(t, store, "job-gen-r"); status != "completed" {
		t.Errorf("job status = %q, want completed", status)
	}
	gen, _ = store.GetGeneration("gen-r")
	if gen.Status != storage.GenerationCompleted {
		t.Errorf("generation status = %q, want completed", gen.Status)
	}
}

func TestWorker_FinalFailureRecordsError(t *testing.T) {
	store := openTestStore(t)
	enqueueTestGeneration(t, store, "gen-f")

	w := NewWorker(store, factoryFor(&mockGenerator{
		generateFn: func(context.Context, marketing.GenerateRequest) (marketing.Content, error) {
			return marketing.Content{}, errors.New("provider down")
		},
	}), 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce %d error: %v", i+1, err)
		}
		resetRunAfter(t, store, "job-gen-f")
	}

	if status, attempts := jobStatus(t, store, "job-gen-f"); status != "failed" || attempts != 3 {
		t.Errorf("job: status=%q attempts=%d, want failed/3", status, attempts)
	}
	gen, err := store.GetGeneration("gen-f")
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if gen.Status != storage.GenerationFailed || gen.Error != "provider down" {
		t.Errorf("generation = %q / %q, want failed / provider down", gen.Status, gen.Error)
	}
}

func TestWorker_FactoryError(t *testing.T) {
	store := openTestStore(t)
	enqueueTestGeneration(t, store, "gen-x")

	w := NewWorker(store, func(context.Context) (ContentGenerator, error) {
		return nil, errors.New("no config")
	}, 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if status, attempts := jobStatus(t, store, "job-gen-x"); status != "pending" || attempts != 1 {
		t.Errorf("job: status=%q attempts=%d, want pending/1", status, attempts)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, factoryFor(&mockGenerator{}), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

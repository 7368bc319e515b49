package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"

	_ "github.com/vantage-admin/vantage-admin/internal/testing/guard"
)

type fakeSweepStore struct {
	removed int64
	err     error
	calls   int
}

func (f *fakeSweepStore) DeleteOrphans(ctx context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

type fakeBumper struct {
	bumps int
}

func (f *fakeBumper) Bump(ctx context.Context) error {
	f.bumps++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sweepTask(t *testing.T, payload GrantSweepPayload) *asynq.Task {
	t.Helper()
	task, err := NewGrantSweepTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestGrantSweepRemovalBumpsCache(t *testing.T) {
	store := &fakeSweepStore{removed: 3}
	bumper := &fakeBumper{}
	job := NewGrantSweepJob(store, bumper, discardLogger())

	if err := job.Handle(context.Background(), sweepTask(t, GrantSweepPayload{})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one sweep, got %d", store.calls)
	}
	if bumper.bumps != 1 {
		t.Fatalf("expected cache bump after removals, got %d", bumper.bumps)
	}
}

func TestGrantSweepNoRemovalsSkipsBump(t *testing.T) {
	store := &fakeSweepStore{removed: 0}
	bumper := &fakeBumper{}
	job := NewGrantSweepJob(store, bumper, discardLogger())

	if err := job.Handle(context.Background(), sweepTask(t, GrantSweepPayload{})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if bumper.bumps != 0 {
		t.Fatalf("expected no cache bump, got %d", bumper.bumps)
	}
}

func TestGrantSweepDryRun(t *testing.T) {
	store := &fakeSweepStore{removed: 3}
	job := NewGrantSweepJob(store, &fakeBumper{}, discardLogger())

	if err := job.Handle(context.Background(), sweepTask(t, GrantSweepPayload{DryRun: true})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("dry run must not delete, got %d calls", store.calls)
	}
}

func TestGrantSweepBadPayloadSkipsRetry(t *testing.T) {
	job := NewGrantSweepJob(&fakeSweepStore{}, nil, discardLogger())
	task := asynq.NewTask(TaskGrantSweep, []byte("{not json"))

	err := job.Handle(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestGrantSweepStoreFailure(t *testing.T) {
	wantErr := errors.New("store down")
	job := NewGrantSweepJob(&fakeSweepStore{err: wantErr}, &fakeBumper{}, discardLogger())

	err := job.Handle(context.Background(), sweepTask(t, GrantSweepPayload{}))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTask(t *testing.T) {
	p := NewPool(2, 4)
	defer p.Close()

	done := make(chan struct{})
	_, err := p.Submit(context.Background(), func(ctx context.Context) {
		close(done)
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestPoolReportsQueueFull(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	// Occupy the single worker.
	if _, err := p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	// Fill the queue.
	if _, err := p.Submit(context.Background(), func(ctx context.Context) {}); err != nil {
		t.Fatalf("Submit() to queue error = %v", err)
	}

	_, err := p.Submit(context.Background(), func(ctx context.Context) {})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() error = %v, want ErrQueueFull", err)
	}
	close(release)
}

func TestJobCancelBeforeStart(t *testing.T) {
	p := NewPool(1, 2)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	if _, err := p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	ran := make(chan struct{})
	job, err := p.Submit(context.Background(), func(ctx context.Context) {
		close(ran)
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if !job.Cancel() {
		t.Error("Cancel() = false for queued job, want true")
	}
	close(release)

	p.Close()
	select {
	case <-ran:
		t.Error("cancelled queued job still ran")
	default:
	}
}

func TestJobCancelWhileRunning(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Close()

	started := make(chan struct{})
	stopped := make(chan struct{})
	job, err := p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(stopped)
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	if job.Cancel() {
		t.Error("Cancel() = true for running job, want false")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("running job did not observe cancellation")
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p := NewPool(2, 2)
	p.Close()
	p.Close()

	if _, err := p.Submit(context.Background(), func(ctx context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrPoolClosed", err)
	}
}

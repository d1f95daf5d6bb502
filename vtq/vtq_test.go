package vtq_test

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/darkmark/dbopen"
	"github.com/hazyhaar/darkmark/vtq"
)

func openQueue(t *testing.T, opts vtq.Options) *vtq.Q {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := vtq.New(db, opts)
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return q
}

func TestPublishClaim(t *testing.T) {
	q := openQueue(t, vtq.Options{Visibility: time.Minute})
	ctx := context.Background()

	if err := q.Publish(ctx, "job-1", []byte(`{"doc":"doc_1"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil || job.ID != "job-1" {
		t.Fatalf("claimed wrong job: %+v", job)
	}

	// Claimed job is invisible until the timeout elapses.
	again, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if again != nil {
		t.Errorf("second claim should find nothing, got %+v", again)
	}
}

func TestAckRemovesJob(t *testing.T) {
	q := openQueue(t, vtq.Options{Visibility: time.Minute})
	ctx := context.Background()

	if err := q.Publish(ctx, "job-1", nil); err != nil {
		t.Fatal(err)
	}
	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("Claim: %v %+v", err, job)
	}
	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	if n, err := q.Len(ctx); err != nil || n != 0 {
		t.Errorf("queue should be empty, got %d (%v)", n, err)
	}
}

func TestNackRedelivers(t *testing.T) {
	q := openQueue(t, vtq.Options{Visibility: time.Minute})
	ctx := context.Background()

	if err := q.Publish(ctx, "job-1", nil); err != nil {
		t.Fatal(err)
	}
	first, err := q.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("Claim: %v %+v", err, first)
	}
	if err := q.Nack(ctx, first.ID); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	second, err := q.Claim(ctx)
	if err != nil || second == nil {
		t.Fatalf("nacked job should be reclaimable: %v %+v", err, second)
	}
	if second.Attempts <= first.Attempts {
		t.Errorf("attempts should increase on redelivery: %d -> %d",
			first.Attempts, second.Attempts)
	}
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	q := openQueue(t, vtq.Options{Visibility: 50 * time.Millisecond})
	ctx := context.Background()

	if err := q.Publish(ctx, "job-1", nil); err != nil {
		t.Fatal(err)
	}
	first, err := q.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("Claim: %v %+v", err, first)
	}

	time.Sleep(80 * time.Millisecond)

	second, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("expired job should be reclaimable: %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Fatalf("redelivered job: got %+v, want id %q", second, first.ID)
	}
}

func TestBatchClaim(t *testing.T) {
	q := openQueue(t, vtq.Options{Visibility: time.Minute})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Publish(ctx, id, nil); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := q.BatchClaim(ctx, 2)
	if err != nil {
		t.Fatalf("BatchClaim: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	rest, err := q.BatchClaim(ctx, 2)
	if err != nil {
		t.Fatalf("second BatchClaim: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("expected 1 remaining job, got %d", len(rest))
	}
}

func TestRunProcessesJobs(t *testing.T) {
	q := openQueue(t, vtq.Options{
		Visibility:   time.Minute,
		PollInterval: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan string, 1)
	go q.Run(ctx, func(ctx context.Context, job *vtq.Job) error {
		done <- job.ID
		return nil
	})

	if err := q.Publish(ctx, "job-run", []byte("payload")); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-done:
		if id != "job-run" {
			t.Errorf("processed wrong job: %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run never processed the job")
	}
}

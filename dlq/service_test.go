package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/id"
	"github.com/courierhq/courier/job"
	"github.com/courierhq/courier/store/memory"
)

// capturingPublisher records the envelope handed to Push.
type capturingPublisher struct {
	queue string
	env   *job.Envelope
	err   error
}

func (p *capturingPublisher) Push(_ context.Context, queue string, env *job.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.queue = queue
	p.env = env
	return nil
}

func failedEnvelope() *job.Envelope {
	return &job.Envelope{
		ID:      "env_1",
		Handler: "EmailWorker",
		Queue:   "email",
		Args:    job.MustArgs("a@example.org"),
		Attempt: 4,
	}
}

func TestService_Push(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	if err := svc.Push(context.Background(), failedEnvelope(), errors.New("smtp timeout")); err != nil {
		t.Fatalf("push: %v", err)
	}

	entries, err := store.List(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.EnvelopeID != "env_1" {
		t.Errorf("EnvelopeID = %q, want %q", e.EnvelopeID, "env_1")
	}
	if e.Handler != "EmailWorker" {
		t.Errorf("Handler = %q, want %q", e.Handler, "EmailWorker")
	}
	if e.Queue != "email" {
		t.Errorf("Queue = %q, want %q", e.Queue, "email")
	}
	if e.Error != "smtp timeout" {
		t.Errorf("Error = %q, want %q", e.Error, "smtp timeout")
	}
	if e.Attempt != 4 {
		t.Errorf("Attempt = %d, want 4", e.Attempt)
	}
	if e.ReplayedAt != nil {
		t.Error("fresh entry must not be marked replayed")
	}
}

func TestService_Replay(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	if err := svc.Push(context.Background(), failedEnvelope(), errors.New("smtp timeout")); err != nil {
		t.Fatalf("push: %v", err)
	}
	entries, err := store.List(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	pub := &capturingPublisher{}
	if err := svc.Replay(context.Background(), entries[0].ID, pub); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if pub.env == nil {
		t.Fatal("replay never reached the publisher")
	}
	if pub.queue != "email" {
		t.Errorf("queue = %q, want %q", pub.queue, "email")
	}
	if pub.env.Handler != "EmailWorker" {
		t.Errorf("Handler = %q, want %q", pub.env.Handler, "EmailWorker")
	}
	if pub.env.Attempt != 0 {
		t.Errorf("Attempt = %d, want 0 (replay resets the budget)", pub.env.Attempt)
	}

	replayed, err := store.Get(context.Background(), entries[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if replayed.ReplayedAt == nil {
		t.Error("entry not marked replayed")
	}
}

func TestService_ReplayPublishFailureKeepsEntry(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	if err := svc.Push(context.Background(), failedEnvelope(), errors.New("boom")); err != nil {
		t.Fatalf("push: %v", err)
	}
	entries, _ := store.List(context.Background(), dlq.ListOpts{})

	pub := &capturingPublisher{err: errors.New("broker down")}
	if err := svc.Replay(context.Background(), entries[0].ID, pub); err == nil {
		t.Fatal("expected replay error")
	}

	entry, err := store.Get(context.Background(), entries[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.ReplayedAt != nil {
		t.Error("failed replay must not mark the entry replayed")
	}
}

func TestService_ReplayUnknownEntry(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	err := svc.Replay(context.Background(), id.NewDLQID(), &capturingPublisher{})
	if !errors.Is(err, courier.ErrDLQEntryNotFound) {
		t.Fatalf("expected ErrDLQEntryNotFound, got %v", err)
	}
}

func TestMemoryStore_ListPagination(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	for i := 0; i < 5; i++ {
		env := failedEnvelope()
		env.ID = string(rune('a' + i))
		if err := svc.Push(context.Background(), env, errors.New("boom")); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	page, err := store.List(context.Background(), dlq.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}

func TestMemoryStore_Purge(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	if err := svc.Push(context.Background(), failedEnvelope(), errors.New("boom")); err != nil {
		t.Fatalf("push: %v", err)
	}

	purged, err := store.Purge(context.Background(), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	n, _ := store.Count(context.Background())
	if n != 0 {
		t.Errorf("count after purge = %d, want 0", n)
	}
}

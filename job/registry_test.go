package job_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/job"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := job.NewRegistry()

	var got emailPayload
	def := job.NewDefinition("EmailWorker", func(_ context.Context, p emailPayload) error {
		got = p
		return nil
	}, job.WithQueue("email"))

	if err := job.Register(r, def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok := r.Lookup("EmailWorker")
	if !ok {
		t.Fatal("expected entry to be registered")
	}
	if entry.Target != "EmailWorker" {
		t.Errorf("Target = %q, want %q", entry.Target, "EmailWorker")
	}
	if entry.Defaults.Queue != "email" {
		t.Errorf("Defaults.Queue = %q, want %q", entry.Defaults.Queue, "email")
	}
	if entry.IsProxy() {
		t.Error("plain registration should not be a proxy")
	}

	args := job.MustArgs(emailPayload{To: "alice@example.com", Subject: "Hello"})
	if err := entry.Handler(context.Background(), args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", got.To, "alice@example.com")
	}
	if got.Subject != "Hello" {
		t.Errorf("Subject = %q, want %q", got.Subject, "Hello")
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := job.NewRegistry()
	if _, ok := r.Lookup("nonexistent"); ok {
		t.Fatal("expected no entry for unregistered name")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := job.NewRegistry()
	noop := func(_ context.Context, _ job.ArgList) error { return nil }

	if err := r.RegisterFunc("EmailWorker", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.RegisterFunc("EmailWorker", noop)
	if !errors.Is(err, courier.ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
}

func TestRegistry_EmptyName(t *testing.T) {
	r := job.NewRegistry()
	err := r.RegisterFunc("", func(_ context.Context, _ job.ArgList) error { return nil })
	if !errors.Is(err, courier.ErrEmptyHandlerName) {
		t.Fatalf("expected ErrEmptyHandlerName, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := job.NewRegistry()
	noop := func(_ context.Context, _ job.ArgList) error { return nil }

	for _, name := range []string{"job-a", "job-b", "job-c"} {
		if err := r.RegisterFunc(name, noop); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	names := r.Names()
	sort.Strings(names)
	expected := []string{"job-a", "job-b", "job-c"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %d", len(expected), len(names))
	}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestRegister_InvalidPayload(t *testing.T) {
	r := job.NewRegistry()
	def := job.NewDefinition("typed-job", func(_ context.Context, _ emailPayload) error {
		t.Fatal("handler should not be called with an undecodable payload")
		return nil
	})
	if err := job.Register(r, def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, _ := r.Lookup("typed-job")
	err := entry.Handler(context.Background(), job.ArgList{[]byte(`{invalid json`)})
	if err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestRegister_EmptyArgs(t *testing.T) {
	r := job.NewRegistry()
	called := false
	def := job.NewDefinition("no-payload", func(_ context.Context, _ struct{}) error {
		called = true
		return nil
	})
	if err := job.Register(r, def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, _ := r.Lookup("no-payload")
	if err := entry.Handler(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty args")
	}
}

func TestRegisterFunc_DefaultOptions(t *testing.T) {
	r := job.NewRegistry()
	if err := r.RegisterFunc("plain", func(_ context.Context, _ job.ArgList) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, _ := r.Lookup("plain")
	if entry.Defaults.Queue != "default" {
		t.Errorf("Queue = %q, want %q", entry.Defaults.Queue, "default")
	}
	if !entry.Defaults.Retry.Enabled {
		t.Error("expected retries enabled by default")
	}
	if got := entry.Defaults.Retry.EffectiveMax(); got != job.DefaultMaxAttempts {
		t.Errorf("EffectiveMax = %d, want %d", got, job.DefaultMaxAttempts)
	}
}

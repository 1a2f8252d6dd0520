package job_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/job"
)

func TestEnvelope_Validate(t *testing.T) {
	env := &job.Envelope{ID: "env_1", Handler: "EmailWorker"}
	if err := env.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnvelope_ValidateEmptyHandler(t *testing.T) {
	env := &job.Envelope{ID: "env_1"}
	if err := env.Validate(); !errors.Is(err, courier.ErrEmptyHandlerName) {
		t.Fatalf("expected ErrEmptyHandlerName, got %v", err)
	}
}

func TestEnvelope_ValidateNegativeAttempt(t *testing.T) {
	env := &job.Envelope{Handler: "EmailWorker", Attempt: -1}
	if err := env.Validate(); !errors.Is(err, courier.ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
}

func TestRetryPolicy_WireFormat(t *testing.T) {
	cases := []struct {
		name   string
		policy job.RetryPolicy
		wire   string
	}{
		{"disabled", job.RetryPolicy{}, "false"},
		{"enabled uncapped", job.RetryPolicy{Enabled: true}, "true"},
		{"enabled capped", job.RetryPolicy{Enabled: true, MaxAttempts: 5}, "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.policy)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tc.wire {
				t.Errorf("wire = %s, want %s", data, tc.wire)
			}

			var got job.RetryPolicy
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.policy {
				t.Errorf("roundtrip = %+v, want %+v", got, tc.policy)
			}
		})
	}
}

func TestRetryPolicy_UnmarshalRejectsGarbage(t *testing.T) {
	var p job.RetryPolicy
	for _, wire := range []string{`"yes"`, `-3`, `{}`, `1.5`, `1x`} {
		if err := json.Unmarshal([]byte(wire), &p); err == nil {
			t.Errorf("expected error for wire value %s", wire)
		}
	}
}

func TestRetryPolicy_EffectiveMax(t *testing.T) {
	cases := []struct {
		name   string
		policy job.RetryPolicy
		want   int
	}{
		{"disabled", job.RetryPolicy{}, 0},
		{"capped", job.RetryPolicy{Enabled: true, MaxAttempts: 3}, 3},
		{"uncapped", job.RetryPolicy{Enabled: true}, job.DefaultMaxAttempts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.EffectiveMax(); got != tc.want {
				t.Errorf("EffectiveMax = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEnvelope_JSONFieldNames(t *testing.T) {
	env := &job.Envelope{
		ID:      "env_1",
		Handler: "EmailWorker",
		Queue:   "email",
		Retry:   job.RetryPolicy{Enabled: true, MaxAttempts: 3},
		Args:    job.MustArgs("a@example.org", "Hi"),
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw["class"]) != `"EmailWorker"` {
		t.Errorf("class = %s, want %q", raw["class"], "EmailWorker")
	}
	if string(raw["retry"]) != "3" {
		t.Errorf("retry = %s, want 3", raw["retry"])
	}
	if string(raw["args"]) != `["a@example.org","Hi"]` {
		t.Errorf("args = %s", raw["args"])
	}
}

func TestArgList_Decode(t *testing.T) {
	args := job.MustArgs("a@example.org", 42)

	var to string
	var n int
	if err := args.Decode(&to, &n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to != "a@example.org" {
		t.Errorf("to = %q, want %q", to, "a@example.org")
	}
	if n != 42 {
		t.Errorf("n = %d, want 42", n)
	}
}

func TestArgList_DecodeTooManyTargets(t *testing.T) {
	args := job.MustArgs("only-one")
	var a, b string
	if err := args.Decode(&a, &b); err == nil {
		t.Fatal("expected error decoding into more targets than args")
	}
}

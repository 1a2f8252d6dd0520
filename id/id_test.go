package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/courierhq/courier/id"
)

func TestNew_PrefixedAndUnique(t *testing.T) {
	a := id.NewEnvelopeID()
	b := id.NewEnvelopeID()

	if !strings.HasPrefix(a.String(), "env_") {
		t.Errorf("ID = %q, want env_ prefix", a.String())
	}
	if a.String() == b.String() {
		t.Error("two generated IDs must differ")
	}
	if a.Prefix() != id.PrefixEnvelope {
		t.Errorf("Prefix = %q, want %q", a.Prefix(), id.PrefixEnvelope)
	}
}

func TestParse_Roundtrip(t *testing.T) {
	orig := id.NewDLQID()
	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("roundtrip = %q, want %q", parsed.String(), orig.String())
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestParseWithPrefix_Mismatch(t *testing.T) {
	worker := id.NewWorkerID()
	if _, err := id.ParseWithPrefix(worker.String(), id.PrefixDLQ); err == nil {
		t.Fatal("expected error for prefix mismatch")
	}
}

func TestID_JSONRoundtrip(t *testing.T) {
	orig := id.NewWorkerID()
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var parsed id.ID
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("roundtrip = %q, want %q", parsed.String(), orig.String())
	}
}

func TestNil_IsNil(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("zero value must be nil")
	}
	if id.NewEnvelopeID().IsNil() {
		t.Error("generated ID must not be nil")
	}
}

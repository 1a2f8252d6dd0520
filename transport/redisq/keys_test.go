package redisq

import (
	"bytes"
	"testing"
)

func TestKeys(t *testing.T) {
	if got := streamKey("email"); got != "courier:queue:email" {
		t.Errorf("streamKey = %q, want %q", got, "courier:queue:email")
	}
	if got := retryKey("email"); got != "courier:retry:email" {
		t.Errorf("retryKey = %q, want %q", got, "courier:retry:email")
	}
	if got := deadKey("email"); got != "courier:dead:email" {
		t.Errorf("deadKey = %q, want %q", got, "courier:dead:email")
	}
}

func TestRetryMember_DistinctForIdenticalBodies(t *testing.T) {
	body := []byte(`{"class":"EmailWorker"}`)

	a := retryMember("tok-a", body)
	b := retryMember("tok-b", body)
	if a == b {
		t.Fatal("identical bodies must produce distinct members")
	}
	if got := retryMemberBody(a); !bytes.Equal(got, body) {
		t.Errorf("retryMemberBody = %q, want %q", got, body)
	}
	if got := retryMemberBody(b); !bytes.Equal(got, body) {
		t.Errorf("retryMemberBody = %q, want %q", got, body)
	}
}

func TestRetryMemberBody_PreservesPipesInBody(t *testing.T) {
	body := []byte(`a|b|c`)
	if got := retryMemberBody(retryMember("tok", body)); !bytes.Equal(got, body) {
		t.Errorf("retryMemberBody = %q, want %q", got, body)
	}
}

func TestRetryMemberBody_UntokenedMemberPassesThrough(t *testing.T) {
	if got := retryMemberBody("plainbody"); !bytes.Equal(got, []byte("plainbody")) {
		t.Errorf("retryMemberBody = %q, want %q", got, "plainbody")
	}
}

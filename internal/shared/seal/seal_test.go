package seal

import (
	"errors"
	"testing"
	"time"
)

type payload struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := New("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := sealer.Seal(payload{SessionID: "s-1", State: "POLLING"}, now)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	var out payload
	if err := sealer.Open(token, now.Add(30*time.Second), &out); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if out.SessionID != "s-1" || out.State != "POLLING" {
		t.Fatalf("payload mismatch: %+v", out)
	}
}

func TestOpenRejectsExpiredToken(t *testing.T) {
	sealer, err := New("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := sealer.Seal(payload{SessionID: "s-1"}, now)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	var out payload
	if err := sealer.Open(token, now.Add(2*time.Minute), &out); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestOpenRejectsTamperedToken(t *testing.T) {
	sealer, err := New("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	now := time.Now().UTC()
	token, err := sealer.Seal(payload{SessionID: "s-1"}, now)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	tampered := []byte(token)
	tampered[len(tampered)-1] ^= 1
	var out payload
	if err := sealer.Open(string(tampered), now, &out); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestOpenRejectsTokenFromOtherSecret(t *testing.T) {
	first, err := New("secret-one", time.Minute)
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	second, err := New("secret-two", time.Minute)
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	now := time.Now().UTC()
	token, err := first.Seal(payload{SessionID: "s-1"}, now)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	var out payload
	if err := second.Open(token, now, &out); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

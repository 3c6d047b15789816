package token

import (
	"errors"
	"testing"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec failed: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	session := entities.SigningSession{
		SessionID: "s-1",
		VoteID:    "v-1",
		UserID:    "user-1",
		Method:    entities.MethodPhone,
		State:     entities.StatePolling,
		Identity:  entities.Identity{PersonalID: "39001010000", PhoneNumber: "+37255550000"},
		OptionIDs: []string{"opt-1"},
	}
	token, err := codec.Seal(session, now)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	opened, err := codec.Open(token, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if opened.SessionID != "s-1" || opened.State != entities.StatePolling {
		t.Fatalf("session mismatch: %+v", opened)
	}
	if opened.Identity.PersonalID != "39001010000" {
		t.Fatalf("identity lost in round trip")
	}
}

func TestCodecMapsSealErrors(t *testing.T) {
	codec, err := NewCodec("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec failed: %v", err)
	}
	now := time.Now().UTC()
	token, err := codec.Seal(entities.SigningSession{SessionID: "s-1"}, now)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	if _, err := codec.Open(token, now.Add(2*time.Minute)); !errors.Is(err, domainerrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := codec.Open("not-a-token", now); !errors.Is(err, domainerrors.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
)

func TestUpsertBindsIdentityOnce(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	first := entities.UserConnection{
		UserID:     "user-1",
		Method:     entities.MethodPhone,
		ExternalID: "39001010000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.Upsert(context.Background(), first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	// Same pair again is a no-op.
	if err := store.Upsert(context.Background(), first); err != nil {
		t.Fatalf("repeat upsert failed: %v", err)
	}

	second := first
	second.UserID = "user-2"
	if err := store.Upsert(context.Background(), second); !errors.Is(err, domainerrors.ErrIdentityAlreadyBound) {
		t.Fatalf("expected ErrIdentityAlreadyBound, got %v", err)
	}
}

func TestUpsertBindsAccountOncePerMethod(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	if err := store.Upsert(context.Background(), entities.UserConnection{
		UserID:     "user-1",
		Method:     entities.MethodPhone,
		ExternalID: "39001010000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	if err := store.Upsert(context.Background(), entities.UserConnection{
		UserID:     "user-1",
		Method:     entities.MethodPhone,
		ExternalID: "48002020000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}); !errors.Is(err, domainerrors.ErrAccountAlreadyBound) {
		t.Fatalf("expected ErrAccountAlreadyBound, got %v", err)
	}

	// A different method is a separate binding dimension.
	if err := store.Upsert(context.Background(), entities.UserConnection{
		UserID:     "user-1",
		Method:     entities.MethodApp,
		ExternalID: "39001010000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("app upsert failed: %v", err)
	}
}

func TestGetByExternalID(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	if err := store.Upsert(context.Background(), entities.UserConnection{
		UserID:     "user-1",
		Method:     entities.MethodApp,
		ExternalID: " 39001010000 ",
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	connection, ok, err := store.GetByExternalID(context.Background(), entities.MethodApp, "39001010000")
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if connection.UserID != "user-1" {
		t.Fatalf("unexpected user: %s", connection.UserID)
	}

	if _, ok, _ := store.GetByExternalID(context.Background(), entities.MethodPhone, "39001010000"); ok {
		t.Fatalf("method must scope the lookup")
	}
}

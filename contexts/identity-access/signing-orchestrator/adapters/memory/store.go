package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"

	"github.com/google/uuid"
)

// Store is the in-memory connection repository. The mutex makes the binding
// invariant check atomic with the write.
type Store struct {
	mu          sync.RWMutex
	connections map[string]entities.UserConnection // key: method + externalID
}

func NewStore() *Store {
	return &Store{
		connections: make(map[string]entities.UserConnection),
	}
}

func connectionKey(method entities.SigningMethod, externalID string) string {
	return string(method) + ":" + strings.TrimSpace(externalID)
}

func (s *Store) Upsert(_ context.Context, connection entities.UserConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := connectionKey(connection.Method, connection.ExternalID)
	if existing, ok := s.connections[key]; ok && existing.UserID != connection.UserID {
		return domainerrors.ErrIdentityAlreadyBound
	}
	for _, existing := range s.connections {
		if existing.UserID == connection.UserID &&
			existing.Method == connection.Method &&
			existing.ExternalID != strings.TrimSpace(connection.ExternalID) {
			return domainerrors.ErrAccountAlreadyBound
		}
	}
	if connection.ConnectionID == "" {
		connection.ConnectionID = uuid.NewString()
	}
	connection.ExternalID = strings.TrimSpace(connection.ExternalID)
	s.connections[key] = connection
	return nil
}

func (s *Store) GetByExternalID(_ context.Context, method entities.SigningMethod, externalID string) (entities.UserConnection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	connection, ok := s.connections[connectionKey(method, externalID)]
	return connection, ok, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

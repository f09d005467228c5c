package auth

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// StoredClient is one paired control-panel client: a pairing token
// hash plus the bookkeeping needed to list and revoke it later.
type StoredClient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TokenHash  string    `json:"tokenHash"` // SHA-256 hash of token
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt,omitempty"` // updated on every successful ValidateToken
}

// Store persists paired clients to a JSON file on disk, the same
// client/token bookkeeping every ipc.Server command beyond "pair" is
// gated on.
type Store struct {
	path    string
	mu      sync.RWMutex
	clients map[string]*StoredClient // clientID -> client
}

// NewStore loads (or initializes) a client store backed by path.
func NewStore(path string) (*Store, error) {
	store := &Store{
		path:    path,
		clients: make(map[string]*StoredClient),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
		log.Printf("[AUTH] No existing client store at %s, starting empty", path)
	}

	return store, nil
}

// AddClient registers a newly paired client and persists the store.
func (s *Store) AddClient(clientID, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	client := &StoredClient{
		ID:         clientID,
		Name:       name,
		TokenHash:  HashToken(token),
		CreatedAt:  now,
		LastSeenAt: now,
	}

	s.clients[clientID] = client
	log.Printf("[AUTH] Paired client %q (%s)", name, clientID)

	return s.saveLocked()
}

// RemoveClient revokes a client's pairing and persists the store.
func (s *Store) RemoveClient(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[clientID]; !exists {
		return ErrClientNotFound
	}

	delete(s.clients, clientID)
	log.Printf("[AUTH] Revoked client %s", clientID)

	return s.saveLocked()
}

// ValidateToken reports whether token matches a paired client, and
// touches that client's LastSeenAt in memory on a match.
func (s *Store) ValidateToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenHash := HashToken(token)

	for _, client := range s.clients {
		if client.TokenHash == tokenHash {
			client.LastSeenAt = time.Now()
			return true
		}
	}

	return false
}

// GetClientByToken returns the client associated with a token
func (s *Store) GetClientByToken(token string) (*StoredClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokenHash := HashToken(token)

	for _, client := range s.clients {
		if client.TokenHash == tokenHash {
			return client, nil
		}
	}

	return nil, ErrClientNotFound
}

// ListClients returns all registered clients
func (s *Store) ListClients() ([]ClientInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, ClientInfo{
			ID:         client.ID,
			Name:       client.Name,
			CreatedAt:  client.CreatedAt,
			LastSeenAt: client.LastSeenAt,
		})
	}

	return clients, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var stored struct {
		Clients []*StoredClient `json:"clients"`
	}

	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse store: %w", err)
	}

	s.clients = make(map[string]*StoredClient)
	for _, client := range stored.Clients {
		s.clients[client.ID] = client
	}
	log.Printf("[AUTH] Loaded %d paired client(s) from %s", len(s.clients), s.path)

	return nil
}

func (s *Store) saveLocked() error {
	clients := make([]*StoredClient, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}

	stored := struct {
		Clients []*StoredClient `json:"clients"`
	}{
		Clients: clients,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}

	return nil
}

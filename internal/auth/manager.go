// Package auth handles client authentication and authorization.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	tokenBytes      = 32 // 256-bit tokens
	maxAuthFailures = 5
	lockoutDuration = 60 * time.Second
)

// Manager handles client authentication
type Manager struct {
	store    *Store
	testMode bool
	pairing  *PairingManager

	mu           sync.RWMutex
	authFailures map[string]int       // IP -> failure count
	lockouts     map[string]time.Time // IP -> lockout end time
}

// NewManager creates a new auth manager. In test mode, pairing requests
// are approved immediately with no OS notification.
func NewManager(store *Store, testMode bool) *Manager {
	m := &Manager{
		store:        store,
		testMode:     testMode,
		pairing:      NewPairingManager(),
		authFailures: make(map[string]int),
		lockouts:     make(map[string]time.Time),
	}

	m.pairing.OnPairingRequest = func(req *PairingRequest) {
		if !m.testMode {
			if err := ShowPairingNotification(req.ClientName); err != nil {
				log.Printf("[AUTH] Failed to show pairing notification: %v", err)
			}
		}
		if _, err := m.pairing.Approve(req.ID); err != nil {
			log.Printf("[AUTH] Failed to approve pairing request %s: %v", req.ID, err)
		}
	}

	return m
}

// Pair initiates the pairing process for a client and blocks until it is
// approved, denied, or expires.
// Returns: token, clientID, requiresApproval, error
func (m *Manager) Pair(clientName string) (string, string, bool, error) {
	req := m.pairing.CreateRequest(clientName)

	ctx, cancel := context.WithTimeout(context.Background(), pairingTimeout)
	defer cancel()

	resolved, err := m.pairing.WaitForApproval(ctx, req.ID)
	if err != nil {
		return "", "", false, fmt.Errorf("pairing request timed out: %w", err)
	}
	if resolved.State != PairingApproved {
		return "", "", false, ErrUnauthorized
	}

	clientID := generateClientID()
	if err := m.store.AddClient(clientID, clientName, resolved.Token); err != nil {
		return "", "", false, fmt.Errorf("failed to store client: %w", err)
	}

	return resolved.Token, clientID, !m.testMode, nil
}

// ValidateToken checks if a token is valid
func (m *Manager) ValidateToken(token string) bool {
	if token == "" {
		return false
	}

	return m.store.ValidateToken(token)
}

// RecordAuthFailure records an authentication failure
func (m *Manager) RecordAuthFailure(clientIP string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authFailures[clientIP]++

	if m.authFailures[clientIP] >= maxAuthFailures {
		m.lockouts[clientIP] = time.Now().Add(lockoutDuration)
		m.authFailures[clientIP] = 0
	}
}

// IsLockedOut checks if a client IP is locked out
func (m *Manager) IsLockedOut(clientIP string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lockoutEnd, exists := m.lockouts[clientIP]
	if !exists {
		return false
	}

	if time.Now().After(lockoutEnd) {
		// Lockout expired, clean up
		go func() {
			m.mu.Lock()
			delete(m.lockouts, clientIP)
			m.mu.Unlock()
		}()
		return false
	}

	return true
}

// RevokeClient revokes a client's access
func (m *Manager) RevokeClient(clientID string) error {
	return m.store.RemoveClient(clientID)
}

// ListClients returns all registered clients
func (m *Manager) ListClients() ([]ClientInfo, error) {
	return m.store.ListClients()
}

func generateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// HashToken creates a SHA-256 hash of a token for storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ClientInfo contains information about a registered client
type ClientInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt,omitempty"`
}

var (
	ErrClientNotFound = errors.New("client not found")
	ErrUnauthorized   = errors.New("unauthorized")
)

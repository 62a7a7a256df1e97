package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credential is the stored join proof for one session code
type Credential struct {
	Token         string `json:"token"`
	ParticipantID string `json:"participant_id"`
	SessionID     string `json:"session_id"`
	DisplayName   string `json:"display_name"`
}

// Store persists one credential file per session code under a directory.
// A corrupt or unreadable entry is treated as absent and removed, never
// surfaced as an error.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the credential for a session code
func (s *Store) Save(code string, cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := os.WriteFile(s.path(code), data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

// Load returns the credential for a session code, or nil when none is
// stored. A corrupt entry is deleted and reported as absent.
func (s *Store) Load(code string) (*Credential, error) {
	data, err := os.ReadFile(s.path(code))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.Token == "" {
		os.Remove(s.path(code))
		return nil, nil
	}
	return &cred, nil
}

// Clear removes the credential for a session code
func (s *Store) Clear(code string) error {
	err := os.Remove(s.path(code))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// SaveQueue persists an auxiliary payload, used by the signal sender for
// its pending queue.
func (s *Store) SaveQueue(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	if err := os.WriteFile(s.auxPath(name), data, 0o600); err != nil {
		return fmt.Errorf("failed to write queue: %w", err)
	}
	return nil
}

// LoadQueue restores an auxiliary payload. A corrupt entry is deleted
// and left as the zero value.
func (s *Store) LoadQueue(name string, v interface{}) error {
	data, err := os.ReadFile(s.auxPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		os.Remove(s.auxPath(name))
		return nil
	}
	return nil
}

func (s *Store) path(code string) string {
	return filepath.Join(s.dir, "lekbanken.participant."+sanitize(code)+".json")
}

func (s *Store) auxPath(name string) string {
	return filepath.Join(s.dir, "lekbanken."+sanitize(name)+".json")
}

// sanitize keeps codes filesystem-safe
func sanitize(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.ToUpper(code))
}

// Package session persists the login session in the config directory.
//
// The file mirrors the two browser storage keys the service's web client
// uses, "token" and "user", and always writes or removes them together.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"taskdash/internal/service"
)

var (
	// ErrNoSession is returned by Clear when nothing is stored.
	ErrNoSession = errors.New("not logged in")

	// ErrIncomplete is returned by Load when a token is stored without a
	// usable user profile and the token carries no usable claims, and by
	// Save for a session that could not be rendered.
	ErrIncomplete = errors.New("stored session is incomplete")
)

// Session is a bearer token and the profile of the user it belongs to.
type Session struct {
	Token string        `json:"token"`
	User  *service.User `json:"user,omitempty"`
}

// Complete reports whether the session has a token and a user with an id
// and a role.
func (s *Session) Complete() bool {
	return s != nil && s.Token != "" && s.User != nil && s.User.ID != "" && s.User.Role != ""
}

// Store reads and writes a Session file.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a session file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the stored session. It returns (nil, nil) when no session is
// stored. A token whose user is missing, or lacks an id or role, is
// completed from the token's claims when possible, otherwise ErrIncomplete
// is returned.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(s.path), err)
	}
	if sess.Token == "" {
		return nil, nil
	}
	if !sess.Complete() {
		user, ok := UserFromToken(sess.Token)
		if !ok {
			return nil, ErrIncomplete
		}
		sess.User = &user
	}
	return &sess, nil
}

// Save writes token and user in one atomic replace with mode 0600.
func (s *Store) Save(sess *Session) error {
	if !sess.Complete() {
		return fmt.Errorf("%w: session requires a token and a user with an id and role", ErrIncomplete)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear removes the stored session, token and user alike.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoSession
	}
	return err
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/shelfmark/pkg/integrations/hfhub"
)

// Keyring stores sessions as one JSON file per hub endpoint.
type Keyring struct {
	mu  sync.Mutex
	dir string
}

// Open returns a keyring rooted at dir, creating it with owner-only
// permissions. An empty dir means ~/.config/shelfmark/sessions.
func Open(dir string) (*Keyring, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "shelfmark", "sessions")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Keyring{dir: dir}, nil
}

// Dir returns the directory holding session files.
func (k *Keyring) Dir() string { return k.dir }

// File returns the session file used for endpoint.
func (k *Keyring) File(endpoint string) string {
	return filepath.Join(k.dir, fileKey(endpoint)+".json")
}

// Load returns the session for endpoint, or nil when there is none or it
// has expired. Expired files are removed.
func (k *Keyring) Load(endpoint string) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	path := k.File(endpoint)
	sess, err := readSession(path)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		os.Remove(path)
		return nil, nil
	}
	return sess, nil
}

// Save writes sess, replacing any session for the same endpoint.
func (k *Keyring) Save(sess *Session) error {
	if sess.Endpoint == "" {
		return errors.New("session has no endpoint")
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	tmp, err := os.CreateTemp(k.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	// CreateTemp already uses 0600.
	return os.Rename(tmp.Name(), k.File(sess.Endpoint))
}

// Delete removes the session for endpoint. Deleting a missing session is
// not an error.
func (k *Keyring) Delete(endpoint string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.File(endpoint)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Prune removes expired and unreadable session files and reports how many
// it removed.
func (k *Keyring) Prune() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(k.dir, "*.json"))
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, path := range paths {
		sess, err := readSession(path)
		if err == nil && sess != nil && !sess.Expired(now) {
			continue
		}
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed, nil
}

// TokenSource yields the saved token for endpoint, or [hfhub.ErrNoToken]
// when nothing usable is saved.
func (k *Keyring) TokenSource(endpoint string) hfhub.TokenSource {
	return func(context.Context) (string, error) {
		sess, err := k.Load(endpoint)
		if err != nil {
			return "", err
		}
		if sess == nil || sess.Token == "" {
			return "", hfhub.ErrNoToken
		}
		return sess.Token, nil
	}
}

func readSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", filepath.Base(path), err)
	}
	return &sess, nil
}

// fileKey turns an endpoint into a file name: the URL host with anything
// outside [A-Za-z0-9.-] replaced by '_'.
func fileKey(endpoint string) string {
	key := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		key = u.Host
	}
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, key)
	if key == "" {
		return "_"
	}
	return key
}

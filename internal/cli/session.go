package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arena/internal/config"
)

var ErrNoSession = errors.New("no operator session, run `arenactl login`")

// Session is the operator profile saved by `arenactl login`.
type Session struct {
	APIBaseURL    string    `json:"api_base_url,omitempty"`
	OperatorToken string    `json:"operator_token"`
	SavedAt       time.Time `json:"saved_at"`
}

// Profile is what a command runs with after the environment and the saved
// session are merged.
type Profile struct {
	APIBaseURL    string
	OperatorToken string
}

// ResolveProfile merges cfg with the saved session. An explicitly set
// ARENA_API_BASE_URL beats the URL saved at login, which beats the default.
// An environment operator token beats the saved one.
func ResolveProfile(cfg config.CLIConfig) Profile {
	p := Profile{APIBaseURL: cfg.APIBaseURL, OperatorToken: cfg.OperatorToken}
	sess, err := LoadSession()
	if err != nil {
		return p
	}
	if !cfg.APIBaseURLSet && sess.APIBaseURL != "" {
		p.APIBaseURL = sess.APIBaseURL
	}
	if p.OperatorToken == "" {
		p.OperatorToken = sess.OperatorToken
	}
	return p
}

// BaseDir is ~/.arena, created on first use.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".arena")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func sessionPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// SaveSession validates and writes s with owner-only permissions.
func SaveSession(s Session) error {
	s.OperatorToken = strings.TrimSpace(s.OperatorToken)
	if s.OperatorToken == "" {
		return fmt.Errorf("operator token is required")
	}
	s.APIBaseURL = strings.TrimRight(strings.TrimSpace(s.APIBaseURL), "/")
	if s.APIBaseURL != "" {
		u, err := url.Parse(s.APIBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid api base url %q", s.APIBaseURL)
		}
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	path, err := sessionPath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

func LoadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	if strings.TrimSpace(s.OperatorToken) == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func ClearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"hnsort/internal/logger"
)

const installedCredentials = `{
  "installed": {
    "client_id": "id.apps.googleusercontent.com",
    "client_secret": "secret",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

func TestLoadOAuthConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(installedCredentials), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOAuthConfig(path, "http://localhost:3000")
	if err != nil {
		t.Fatalf("LoadOAuthConfig failed: %v", err)
	}

	if cfg.ClientID != "id.apps.googleusercontent.com" || cfg.RedirectURL != "http://localhost:3000" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	url := AuthURL(cfg, "state")
	for _, want := range []string{"access_type=offline", "drive.file", "state=state"} {
		if !strings.Contains(url, want) {
			t.Errorf("auth url %q missing %q", url, want)
		}
	}

	if _, err := LoadOAuthConfig(filepath.Join(t.TempDir(), "nope.json"), ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "token.json")
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour).Round(time.Second)}

	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	loaded, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}

	if loaded.AccessToken != "a" || loaded.RefreshToken != "r" || !loaded.Expiry.Equal(tok.Expiry) {
		t.Errorf("unexpected token: %+v", loaded)
	}

	if _, err := LoadToken(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

type sequenceSource struct {
	tokens []*oauth2.Token
	i      int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	tok := s.tokens[s.i]
	if s.i < len(s.tokens)-1 {
		s.i++
	}

	return tok, nil
}

func TestPersistingTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	ts := &persistingTokenSource{
		base: &sequenceSource{tokens: []*oauth2.Token{{AccessToken: "old"}, {AccessToken: "new", RefreshToken: "r"}}},
		path: path,
		log:  logger.Discard(),
		last: "old",
	}

	if _, err := ts.Token(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("unchanged token should not be written")
	}

	if _, err := ts.Token(); err != nil {
		t.Fatal(err)
	}

	saved, err := LoadToken(path)
	if err != nil || saved.AccessToken != "new" {
		t.Errorf("refreshed token not persisted: %+v, %v", saved, err)
	}
}

func TestIsInvalidGrant(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{&oauth2.RetrieveError{ErrorCode: "invalid_grant"}, true},
		{fmt.Errorf("upload: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}), true},
		{errors.New("oauth2: Token has been expired or revoked."), true},
	}

	for _, tt := range tests {
		if got := IsInvalidGrant(tt.err); got != tt.want {
			t.Errorf("IsInvalidGrant(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExchange_EmptyCode(t *testing.T) {
	if _, err := Exchange(context.Background(), &oauth2.Config{}, "  ", "x"); !errors.Is(err, ErrEmptyAuthCode) {
		t.Errorf("Expected ErrEmptyAuthCode, got %v", err)
	}
}

// Package drive uploads failure screenshots to Google Drive.
//
// Authentication uses the OAuth2 installed-app flow: credentials.json holds the
// client secret downloaded from the Cloud console and token.json holds the
// user's token. Refreshed tokens are written back to token.json.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"

	"hnsort/internal/logger"
)

// Auth errors.
var (
	ErrMissingCredentials = errors.New("google credentials file not found")
	ErrMissingToken       = errors.New("google token file not found")
	ErrEmptyAuthCode      = errors.New("authorization code is empty")
)

// LoadOAuthConfig reads credentials.json. A non-empty redirectURL overrides the
// one stored in the file, which is what the local redirect capture needs.
func LoadOAuthConfig(credentialsFile, redirectURL string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, credentialsFile)
		}

		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, drivev3.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}

	return cfg, nil
}

// AuthURL returns the consent page URL. Offline access yields a refresh token.
func AuthURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and saves it to tokenFile.
func Exchange(ctx context.Context, cfg *oauth2.Config, code, tokenFile string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyAuthCode
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := SaveToken(tokenFile, tok); err != nil {
		return nil, err
	}

	return tok, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingToken, path)
		}

		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return &tok, nil
}

// SaveToken writes the token as indented JSON, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}

	return nil
}

// persistingTokenSource saves every new access token it hands out.
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string
	log  *logger.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken != p.last {
		p.last = tok.AccessToken

		// Google omits the refresh token on refresh responses; ReuseTokenSource keeps the old one.
		if err := SaveToken(p.path, tok); err != nil {
			p.log.Warn("could not save refreshed token", "error", err)
		} else {
			p.log.Debug("token refreshed and saved", "path", p.path)
		}
	}

	return tok, nil
}

// NewTokenSource returns a token source seeded from tokenFile that writes refreshed tokens back.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, tokenFile string, log *logger.Logger) (oauth2.TokenSource, error) {
	if log == nil {
		log = logger.Discard()
	}

	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	base := oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok))

	return &persistingTokenSource{base: base, path: tokenFile, log: log, last: tok.AccessToken}, nil
}

// NewHTTPClient returns an authorized client for the Drive API.
func NewHTTPClient(ctx context.Context, credentialsFile, tokenFile string, log *logger.Logger) (*http.Client, error) {
	cfg, err := LoadOAuthConfig(credentialsFile, "")
	if err != nil {
		return nil, err
	}

	ts, err := NewTokenSource(ctx, cfg, tokenFile, log)
	if err != nil {
		return nil, err
	}

	return oauth2.NewClient(ctx, ts), nil
}

// IsInvalidGrant reports whether err means the stored token was expired or revoked.
func IsInvalidGrant(err error) bool {
	if err == nil {
		return false
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "Token has been expired or revoked")
}

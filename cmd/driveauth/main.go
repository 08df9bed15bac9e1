// Package main performs the one-time Google Drive OAuth setup and saves token.json.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"html"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"hnsort/internal/config"
	"hnsort/internal/drive"
)

const authTimeout = 5 * time.Minute

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrAuthTimeout   = errors.New("authentication timeout, no response received")
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	manual := flag.Bool("manual", false, "Paste the authorization code instead of capturing the redirect")

	flag.Parse()

	_ = godotenv.Load()

	cfg := config.DefaultConfig()

	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
			os.Exit(2)
		}

		cfg = loaded
	}

	cfg.ApplyEnv()

	if err := authenticate(context.Background(), cfg.Drive, *manual); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error during authentication: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Token saved successfully to %s\n", cfg.Drive.TokenFile)
}

func authenticate(ctx context.Context, cfg config.DriveConfig, manual bool) error {
	redirect := ""
	if !manual {
		redirect = fmt.Sprintf("http://localhost:%d", cfg.RedirectPort)
	}

	oauthCfg, err := drive.LoadOAuthConfig(cfg.CredentialsFile, redirect)
	if err != nil {
		return err
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	fmt.Println("🔐 Please visit this URL to authorize the application:")
	fmt.Println(drive.AuthURL(oauthCfg, state))
	fmt.Println()

	var code string

	if manual {
		fmt.Print("Enter the authorization code: ")

		if _, err := fmt.Scanln(&code); err != nil {
			return fmt.Errorf("failed to read authorization code: %w", err)
		}
	} else {
		code, err = captureCode(ctx, cfg.RedirectPort, state)
		if err != nil {
			return err
		}
	}

	_, err = drive.Exchange(ctx, oauthCfg, code, cfg.TokenFile)

	return err
}

// captureCode serves the redirect on localhost:port and returns the code it carries.
func captureCode(ctx context.Context, port int, state string) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return "", fmt.Errorf("failed to listen for redirect: %w", err)
	}

	type result struct {
		err  error
		code string
	}

	done := make(chan result, 1)
	send := func(r result) {
		select {
		case done <- r:
		default:
		}
	}

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")

			switch {
			case q.Get("error") != "":
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, "<h1>Authentication Error</h1><p>%s</p><p>You can close this window.</p>", html.EscapeString(q.Get("error")))
				send(result{err: fmt.Errorf("oauth error: %s", q.Get("error"))})
			case q.Get("code") != "" && q.Get("state") != state:
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, "<h1>Authentication Error</h1><p>State mismatch.</p>")
				send(result{err: ErrStateMismatch})
			case q.Get("code") != "":
				fmt.Fprint(w, "<h1>Authentication Successful</h1><p>You can close this window and return to the terminal.</p>")
				send(result{code: q.Get("code")})
			default:
				fmt.Fprint(w, "<h1>Waiting for authorization...</h1>")
			}
		}),
	}

	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	fmt.Printf("🌐 Waiting for OAuth redirect on http://localhost:%d\n", port)

	select {
	case res := <-done:
		return res.code, res.err
	case <-time.After(authTimeout):
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return hex.EncodeToString(b), nil
}

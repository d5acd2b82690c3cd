// Command clipper-oauth obtains the YouTube upload credential once, out of
// band. "url" prints the consent link; "exchange <code>" trades the code the
// consent page shows for tokens and writes tokens.json and tokens.env.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"github.com/heimdex/clipper/internal/youtube"
)

const (
	authURL         = "https://accounts.google.com/o/oauth2/auth"
	defaultRedirect = "http://localhost:8080/oauth2callback"

	envClientID     = "CLIENT_ID"
	envClientSecret = "CLIENT_SECRET"
	envRedirectURI  = "REDIRECT_URI"

	tokensEnvFile = "tokens.env"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if len(args) == 0 {
		return usage()
	}

	cfg, err := oauthConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "url":
		printConsentURL(out, cfg)
		return nil
	case "exchange":
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return usage()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return exchange(ctx, out, cfg, strings.TrimSpace(args[1]), ".")
	default:
		return usage()
	}
}

func usage() error {
	return errors.New(`usage: clipper-oauth url | clipper-oauth exchange "<code>"`)
}

func oauthConfig() (*oauth2.Config, error) {
	id := os.Getenv(envClientID)
	secret := os.Getenv(envClientSecret)
	if id == "" || secret == "" {
		return nil, fmt.Errorf("set %s and %s in the environment", envClientID, envClientSecret)
	}
	redirect := os.Getenv(envRedirectURI)
	if redirect == "" {
		redirect = defaultRedirect
	}
	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  redirect,
		Scopes:       youtube.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: youtube.DefaultTokenURI,
		},
	}, nil
}

// consentURL asks for offline access and forces the consent screen so
// Google issues a refresh token even for a previously authorized client.
func consentURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func printConsentURL(out io.Writer, cfg *oauth2.Config) {
	fmt.Fprintln(out, "\nOpen this link, authorize, and copy the code shown:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, consentURL(cfg))
	fmt.Fprintln(out, "\nThen run:  clipper-oauth exchange \"<code>\"")
}

func exchange(ctx context.Context, out io.Writer, cfg *oauth2.Config, code, dir string) error {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	return writeTokens(out, cfg, tok, dir)
}

func writeTokens(out io.Writer, cfg *oauth2.Config, tok *oauth2.Token, dir string) error {
	tf := youtube.NewTokenFile(cfg, tok)
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	jsonPath := filepath.Join(dir, youtube.LocalTokenFile)
	if err := os.WriteFile(jsonPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}

	var env strings.Builder
	fmt.Fprintf(&env, "YOUTUBE_ACCESS_TOKEN=%q\n", tf.AccessToken)
	if tf.RefreshToken != "" {
		fmt.Fprintf(&env, "YOUTUBE_REFRESH_TOKEN=%q\n", tf.RefreshToken)
	}
	envPath := filepath.Join(dir, tokensEnvFile)
	if err := os.WriteFile(envPath, []byte(env.String()), 0600); err != nil {
		return fmt.Errorf("write %s: %w", envPath, err)
	}

	fmt.Fprintln(out, "tokens written:", jsonPath)
	fmt.Fprintln(out, "shell exports:", envPath)
	if tf.RefreshToken == "" {
		fmt.Fprintln(out, "warning: Google returned no refresh_token. Revoke the app's access and run the flow again; the consent URL already asks for offline access with prompt=consent.")
	}
	return nil
}

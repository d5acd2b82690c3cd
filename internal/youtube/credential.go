// Package youtube uploads finished clips to a YouTube channel through the
// Data API v3 using a stored OAuth2 credential.
package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURI is Google's OAuth2 token endpoint.
const DefaultTokenURI = "https://oauth2.googleapis.com/token"

const (
	// LocalTokenFile is where clipper-oauth writes its output.
	LocalTokenFile = "tokens.json"
	// SecretTokenFile is the path hosting platforms mount secret files at.
	SecretTokenFile = "/etc/secrets/tokens.json"
)

// Scopes requested at consent time and carried in tokens.json.
var Scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube",
}

var (
	// ErrAuth covers missing, malformed or rejected credentials.
	ErrAuth = errors.New("youtube authentication failed")
	// ErrUpload covers every failure after authentication succeeded.
	ErrUpload = errors.New("youtube upload failed")
)

// Credential is the OAuth2 material the uploader authenticates with.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURI     string
	Expiry       time.Time
}

// Validate checks the credential can yield a token.
func (c Credential) Validate() error {
	if c.AccessToken == "" && c.RefreshToken == "" {
		return fmt.Errorf("%w: no access or refresh token configured", ErrAuth)
	}
	if c.RefreshToken != "" && (c.ClientID == "" || c.ClientSecret == "") {
		return fmt.Errorf("%w: refresh token requires client id and secret", ErrAuth)
	}
	return nil
}

// Token converts the credential into an oauth2 token. When a refresh token
// is present and no expiry is known the token is treated as expired so the
// first use refreshes it.
func (c Credential) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}
	if tok.Expiry.IsZero() && tok.RefreshToken != "" {
		tok.Expiry = time.Unix(1, 0)
	}
	return tok
}

// OAuthConfig returns the client config for refreshing this credential.
func (c Credential) OAuthConfig() *oauth2.Config {
	tokenURI := c.TokenURI
	if tokenURI == "" {
		tokenURI = DefaultTokenURI
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURI},
		Scopes:       Scopes,
	}
}

// TokenFile is the on-disk credential shape shared with clipper-oauth.
type TokenFile struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry,omitempty"`
}

// Credential converts the file contents, parsing the expiry leniently.
func (f TokenFile) Credential() (Credential, error) {
	c := Credential{
		AccessToken:  f.AccessToken,
		RefreshToken: f.RefreshToken,
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		TokenURI:     f.TokenURI,
	}
	if f.Expiry != "" {
		exp, err := parseExpiry(f.Expiry)
		if err != nil {
			return Credential{}, fmt.Errorf("%w: bad expiry %q", ErrAuth, f.Expiry)
		}
		c.Expiry = exp
	}
	return c, nil
}

// NewTokenFile builds the file form of an exchanged token.
func NewTokenFile(cfg *oauth2.Config, tok *oauth2.Token) TokenFile {
	f := TokenFile{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     cfg.Endpoint.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}
	if !tok.Expiry.IsZero() {
		f.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}
	return f
}

// Expiry timestamps may come without a zone, as written by other tools.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z",
}

func parseExpiry(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range expiryLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(s))
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ReadTokenFile loads a credential from a tokens.json file.
func ReadTokenFile(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credential{}, err
	}
	var f TokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Credential{}, fmt.Errorf("%w: parse %s: %v", ErrAuth, path, err)
	}
	return f.Credential()
}

// LoadCredential resolves the upload credential once at startup. The first
// existing file among tokenFile, ./tokens.json and the platform secret path
// wins; otherwise env is used. The returned source names where it came from.
func LoadCredential(tokenFile string, env Credential) (Credential, string, error) {
	return loadCredential(candidatePaths(tokenFile), env)
}

func candidatePaths(tokenFile string) []string {
	var paths []string
	if tokenFile != "" {
		paths = append(paths, tokenFile)
	}
	return append(paths, LocalTokenFile, SecretTokenFile)
}

func loadCredential(paths []string, env Credential) (Credential, string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		cred, err := ReadTokenFile(p)
		if err != nil {
			return Credential{}, p, err
		}
		if cred.TokenURI == "" {
			cred.TokenURI = env.TokenURI
		}
		if err := cred.Validate(); err != nil {
			return Credential{}, p, err
		}
		return cred, p, nil
	}

	if err := env.Validate(); err != nil {
		return Credential{}, "env", err
	}
	return env, "env", nil
}

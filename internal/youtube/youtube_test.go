package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envCred() Credential {
	return Credential{
		AccessToken:  "env-access",
		RefreshToken: "env-refresh",
		ClientID:     "env-client",
		ClientSecret: "env-secret",
		TokenURI:     DefaultTokenURI,
	}
}

func writeTokenFile(t *testing.T, dir string, f TokenFile) string {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(dir, "tokens.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestVideoLink(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", VideoLink("abc123"))
}

func TestCredential_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		wantErr bool
	}{
		{"full", envCred(), false},
		{"access only", Credential{AccessToken: "a"}, false},
		{"empty", Credential{}, true},
		{"refresh without client", Credential{RefreshToken: "r"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrAuth)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredential_TokenForcesRefreshWithoutExpiry(t *testing.T) {
	tok := envCred().Token()
	assert.False(t, tok.Valid(), "unknown expiry with refresh token must refresh first")

	c := envCred()
	c.Expiry = time.Now().Add(time.Hour)
	assert.True(t, c.Token().Valid())
}

func TestLoadCredential_Precedence(t *testing.T) {
	dir := t.TempDir()
	filePath := writeTokenFile(t, dir, TokenFile{
		AccessToken:  "file-access",
		RefreshToken: "file-refresh",
		ClientID:     "file-client",
		ClientSecret: "file-secret",
		Expiry:       "2030-01-02T03:04:05.123456",
	})

	t.Run("file wins over env", func(t *testing.T) {
		cred, src, err := loadCredential([]string{filePath}, envCred())
		require.NoError(t, err)
		assert.Equal(t, filePath, src)
		assert.Equal(t, "file-refresh", cred.RefreshToken)
		assert.Equal(t, DefaultTokenURI, cred.TokenURI, "token uri falls back to env")
		assert.Equal(t, 2030, cred.Expiry.Year())
	})

	t.Run("first existing path wins", func(t *testing.T) {
		missing := filepath.Join(dir, "nope.json")
		_, src, err := loadCredential([]string{missing, filePath}, envCred())
		require.NoError(t, err)
		assert.Equal(t, filePath, src)
	})

	t.Run("env fallback", func(t *testing.T) {
		cred, src, err := loadCredential([]string{filepath.Join(dir, "nope.json")}, envCred())
		require.NoError(t, err)
		assert.Equal(t, "env", src)
		assert.Equal(t, "env-refresh", cred.RefreshToken)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, _, err := loadCredential(nil, Credential{})
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "tokens.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0600))
		_, _, err := loadCredential([]string{bad}, envCred())
		assert.ErrorIs(t, err, ErrAuth)
	})
}

func TestCandidatePaths(t *testing.T) {
	assert.Equal(t, []string{LocalTokenFile, SecretTokenFile}, candidatePaths(""))
	assert.Equal(t, []string{"/x/t.json", LocalTokenFile, SecretTokenFile}, candidatePaths("/x/t.json"))
}

func TestNewTokenFile_RoundTrip(t *testing.T) {
	cfg := envCred().OAuthConfig()
	exp := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	f := NewTokenFile(cfg, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: exp})

	assert.Equal(t, DefaultTokenURI, f.TokenURI)
	assert.Equal(t, Scopes, f.Scopes)

	cred, err := f.Credential()
	require.NoError(t, err)
	assert.True(t, exp.Equal(cred.Expiry))
}

// fakeGoogle serves the token endpoint and the Data API upload endpoint,
// including the resumable session that large files are sent through.
type fakeGoogle struct {
	uploadStatus int
	tokenStatus  int
	// chunkStatus answers the first chunk transfer when set.
	chunkStatus int
	refreshes   atomic.Int32
	uploads     atomic.Int32
	chunks      atomic.Int32
	received    atomic.Int64
	lastAuth    atomic.Value
	lastBody    atomic.Value
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/token":
		f.refreshes.Add(1)
		if f.tokenStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenStatus)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-access-token","token_type":"Bearer","expires_in":3600}`))
	case r.URL.Path == "/upload-session":
		n := f.chunks.Add(1)
		body, _ := io.ReadAll(r.Body)
		if n == 1 && f.chunkStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.chunkStatus)
			w.Write([]byte(`{"error":{"code":503,"message":"backend unavailable"}}`))
			return
		}
		f.received.Add(int64(len(body)))
		if strings.HasSuffix(r.Header.Get("Content-Range"), "/*") {
			w.Header().Set("X-Http-Status-Code-Override", "308")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"abc123","kind":"youtube#video"}`))
	case strings.HasSuffix(r.URL.Path, "/youtube/v3/videos") && r.URL.Query().Get("uploadType") == "resumable":
		f.uploads.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(body))
		w.Header().Set("Location", "http://"+r.Host+"/upload-session")
	case strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
		f.uploads.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(body))
		w.Header().Set("Content-Type", "application/json")
		if f.uploadStatus != 0 {
			w.WriteHeader(f.uploadStatus)
			w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
			return
		}
		w.Write([]byte(`{"id":"abc123","kind":"youtube#video"}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestUploader(t *testing.T, fg *fakeGoogle, opts ...Option) *Uploader {
	t.Helper()
	srv := httptest.NewServer(fg)
	t.Cleanup(srv.Close)

	cred := envCred()
	cred.TokenURI = srv.URL + "/token"
	u, err := NewUploader(cred, testLogger(), append([]Option{
		WithHTTPClient(srv.Client()),
		WithEndpoint(srv.URL + "/"),
	}, opts...)...)
	require.NoError(t, err)
	return u
}

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output_clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake mp4 payload"), 0644))
	return path
}

func TestUploader_AuthenticateRefreshes(t *testing.T) {
	fg := &fakeGoogle{}
	u := newTestUploader(t, fg)

	require.NoError(t, u.Authenticate(context.Background()))
	require.NoError(t, u.Authenticate(context.Background()))
	assert.Equal(t, int32(1), fg.refreshes.Load(), "token reused until expiry")
}

func TestUploader_AuthenticateRejected(t *testing.T) {
	fg := &fakeGoogle{tokenStatus: http.StatusBadRequest}
	u := newTestUploader(t, fg)

	err := u.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestUploader_Upload(t *testing.T) {
	fg := &fakeGoogle{}
	u := newTestUploader(t, fg)

	res, err := u.Upload(context.Background(), writeClip(t), Metadata{Title: "Short automático", Description: "Gerado automaticamente"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.VideoID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", res.VideoLink)

	assert.Equal(t, "Bearer fresh-access-token", fg.lastAuth.Load())
	body := fg.lastBody.Load().(string)
	assert.Contains(t, body, `"categoryId":"22"`)
	assert.Contains(t, body, `"privacyStatus":"public"`)
	assert.Contains(t, body, `"selfDeclaredMadeForKids":false`)
	assert.Contains(t, body, `"Automated"`)
	assert.Contains(t, body, "fake mp4 payload")
}

func TestUploader_UploadAPIError(t *testing.T) {
	fg := &fakeGoogle{uploadStatus: http.StatusForbidden}
	u := newTestUploader(t, fg)

	_, err := u.Upload(context.Background(), writeClip(t), Metadata{Title: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int32(1), fg.uploads.Load(), "no retry on failure")
}

func writeLargeClip(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output_clip.mp4")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0644))
	return path
}

func TestUploader_UploadResumable(t *testing.T) {
	fg := &fakeGoogle{}
	u := newTestUploader(t, fg, WithChunkSize(googleapi.MinUploadChunkSize))

	res, err := u.Upload(context.Background(), writeLargeClip(t, 600*1024), Metadata{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.VideoID)
	assert.Equal(t, int32(1), fg.uploads.Load())
	assert.Equal(t, int32(3), fg.chunks.Load(), "600KiB in 256KiB chunks")
	assert.Equal(t, int64(600*1024), fg.received.Load())
	assert.Contains(t, fg.lastBody.Load().(string), `"categoryId":"22"`)
}

func TestUploader_ChunkFailureIsFinal(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fg := &fakeGoogle{chunkStatus: status}
			u := newTestUploader(t, fg, WithChunkSize(googleapi.MinUploadChunkSize))

			start := time.Now()
			_, err := u.Upload(context.Background(), writeLargeClip(t, 600*1024), Metadata{Title: "t"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUpload)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, status, apiErr.StatusCode)
			assert.Equal(t, "backend unavailable", apiErr.Message)
			assert.Equal(t, int32(1), fg.chunks.Load(), "failed chunk is not resent")
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestFailFastTransport_PassesOtherRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: failFastTransport{base: http.DefaultTransport}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("x"))
	require.NoError(t, err)
	req.Header.Set("Content-Range", "bytes 0-0/*")
	_, err = client.Do(req)
	var failure *chunkFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, http.StatusServiceUnavailable, failure.status)
	assert.Equal(t, "Service Unavailable", failure.detail)
}

func TestUploader_MissingFile(t *testing.T) {
	u := newTestUploader(t, &fakeGoogle{})
	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), Metadata{})
	assert.ErrorIs(t, err, ErrUpload)
}

func TestAPIError_Unwrap(t *testing.T) {
	assert.ErrorIs(t, &APIError{StatusCode: 401}, ErrAuth)
	assert.ErrorIs(t, &APIError{StatusCode: 500}, ErrUpload)
}

func TestNewUploader_RejectsEmptyCredential(t *testing.T) {
	_, err := NewUploader(Credential{}, testLogger())
	assert.ErrorIs(t, err, ErrAuth)
}

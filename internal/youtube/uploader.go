package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/heimdex/clipper/internal/logging"
)

const (
	// CategoryPeopleBlogs is the fixed upload category.
	CategoryPeopleBlogs = "22"
	PrivacyPublic       = "public"

	// DefaultChunkSize keeps a one-minute clip on the resumable path. Files
	// smaller than one chunk go out as a single multipart request.
	DefaultChunkSize = 1024 * 1024
)

// Tags attached to every upload.
var Tags = []string{"Shorts", "Automated", "YouTube API"}

// VideoLink returns the public watch URL for a video id.
func VideoLink(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Metadata describes the clip being uploaded.
type Metadata struct {
	Title       string
	Description string
}

// UploadResult identifies the created video.
type UploadResult struct {
	VideoID   string `json:"video_id"`
	VideoLink string `json:"video_link"`
}

// APIError wraps a non-2xx response from the Data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps 401 to ErrAuth and everything else to ErrUpload.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrAuth
	}
	return ErrUpload
}

// Uploader performs authenticated resumable uploads. It is safe for
// concurrent use; the token source is shared and refreshes on demand.
type Uploader struct {
	tokens     oauth2.TokenSource
	httpClient *http.Client
	endpoint   string
	chunkSize  int
	logger     *slog.Logger
}

// Option customises an Uploader.
type Option func(*Uploader)

// WithHTTPClient sets the base client used for token refresh and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.httpClient = c }
}

// WithEndpoint overrides the Data API base URL.
func WithEndpoint(endpoint string) Option {
	return func(u *Uploader) { u.endpoint = endpoint }
}

// WithChunkSize sets the resumable upload chunk size in bytes. The library
// rounds it up to a multiple of googleapi.MinUploadChunkSize. Non-positive
// values keep the default.
func WithChunkSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// NewUploader builds an uploader bound to cred. The credential is validated
// here; it is not re-read later.
func NewUploader(cred Credential, logger *slog.Logger, opts ...Option) (*Uploader, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	u := &Uploader{
		httpClient: http.DefaultClient,
		chunkSize:  DefaultChunkSize,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(u)
	}

	refreshCtx := context.WithValue(context.Background(), oauth2.HTTPClient, u.httpClient)
	u.tokens = oauth2.ReuseTokenSource(nil, cred.OAuthConfig().TokenSource(refreshCtx, cred.Token()))

	return u, nil
}

// Authenticate obtains a valid access token, refreshing it if needed.
func (u *Uploader) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, err := u.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	u.logger.Debug("youtube token ready",
		"token", logging.SanitizeToken(tok.AccessToken),
		"expires_in", time.Until(tok.Expiry).Round(time.Second).String(),
	)
	return nil
}

// Upload sends the file at path as a new public video.
func (u *Uploader) Upload(ctx context.Context, path string, meta Metadata) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: open clip: %v", ErrUpload, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: stat clip: %v", ErrUpload, err)
	}
	size := info.Size()
	meta = meta.Sanitized()

	svc, err := u.service(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: create service: %v", ErrUpload, err)
	}

	video := &ytapi.Video{
		Snippet: &ytapi.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        Tags,
			CategoryId:  CategoryPeopleBlogs,
		},
		Status: &ytapi.VideoStatus{
			PrivacyStatus:           PrivacyPublic,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	u.logger.Info("uploading clip",
		"file", filepath.Base(path),
		"size_bytes", size,
		"title", meta.Title,
	)

	lastPct := -1
	start := time.Now()
	created, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ChunkSize(u.chunkSize), googleapi.ContentType("video/mp4")).
		ProgressUpdater(func(current, total int64) {
			if total <= 0 {
				total = size
			}
			if total <= 0 {
				return
			}
			pct := int(current * 100 / total)
			if pct != lastPct {
				lastPct = pct
				u.logger.Info("upload progress", "percent", pct)
			}
		}).
		Context(ctx).
		Do()
	if err != nil {
		return UploadResult{}, classify(err)
	}
	if created.Id == "" {
		return UploadResult{}, fmt.Errorf("%w: response carried no video id", ErrUpload)
	}

	u.logger.Info("upload finished",
		"video_id", created.Id,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return UploadResult{VideoID: created.Id, VideoLink: VideoLink(created.Id)}, nil
}

func (u *Uploader) service(ctx context.Context) (*ytapi.Service, error) {
	clientCtx := context.WithValue(ctx, oauth2.HTTPClient, u.httpClient)
	client := oauth2.NewClient(clientCtx, u.tokens)
	client.Transport = failFastTransport{base: client.Transport}
	opts := []option.ClientOption{
		option.WithHTTPClient(client),
	}
	if u.endpoint != "" {
		opts = append(opts, option.WithEndpoint(u.endpoint))
	}
	return ytapi.NewService(ctx, opts...)
}

func classify(err error) error {
	var chunk *chunkFailure
	if errors.As(err, &chunk) {
		if chunk.status != 0 {
			return &APIError{StatusCode: chunk.status, Message: chunk.detail}
		}
		return fmt.Errorf("%w: %s", ErrUpload, chunk.detail)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return fmt.Errorf("%w: %v", ErrUpload, err)
}

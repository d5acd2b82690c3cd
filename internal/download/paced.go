package download

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Paced spaces out upstream requests across all concurrent runs.
type Paced struct {
	next    Downloader
	limiter *rate.Limiter
}

// NewPaced allows perMinute downloads per minute with a burst of one.
// A non-positive perMinute disables pacing and returns next unchanged.
func NewPaced(next Downloader, perMinute int) Downloader {
	if perMinute <= 0 {
		return next
	}
	return &Paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (p *Paced) Download(ctx context.Context, url, dir string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Download(ctx, url, dir)
}

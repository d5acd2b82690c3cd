package youtube

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// chunkFailure ends a resumable upload at the first failed chunk. The client
// library retries chunk transfers on 408, 429 and 5xx responses and on
// transport errors whose text looks transient. A chunkFailure has neither
// Temporary nor Unwrap and its text is fixed, so the library gives up on it.
type chunkFailure struct {
	status int
	detail string
}

func (e *chunkFailure) Error() string { return "upload chunk rejected" }

// failFastTransport turns every failed chunk transfer into a chunkFailure.
// Requests without a Content-Range header pass through untouched; the
// library does not retry those.
type failFastTransport struct {
	base http.RoundTripper
}

func (t failFastTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if req.Header.Get("Content-Range") == "" {
		return resp, err
	}
	if err != nil {
		var rerr *oauth2.RetrieveError
		if req.Context().Err() != nil || errors.As(err, &rerr) {
			return nil, err
		}
		return nil, &chunkFailure{detail: err.Error()}
	}
	if !retriedStatus(resp.StatusCode) {
		return resp, nil
	}

	failure := &chunkFailure{status: resp.StatusCode, detail: http.StatusText(resp.StatusCode)}
	if gerr, ok := googleapi.CheckResponse(resp).(*googleapi.Error); ok && gerr.Message != "" {
		failure.detail = gerr.Message
	}
	resp.Body.Close()
	return nil, failure
}

func retriedStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/relaybot/core/telegram/netutil"
)

// Long polling holds a request open for the poll timeout, so the client
// timeout must stay well above it.
const (
	clientTimeout  = 30 * time.Second
	dialTimeout    = 5 * time.Second
	headerTimeout  = 5 * time.Second
	dialRetries    = 2
	dialRetryDelay = 500 * time.Millisecond
)

// BuildHTTPClient returns the client used for Bot API calls.
// Requests are repeated only when no connection could be made, so a forward
// to the admin chat is never delivered twice by the transport.
func BuildHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   dialTimeout,
				ResponseHeaderTimeout: headerTimeout,
			},
			maxRetries: dialRetries,
			backoff:    dialRetryDelay,
		},
	}
}

// retryTransport repeats requests that never reached the server.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	for attempt := 1; attempt <= t.maxRetries && err != nil && netutil.NotSent(err); attempt++ {
		if waitErr := sleepCtx(req, t.backoff*time.Duration(attempt)); waitErr != nil {
			return nil, waitErr
		}
		next, rewindErr := rewind(req)
		if rewindErr != nil {
			return nil, err
		}
		resp, err = base.RoundTrip(next)
	}
	return resp, err
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, http.ErrBodyNotAllowed
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultUserAgent is the User-Agent header sent with requests.
const DefaultUserAgent = "addonkit/1.0"

// Downloader issues GET requests against the distribution server.
//
// No client timeout is set: tarballs are streamed for as long as the
// transfer takes, and cancellation comes from the request context.
type Downloader struct {
	client    *http.Client
	userAgent string
}

// NewDownloader returns a downloader that sends every request through
// proxy when it is non-empty. The process environment is never consulted;
// callers resolve proxy settings up front.
func NewDownloader(proxy string) (*Downloader, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url %q: %w", proxy, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("parse proxy url %q: missing scheme or host", proxy)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Downloader{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
	}, nil
}

// Open issues a GET for rawURL and returns the response body. what names the
// artifact in error messages. Any status other than 200 is an error.
func (d *Downloader) Open(ctx context.Context, rawURL, what string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading %s: %w", ErrNetwork, what, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d status code downloading %s", ErrNetwork, resp.StatusCode, what)
	}

	return resp.Body, nil
}

// Fetch reads a small document fully into memory, at most limit bytes.
func (d *Downloader) Fetch(ctx context.Context, rawURL, what string, limit int64) ([]byte, error) {
	body, err := d.Open(ctx, rawURL, what)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrNetwork, what, err)
	}
	return data, nil
}

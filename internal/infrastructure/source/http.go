package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// HTTPFetcher downloads release files from an FTP-over-HTTPS mirror such as
// ftp.ebi.ac.uk or ftp.expasy.org. Each file is downloaded in full to a temp
// file before Fetch returns, so the timeout bounds the download only and a
// slow consumer cannot outlive the connection.
type HTTPFetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewHTTPFetcher(baseURL string, timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPFetcher{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Origin() string { return "http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	target := joinURL(f.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "build source request").WithDetail(target)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "fetch source").WithDetail(target)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, errors.New(errors.ErrCodeSourceNotFound, "source file not found").WithDetail(target)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, errors.New(errors.ErrCodeSourceUnavailable, fmt.Sprintf("source returned HTTP %d", resp.StatusCode)).
			WithDetail(target)
	}
	defer resp.Body.Close()

	sf, err := Spool(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "spool source").WithDetail(target)
	}
	return sf, nil
}

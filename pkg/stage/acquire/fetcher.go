package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/farepipe/farepipe/pkg/metrics"
)

// Fetcher retrieves a remote URL into a local file. The stage depends on
// this interface so tests can observe (or suppress) network activity.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// HTTPFetcher is the production Fetcher. It streams the response body to
// the destination path. No client timeout is imposed here; callers that
// need bounded latency cancel through the context.
type HTTPFetcher struct {
	// Client overrides the HTTP client; nil uses http.DefaultClient.
	Client *http.Client
}

// Fetch performs a GET of url and writes the body to dest.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected download status %s", resp.Status)
	}

	out, err := os.Create(dest) //nolint:gosec // G304: dest comes from validated config
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	metrics.BytesDownloaded.Add(float64(n))

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive file: %w", err)
	}
	return nil
}

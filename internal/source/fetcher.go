package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

const defaultFetchTimeout = 10 * time.Second

// ipPattern matches IPv4 dotted quads anywhere in a source body. Octet
// ranges are deliberately not validated; sources are trusted to publish
// plausible addresses and downstream probing weeds out garbage.
var ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// Extraction is the outcome of scanning one source.
// Addresses preserves match order and may contain duplicates; the
// aggregator collapses them. Count is the raw match count.
type Extraction struct {
	Source    string
	Addresses []string
	Count     int
	Succeeded bool
	Err       string
}

// Fetcher retrieves raw text from external sources and extracts
// candidate addresses. A single HTTP client is built once and reused
// across fetches.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher whose requests time out after timeout.
// A non-positive timeout falls back to the default.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchAll scans every source URL and returns one Extraction per source,
// in input order. Individual source failures are recorded in the result
// and never abort the overall pass.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Extraction {
	out := make([]Extraction, 0, len(urls))
	for _, u := range urls {
		ex := f.fetchOne(ctx, u)
		if !ex.Succeeded {
			slog.Warn("source: fetch failed", "source", u, "err", ex.Err)
		} else {
			slog.Debug("source: fetched", "source", u, "addresses", ex.Count)
		}
		out = append(out, ex)
	}
	return out
}

// fetchOne issues one GET and extracts all address matches from the body.
func (f *Fetcher) fetchOne(ctx context.Context, url string) Extraction {
	ex := Extraction{Source: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		ex.Err = fmt.Sprintf("build request: %v", err)
		return ex
	}

	resp, err := f.client.Do(req)
	if err != nil {
		ex.Err = fmt.Sprintf("http get: %v", err)
		return ex
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ex.Err = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return ex
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ex.Err = fmt.Sprintf("read body: %v", err)
		return ex
	}

	ex.Addresses = ipPattern.FindAllString(string(body), -1)
	ex.Count = len(ex.Addresses)
	ex.Succeeded = true
	return ex
}

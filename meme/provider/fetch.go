package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// MaxFetchBytes caps a single download.
const MaxFetchBytes = 20 << 20

// ErrTooLarge is returned when a download exceeds the Fetcher's cap.
var ErrTooLarge = errors.New("file too large")

// Fetcher downloads remote files into the staging area.
type Fetcher struct {
	http  *http.Client
	limit int64
}

// NewFetcher returns a Fetcher using client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{http: client, limit: MaxFetchBytes}
}

// Fetch writes the body at rawURL to dst, creating parent directories.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dst string) error {
	const op = "fetch"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if resp.ContentLength > f.limit {
		return fmt.Errorf("%s: %w: %d bytes", op, ErrTooLarge, resp.ContentLength)
	}
	if err := WriteFile(dst, &capReader{r: resp.Body, left: f.limit}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// capReader fails once more than left bytes were read.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// WriteFile streams r into path through a temp file and a rename.
func WriteFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

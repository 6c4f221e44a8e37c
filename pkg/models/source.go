package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ProgressFunc receives byte progress while an asset downloads. total is -1
// when the size is unknown.
type ProgressFunc func(loaded, total int64)

// Source fetches asset bytes and the external resources they reference.
type Source interface {
	Fetch(ctx context.Context, path string, progress ProgressFunc) ([]byte, error)
	// Resolve fetches uri relative to the asset at base.
	Resolve(ctx context.Context, base, uri string) ([]byte, error)
}

// IsURL reports whether path names an http(s) resource.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// FileSource reads assets from the local filesystem.
type FileSource struct{}

// Fetch implements Source.
func (FileSource) Fetch(ctx context.Context, path string, progress ProgressFunc) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := int64(-1)
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	return readAll(ctx, f, total, progress)
}

// Resolve implements Source.
func (FileSource) Resolve(_ context.Context, base, uri string) ([]byte, error) {
	if filepath.IsAbs(uri) {
		return os.ReadFile(uri)
	}
	return os.ReadFile(filepath.Join(filepath.Dir(base), filepath.FromSlash(uri)))
}

// HTTPSource downloads assets over http(s).
type HTTPSource struct {
	Client *http.Client
}

func (s HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// Fetch implements Source.
func (s HTTPSource) Fetch(ctx context.Context, path string, progress ProgressFunc) ([]byte, error) {
	resp, err := s.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readAll(ctx, resp.Body, resp.ContentLength, progress)
}

// Resolve implements Source.
func (s HTTPSource) Resolve(ctx context.Context, base, uri string) ([]byte, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	resp, err := s.get(ctx, b.ResolveReference(ref).String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s HTTPSource) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return resp, nil
}

// AutoSource routes URLs to HTTP and everything else to the filesystem.
type AutoSource struct {
	File FileSource
	HTTP HTTPSource
}

// Fetch implements Source.
func (s AutoSource) Fetch(ctx context.Context, path string, progress ProgressFunc) ([]byte, error) {
	if IsURL(path) {
		return s.HTTP.Fetch(ctx, path, progress)
	}
	return s.File.Fetch(ctx, path, progress)
}

// Resolve implements Source.
func (s AutoSource) Resolve(ctx context.Context, base, uri string) ([]byte, error) {
	if IsURL(base) || IsURL(uri) {
		return s.HTTP.Resolve(ctx, base, uri)
	}
	return s.File.Resolve(ctx, base, uri)
}

const progressChunk = 32 * 1024

// readAll reads r to EOF, reporting progress after each chunk.
func readAll(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) ([]byte, error) {
	var buf []byte
	if total > 0 {
		buf = make([]byte, 0, total)
	}
	chunk := make([]byte, progressChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if n > 0 && progress != nil {
			progress(int64(len(buf)), total)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

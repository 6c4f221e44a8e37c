package models

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// Loader fetches and decodes glTF/GLB assets.
type Loader struct {
	Source           Source
	CalculateNormals bool
	Log              *zap.Logger
}

// NewLoader creates a loader reading local files and http(s) URLs.
func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		Source:           AutoSource{},
		CalculateNormals: true,
		Log:              log,
	}
}

// Load fetches the asset at p and decodes it. progress may be nil.
func (l *Loader) Load(ctx context.Context, p string, progress ProgressFunc) (*Asset, error) {
	start := time.Now()
	data, err := l.Source.Fetch(ctx, p, progress)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p, err)
	}

	if err := sniff(data); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	var doc gltf.Document
	dec := gltf.NewDecoderFS(bytes.NewReader(data), sourceFS{ctx: ctx, source: l.Source, base: p})
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}

	resource := func(uri string) ([]byte, error) {
		return l.Source.Resolve(ctx, p, uri)
	}
	asset, err := Decode(&doc, assetName(p), l.CalculateNormals, resource, l.Log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	l.Log.Debug("asset loaded",
		zap.String("path", p),
		zap.Int("bytes", len(data)),
		zap.Int("clips", len(asset.Clips)),
		zap.Duration("took", time.Since(start)))
	return asset, nil
}

// sniff accepts binary GLB and JSON glTF payloads.
func sniff(data []byte) error {
	if bytes.HasPrefix(data, []byte("glTF")) {
		return nil
	}
	if trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf"); len(trimmed) > 0 && trimmed[0] == '{' {
		return nil
	}
	return ErrUnsupportedFormat
}

func assetName(p string) string {
	if IsURL(p) {
		if u, err := url.Parse(p); err == nil {
			return path.Base(u.Path)
		}
	}
	return filepath.Base(p)
}

// sourceFS serves the external buffers a glTF document references, read
// through the loader's source relative to the document at base.
type sourceFS struct {
	ctx    context.Context
	source Source
	base   string
}

func (f sourceFS) Open(name string) (fs.File, error) {
	data, err := f.source.Resolve(f.ctx, f.base, name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &resourceFile{Reader: bytes.NewReader(data), name: path.Base(name)}, nil
}

// resourceFile is an in-memory fs.File.
type resourceFile struct {
	*bytes.Reader
	name string
}

func (f *resourceFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *resourceFile) Close() error               { return nil }

func (f *resourceFile) Name() string       { return f.name }
func (f *resourceFile) Mode() fs.FileMode  { return 0o444 }
func (f *resourceFile) ModTime() time.Time { return time.Time{} }
func (f *resourceFile) IsDir() bool        { return false }
func (f *resourceFile) Sys() any           { return nil }

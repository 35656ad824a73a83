// Package repository resolves resource locators into metadata, selects
// concrete artifacts and materializes their files into a local cache.
//
// The package defines the Repository contract, a factory that classifies a
// location string into a local or remote strategy, and the shared
// materialization engine both strategies compose. A strategy only has to
// provide the Source capability (a base location and a way to open a stream
// for a resolved URI); resolution, selection, caching and extraction are
// shared.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"mrl.software/mrl/metadata"
	"mrl.software/mrl/mrl"
)

// Realm is the log attribute identifying this package's log records.
const Realm = "repository"

var (
	// ErrNotFound is returned when a locator is unknown to a repository or
	// no artifact matches the requested version and filter.
	ErrNotFound = errors.New("resource not found")

	// ErrDataIntegrity is returned when a fetched item stream does not match
	// the digest its metadata declares.
	ErrDataIntegrity = errors.New("data integrity verification failed")
)

// Repository resolves logical resources into concrete, locally materialized
// files. Implementations block for the duration of any network or filesystem
// I/O; cancellation is honored through the passed context.
type Repository interface {
	// Name returns the configured name of the repository.
	Name() string

	// BaseURI returns the root location of the repository.
	BaseURI() *url.URL

	// Locate resolves a locator to the metadata describing the artifacts
	// available for it. Unknown locators fail with ErrNotFound.
	Locate(ctx context.Context, m mrl.MRL) (*metadata.Metadata, error)

	// Resolve locates the resource and selects exactly one artifact. A
	// non-empty version restricts eligibility to that exact version,
	// otherwise the highest version wins. Every filter entry must match a
	// property of the artifact. No eligible artifact fails with ErrNotFound.
	Resolve(ctx context.Context, m mrl.MRL, version string, filter map[string]string) (*metadata.Artifact, error)

	// OpenStream opens a read stream for one file of a materialized item.
	// For directory items, path addresses the file inside the item. The
	// owning artifact is prepared first if needed.
	OpenStream(ctx context.Context, item *metadata.Item, path string) (io.ReadCloser, error)

	// Prepare materializes all items of the artifact into the cache.
	// Preparing an already materialized artifact is a no-op.
	Prepare(ctx context.Context, artifact *metadata.Artifact) error

	// CacheDirectory returns the root cache location, creating it if absent.
	CacheDirectory() (string, error)
}

// Source is the capability a concrete fetch strategy contributes to the
// shared engine: a base location, and the ability to open a byte stream for
// an already-resolved URI.
type Source interface {
	BaseURI() *url.URL
	OpenURI(ctx context.Context, uri *url.URL) (io.ReadCloser, error)
}

// New constructs a repository for the given location. A non-absolute path or
// a file: URI yields a local repository; any other absolute URI scheme a
// remote one.
func New(name, location string, opts ...Option) (Repository, error) {
	uri, err := url.Parse(location)
	if err != nil || !uri.IsAbs() {
		return NewLocal(name, location, opts...)
	}
	if strings.EqualFold(uri.Scheme, "file") {
		return NewLocal(name, uri.Path, opts...)
	}
	return NewRemote(name, uri, opts...), nil
}

// Option configures a repository constructed by this package.
type Option func(*options)

type options struct {
	cacheDir   string
	httpClient httpDoer
}

// WithCacheDir overrides the default cache root for a repository.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// DefaultCacheDirectory returns the cache root used when none is configured:
// $MRL_CACHE_DIR if set, otherwise ~/.mrl/cache.
func DefaultCacheDirectory() string {
	if dir := os.Getenv("MRL_CACHE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mrl", "cache")
	}
	return filepath.Join(home, ".mrl", "cache")
}

// resolve implements the shared Resolve contract on top of Locate.
func resolve(ctx context.Context, repo Repository, m mrl.MRL, version string, filter map[string]string) (*metadata.Artifact, error) {
	md, err := repo.Locate(ctx, m)
	if err != nil {
		return nil, err
	}
	artifact, ok := metadata.Select(md, version, filter)
	if !ok {
		return nil, fmt.Errorf("%w: no artifact of %s matches version %q and filter %v", ErrNotFound, m, version, filter)
	}
	return artifact, nil
}

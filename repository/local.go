package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"mrl.software/mrl/metadata"
	"mrl.software/mrl/mrl"
)

// MetadataFileName is the document a repository serves for each resource,
// relative to the resource's path.
const MetadataFileName = "metadata.json"

// LocalRepository serves resources from a directory on the local filesystem.
type LocalRepository struct {
	name string
	dir  string

	engine engine
}

var _ Repository = (*LocalRepository)(nil)

// NewLocal creates a repository rooted at the given directory.
func NewLocal(name, dir string, opts ...Option) (*LocalRepository, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve repository directory %s: %w", dir, err)
	}
	repo := &LocalRepository{name: name, dir: abs}
	repo.engine = engine{src: repo, cacheDir: o.cacheDir}
	return repo, nil
}

func (r *LocalRepository) Name() string {
	return r.name
}

func (r *LocalRepository) BaseURI() *url.URL {
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(r.dir) + "/"}
}

// OpenURI opens a file from the repository directory. Only file URIs can be
// served by a local repository.
func (r *LocalRepository) OpenURI(_ context.Context, uri *url.URL) (io.ReadCloser, error) {
	if uri.Scheme != "" && !strings.EqualFold(uri.Scheme, "file") {
		return nil, fmt.Errorf("local repository %s cannot serve %s", r.name, uri)
	}
	file, err := os.Open(filepath.FromSlash(uri.Path))
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", uri.Path, err)
	}
	return file, nil
}

func (r *LocalRepository) Locate(ctx context.Context, m mrl.MRL) (_ *metadata.Metadata, err error) {
	document := filepath.Join(r.dir, filepath.FromSlash(m.Path()), MetadataFileName)
	file, err := os.Open(document)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s in repository %s", ErrNotFound, m, r.name)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open metadata for %s: %w", m, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	md, err := metadata.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("unable to decode metadata for %s: %w", m, err)
	}
	md.BaseURI = m.Path() + "/"
	slog.DebugContext(ctx, "located resource", "realm", Realm, "mrl", m.String(), "artifacts", len(md.Artifacts))
	return md, nil
}

func (r *LocalRepository) Resolve(ctx context.Context, m mrl.MRL, version string, filter map[string]string) (*metadata.Artifact, error) {
	return resolve(ctx, r, m, version, filter)
}

func (r *LocalRepository) OpenStream(ctx context.Context, item *metadata.Item, path string) (io.ReadCloser, error) {
	return r.engine.openStream(ctx, item, path)
}

func (r *LocalRepository) Prepare(ctx context.Context, artifact *metadata.Artifact) error {
	return r.engine.prepare(ctx, artifact)
}

func (r *LocalRepository) CacheDirectory() (string, error) {
	return r.engine.cacheDirectory()
}

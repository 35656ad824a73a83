package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"mrl.software/mrl/metadata"
	"mrl.software/mrl/mrl"
)

// httpDoer is the subset of http.Client the remote strategy needs.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WithHTTPClient overrides the HTTP client used by a remote repository.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// RemoteRepository serves resources from an HTTP(S) origin.
type RemoteRepository struct {
	name   string
	base   *url.URL
	client httpDoer

	engine engine
}

var _ Repository = (*RemoteRepository)(nil)

// NewRemote creates a repository rooted at the given base URL.
func NewRemote(name string, base *url.URL, opts ...Option) *RemoteRepository {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	client := o.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	normalized := *base
	if !strings.HasSuffix(normalized.Path, "/") {
		normalized.Path += "/"
	}
	repo := &RemoteRepository{name: name, base: &normalized, client: client}
	repo.engine = engine{src: repo, cacheDir: o.cacheDir}
	return repo
}

func (r *RemoteRepository) Name() string {
	return r.name
}

func (r *RemoteRepository) BaseURI() *url.URL {
	base := *r.base
	return &base
}

// OpenURI performs a GET request for the given URI and returns the response
// body. A 404 maps to ErrNotFound; any other non-2xx status is an I/O error.
func (r *RemoteRepository) OpenURI(ctx context.Context, uri *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build request for %s: %w", uri, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s: %w", uri, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrNotFound, uri), resp.Body.Close())
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errors.Join(fmt.Errorf("unexpected status %s fetching %s", resp.Status, uri), resp.Body.Close())
	}
	return resp.Body, nil
}

func (r *RemoteRepository) Locate(ctx context.Context, m mrl.MRL) (_ *metadata.Metadata, err error) {
	document := r.base.JoinPath(m.Path(), MetadataFileName)
	stream, err := r.OpenURI(ctx, document)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s in repository %s", ErrNotFound, m, r.name)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to fetch metadata for %s: %w", m, err)
	}
	defer func() {
		err = errors.Join(err, stream.Close())
	}()

	md, err := metadata.Decode(stream)
	if err != nil {
		return nil, fmt.Errorf("unable to decode metadata for %s: %w", m, err)
	}
	md.BaseURI = m.Path() + "/"
	slog.DebugContext(ctx, "located resource", "realm", Realm, "mrl", m.String(), "repository", r.base.Redacted(), "artifacts", len(md.Artifacts))
	return md, nil
}

func (r *RemoteRepository) Resolve(ctx context.Context, m mrl.MRL, version string, filter map[string]string) (*metadata.Artifact, error) {
	return resolve(ctx, r, m, version, filter)
}

func (r *RemoteRepository) OpenStream(ctx context.Context, item *metadata.Item, path string) (io.ReadCloser, error) {
	return r.engine.openStream(ctx, item, path)
}

func (r *RemoteRepository) Prepare(ctx context.Context, artifact *metadata.Artifact) error {
	return r.engine.prepare(ctx, artifact)
}

func (r *RemoteRepository) CacheDirectory() (string, error) {
	return r.engine.cacheDirectory()
}

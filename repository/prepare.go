package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mrl.software/mrl/archive"
	"mrl.software/mrl/metadata"
)

// engine is the materialization core shared by the local and remote
// strategies. It owns the cache layout (one directory per artifact resource
// URI under the cache root), the staged extraction that keeps partially
// fetched artifacts out of the final layout, and the per-artifact
// serialization of concurrent Prepare calls.
type engine struct {
	src      Source
	cacheDir string

	group singleflight.Group
}

func (e *engine) cacheDirectory() (string, error) {
	dir := e.cacheDir
	if dir == "" {
		dir = DefaultCacheDirectory()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create cache directory %s: %w", dir, err)
	}
	return dir, nil
}

// prepare materializes the artifact into the cache. The check for an already
// materialized artifact is a directory presence check only; because items are
// staged and promoted with a single rename, an existing directory always
// holds a fully prepared artifact. Concurrent calls for the same artifact are
// collapsed into one materialization; distinct artifacts do not block each
// other. Failed materializations leave nothing behind in the final layout.
func (e *engine) prepare(ctx context.Context, artifact *metadata.Artifact) error {
	root, err := e.cacheDirectory()
	if err != nil {
		return err
	}
	resourceURI := artifact.ResourceURI()
	resourceDir := filepath.Join(root, filepath.FromSlash(resourceURI))

	if _, err := os.Stat(resourceDir); err == nil {
		slog.DebugContext(ctx, "artifact already materialized", "realm", Realm, "resource", resourceURI)
		return nil
	}

	_, err, shared := e.group.Do(resourceURI, func() (_ any, err error) {
		if _, err := os.Stat(resourceDir); err == nil {
			return nil, nil
		}

		stage, err := os.MkdirTemp(root, ".partial-*")
		if err != nil {
			return nil, fmt.Errorf("unable to create staging directory: %w", err)
		}
		defer os.RemoveAll(stage)

		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(goruntime.NumCPU())
		for _, item := range artifact.Files {
			eg.Go(func() error {
				return e.fetchItem(ctx, item, stage)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		if err := os.MkdirAll(filepath.Dir(resourceDir), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create resource directory: %w", err)
		}
		if err := os.Rename(stage, resourceDir); err != nil {
			if _, statErr := os.Stat(resourceDir); statErr == nil {
				// a concurrent caller promoted the same artifact first
				return nil, nil
			}
			return nil, fmt.Errorf("unable to promote staged artifact: %w", err)
		}
		slog.DebugContext(ctx, "artifact materialized", "realm", Realm, "resource", resourceURI, "items", len(artifact.Files))
		return nil, nil
	})
	if shared {
		slog.DebugContext(ctx, "shared concurrent materialization", "realm", Realm, "resource", resourceURI)
	}
	return err
}

// fetchItem streams one item into the staging directory, applying the
// transform its extension declares and verifying the source digest when the
// item carries one.
func (e *engine) fetchItem(ctx context.Context, item *metadata.Item, dir string) (err error) {
	uri, err := e.resolveItemURI(item)
	if err != nil {
		return err
	}

	stream, err := e.src.OpenURI(ctx, uri)
	if err != nil {
		return fmt.Errorf("unable to open stream for item %s: %w", item.Key(), err)
	}
	defer func() {
		err = errors.Join(err, stream.Close())
	}()

	reader := io.Reader(stream)
	var verifier digest.Verifier
	if item.SHA256 != "" {
		verifier = digest.NewDigestFromEncoded(digest.SHA256, item.SHA256).Verifier()
		reader = io.TeeReader(reader, verifier)
	}

	if item.IsDir() {
		// an unnamed directory item unpacks at the artifact root
		target := dir
		if item.Name != "" {
			target = filepath.Join(dir, item.Name)
		}
		switch item.Extension {
		case metadata.ExtensionZip:
			err = archive.ExtractZip(target, reader)
		case metadata.ExtensionTGZ:
			err = archive.ExtractTarGz(target, reader)
		default:
			return fmt.Errorf("%w: %q for directory item %s", archive.ErrUnsupportedFormat, item.Extension, item.Key())
		}
	} else {
		target := filepath.Join(dir, item.Name)
		switch item.Extension {
		case metadata.ExtensionZip:
			err = archive.ExtractFirstZipEntry(target, reader)
		case metadata.ExtensionGzip:
			err = archive.Gunzip(target, reader)
		case metadata.ExtensionNone:
			err = archive.CopyFile(target, reader)
		default:
			return fmt.Errorf("%w: %q for file item %s", archive.ErrUnsupportedFormat, item.Extension, item.Key())
		}
	}
	if err != nil {
		return fmt.Errorf("unable to materialize item %s: %w", item.Key(), err)
	}

	if verifier != nil {
		// the transforms consume the source stream entirely, but drain to be
		// independent of that
		if _, err := io.Copy(io.Discard, reader); err != nil {
			return fmt.Errorf("unable to drain stream for item %s: %w", item.Key(), err)
		}
		if !verifier.Verified() {
			return fmt.Errorf("%w: item %s does not match declared sha256 %s", ErrDataIntegrity, item.Key(), item.SHA256)
		}
	}
	return nil
}

// resolveItemURI resolves an item's source location. Absolute locations are
// used as is; relative ones resolve against the repository base joined with
// the metadata's base location.
func (e *engine) resolveItemURI(item *metadata.Item) (*url.URL, error) {
	uri, err := url.Parse(item.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid item uri %q: %w", item.URI, err)
	}
	if uri.IsAbs() {
		return uri, nil
	}

	base := e.src.BaseURI()
	artifact := item.Artifact()
	if artifact == nil {
		return nil, fmt.Errorf("item %s does not belong to an artifact", item.Key())
	}
	if md := artifact.Metadata(); md != nil && md.BaseURI != "" {
		mdBase, err := url.Parse(md.BaseURI)
		if err != nil {
			return nil, fmt.Errorf("invalid metadata base uri %q: %w", md.BaseURI, err)
		}
		base = base.ResolveReference(mdBase)
	}
	return base.ResolveReference(uri), nil
}

// openStream prepares the owning artifact if needed and opens one of its
// materialized files from the cache.
func (e *engine) openStream(ctx context.Context, item *metadata.Item, path string) (io.ReadCloser, error) {
	artifact := item.Artifact()
	if artifact == nil {
		return nil, fmt.Errorf("item %s does not belong to an artifact", item.Key())
	}
	if err := e.prepare(ctx, artifact); err != nil {
		return nil, err
	}
	root, err := e.cacheDirectory()
	if err != nil {
		return nil, err
	}

	target := filepath.Join(root, filepath.FromSlash(artifact.ResourceURI()), item.Name)
	if path != "" {
		target = filepath.Join(target, filepath.FromSlash(path))
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("unable to open materialized file %s: %w", target, err)
	}
	return file, nil
}

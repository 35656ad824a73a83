package repository_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"mrl.software/mrl/repository"
)

// serveRepository exposes a repository layout over HTTP and counts requests
// per path.
func serveRepository(t *testing.T, files map[string][]byte) (*url.URL, *atomic.Int64) {
	t.Helper()
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		content, ok := files[req.URL.Path]
		if !ok {
			http.NotFound(w, req)
			return
		}
		fetches.Add(1)
		_, _ = w.Write(content)
	}))
	t.Cleanup(server.Close)

	base, err := url.Parse(server.URL)
	require.NoError(t, err)
	return base, &fetches
}

func toyRemoteLayout(t *testing.T, payload []byte) map[string][]byte {
	t.Helper()
	doc := toyDocument(map[string]any{
		"version": "1.0",
		"files":   map[string]any{"data.bin": map[string]any{"uri": "1.0/data.bin.gz", "extension": "gzip"}},
	})
	raw := mustJSON(t, doc)
	return map[string][]byte{
		"/cv/ai/test/toy/metadata.json":   raw,
		"/cv/ai/test/toy/1.0/data.bin.gz": payload,
	}
}

func Test_Remote_ResolveAndPrepare(t *testing.T) {
	r := require.New(t)
	cache := t.TempDir()
	base, fetches := serveRepository(t, toyRemoteLayout(t, gzipped(t, "plaintext")))

	repo := repository.NewRemote("test", base, repository.WithCacheDir(cache))

	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)
	r.NoError(repo.Prepare(t.Context(), artifact))

	data, err := os.ReadFile(filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI()), "data.bin"))
	r.NoError(err)
	r.Equal("plaintext", string(data))

	// metadata + one item
	r.EqualValues(2, fetches.Load())

	// second prepare hits the cache, not the origin
	r.NoError(repo.Prepare(t.Context(), artifact))
	r.EqualValues(2, fetches.Load())
}

func Test_Remote_Locate_NotFound(t *testing.T) {
	base, _ := serveRepository(t, nil)
	repo := repository.NewRemote("test", base, repository.WithCacheDir(t.TempDir()))

	_, err := repo.Locate(t.Context(), toyMRL)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// Concurrent Prepare calls for the same artifact must materialize it exactly
// once.
func Test_Remote_Prepare_Concurrent(t *testing.T) {
	r := require.New(t)
	cache := t.TempDir()
	base, fetches := serveRepository(t, toyRemoteLayout(t, gzipped(t, "plaintext")))

	repo := repository.NewRemote("test", base, repository.WithCacheDir(cache))
	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)
	itemFetchesBefore := fetches.Load()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Prepare(t.Context(), artifact)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		r.NoError(err)
	}

	// exactly one item download across all callers
	r.EqualValues(itemFetchesBefore+1, fetches.Load())
}

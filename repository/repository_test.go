package repository_test

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrl.software/mrl/archive"
	"mrl.software/mrl/mrl"
	"mrl.software/mrl/repository"
)

var toyMRL = mrl.New(mrl.CategoryCV, "ai.test", "toy")

// writeRepository lays out a local repository directory for the toy resource:
// one artifact per version, each holding the given files under
// <resource>/<version>/.
func writeRepository(t *testing.T, dir string, doc map[string]any, files map[string][]byte) {
	t.Helper()
	resourceDir := filepath.Join(dir, filepath.FromSlash(toyMRL.Path()))
	require.NoError(t, os.MkdirAll(resourceDir, 0o755))

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(resourceDir, repository.MetadataFileName), raw, 0o644))

	for name, content := range files {
		target := filepath.Join(resourceDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
		require.NoError(t, os.WriteFile(target, content, 0o644))
	}
}

func mustJSON(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func gzipped(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func zipped(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func toyDocument(artifacts ...map[string]any) map[string]any {
	return map[string]any{
		"metadataVersion": "0.1",
		"resourceType":    "cv",
		"groupId":         "ai.test",
		"artifactId":      "toy",
		"artifacts":       artifacts,
	}
}

func Test_New_Classification(t *testing.T) {
	t.Run("relative path is local", func(t *testing.T) {
		repo, err := repository.New("test", "testdata/repo")
		require.NoError(t, err)
		assert.IsType(t, &repository.LocalRepository{}, repo)
	})
	t.Run("file scheme is local", func(t *testing.T) {
		repo, err := repository.New("test", "file:///var/mrl/repo")
		require.NoError(t, err)
		assert.IsType(t, &repository.LocalRepository{}, repo)
	})
	t.Run("https scheme is remote", func(t *testing.T) {
		repo, err := repository.New("test", "https://resources.example.com/mrl")
		require.NoError(t, err)
		assert.IsType(t, &repository.RemoteRepository{}, repo)
	})
}

// The end-to-end scenario: a gzip file item resolves, prepares and
// materializes byte-equal to the original plaintext.
func Test_Prepare_GzipItem(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files": map[string]any{
			"data.bin": map[string]any{"uri": "1.0/data.bin.gz", "extension": "gzip", "size": 100},
		},
	}), map[string][]byte{"1.0/data.bin.gz": gzipped(t, "plaintext")})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)

	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)
	r.Equal("1.0", artifact.Version)

	r.NoError(repo.Prepare(t.Context(), artifact))

	materialized := filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI()), "data.bin")
	data, err := os.ReadFile(materialized)
	r.NoError(err)
	r.Equal("plaintext", string(data))
}

func Test_Prepare_DirZipItem(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files": map[string]any{
			"labels": map[string]any{"uri": "1.0/labels.zip", "name": "labels", "type": "dir", "extension": "zip"},
		},
	}), map[string][]byte{"1.0/labels.zip": zipped(t, map[string]string{"a.txt": "alpha", "b/c.txt": "gamma"})})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	artifact, err := repo.Resolve(t.Context(), toyMRL, "", nil)
	r.NoError(err)
	r.NoError(repo.Prepare(t.Context(), artifact))

	base := filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI()), "labels")
	a, err := os.ReadFile(filepath.Join(base, "a.txt"))
	r.NoError(err)
	r.Equal("alpha", string(a))
	c, err := os.ReadFile(filepath.Join(base, "b", "c.txt"))
	r.NoError(err)
	r.Equal("gamma", string(c))
}

// A second Prepare must be a no-op: even if the origin changes underneath,
// the materialized content stays untouched.
func Test_Prepare_Idempotent(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files":   map[string]any{"data.bin": map[string]any{"uri": "1.0/data.bin.gz", "extension": "gzip"}},
	}), map[string][]byte{"1.0/data.bin.gz": gzipped(t, "first")})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)
	r.NoError(repo.Prepare(t.Context(), artifact))

	// swap the origin content; a prepared artifact must not be re-fetched
	origin := filepath.Join(src, filepath.FromSlash(toyMRL.Path()), "1.0", "data.bin.gz")
	r.NoError(os.WriteFile(origin, gzipped(t, "second"), 0o644))

	r.NoError(repo.Prepare(t.Context(), artifact))
	data, err := os.ReadFile(filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI()), "data.bin"))
	r.NoError(err)
	r.Equal("first", string(data))
}

func Test_Prepare_UnsupportedExtension(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files": map[string]any{
			// bypass schema-level extension validation by writing the item
			// shape the schema does not know to reject at this level
			"data.bin": map[string]any{"uri": "1.0/data.rar", "extension": ""},
		},
	}), map[string][]byte{"1.0/data.rar": []byte("rar bytes")})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)

	// force an unsupported extension onto the in-memory item
	item, ok := artifact.File("data.bin")
	r.True(ok)
	item.Extension = "rar"

	err = repo.Prepare(t.Context(), artifact)
	r.ErrorIs(err, archive.ErrUnsupportedFormat)

	// the failed materialization must leave no resource directory behind
	_, statErr := os.Stat(filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI())))
	r.True(os.IsNotExist(statErr))
}

func Test_Prepare_DigestMismatch(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	wrong := sha256.Sum256([]byte("something else"))
	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files": map[string]any{
			"data.bin": map[string]any{
				"uri": "1.0/data.bin", "extension": "",
				"sha256": hex.EncodeToString(wrong[:]),
			},
		},
	}), map[string][]byte{"1.0/data.bin": []byte("actual content")})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)

	err = repo.Prepare(t.Context(), artifact)
	r.ErrorIs(err, repository.ErrDataIntegrity)
	_, statErr := os.Stat(filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI())))
	r.True(os.IsNotExist(statErr))
}

func Test_Prepare_DigestVerified(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	payload := gzipped(t, "plaintext")
	sum := sha256.Sum256(payload)
	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files": map[string]any{
			"data.bin": map[string]any{
				"uri": "1.0/data.bin.gz", "extension": "gzip",
				"sha256": hex.EncodeToString(sum[:]),
			},
		},
	}), map[string][]byte{"1.0/data.bin.gz": payload})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)
	r.NoError(repo.Prepare(t.Context(), artifact))
}

func Test_Resolve_NotFound(t *testing.T) {
	r := require.New(t)
	src := t.TempDir()

	writeRepository(t, src, toyDocument(map[string]any{"version": "1.0"}), nil)
	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(t.TempDir()))
	r.NoError(err)

	t.Run("unknown locator", func(t *testing.T) {
		_, err := repo.Resolve(t.Context(), mrl.New(mrl.CategoryNLP, "ai.test", "unknown"), "", nil)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
	t.Run("unknown version", func(t *testing.T) {
		_, err := repo.Resolve(t.Context(), toyMRL, "9.9", nil)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
	t.Run("unmatched filter", func(t *testing.T) {
		_, err := repo.Resolve(t.Context(), toyMRL, "", map[string]string{"flavor": "large"})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func Test_OpenStream(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	writeRepository(t, src, toyDocument(map[string]any{
		"version": "1.0",
		"files": map[string]any{
			"data.bin": map[string]any{"uri": "1.0/data.bin.gz", "extension": "gzip"},
			"labels":   map[string]any{"uri": "1.0/labels.zip", "name": "labels", "type": "dir", "extension": "zip"},
		},
	}), map[string][]byte{
		"1.0/data.bin.gz": gzipped(t, "plaintext"),
		"1.0/labels.zip":  zipped(t, map[string]string{"train.txt": "labels"}),
	})

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	artifact, err := repo.Resolve(t.Context(), toyMRL, "1.0", nil)
	r.NoError(err)

	// OpenStream prepares lazily, no explicit Prepare call
	item, ok := artifact.File("data.bin")
	r.True(ok)
	stream, err := repo.OpenStream(t.Context(), item, "")
	r.NoError(err)
	t.Cleanup(func() { r.NoError(stream.Close()) })
	data, err := io.ReadAll(stream)
	r.NoError(err)
	r.Equal("plaintext", string(data))

	t.Run("sub path inside dir item", func(t *testing.T) {
		dir, ok := artifact.File("labels")
		r.True(ok)
		stream, err := repo.OpenStream(t.Context(), dir, "train.txt")
		r.NoError(err)
		t.Cleanup(func() { r.NoError(stream.Close()) })
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := repo.OpenStream(t.Context(), item, "no/such/file")
		r.Error(err)
	})
}

func Test_CacheDirectory_Created(t *testing.T) {
	r := require.New(t)
	cache := filepath.Join(t.TempDir(), "nested", "cache")
	repo, err := repository.NewLocal("test", t.TempDir(), repository.WithCacheDir(cache))
	r.NoError(err)

	dir, err := repo.CacheDirectory()
	r.NoError(err)
	r.Equal(cache, dir)
	info, err := os.Stat(dir)
	r.NoError(err)
	r.True(info.IsDir())
}

// Distinct versions of the same resource must land in distinct cache
// directories.
func Test_Prepare_DistinctVersionsDistinctDirs(t *testing.T) {
	r := require.New(t)
	src, cache := t.TempDir(), t.TempDir()

	artifacts := []map[string]any{}
	files := map[string][]byte{}
	for _, v := range []string{"1.0", "1.1"} {
		artifacts = append(artifacts, map[string]any{
			"version": v,
			"files":   map[string]any{"data.bin": map[string]any{"uri": v + "/data.bin", "extension": ""}},
		})
		files[v+"/data.bin"] = []byte("content " + v)
	}
	writeRepository(t, src, toyDocument(artifacts...), files)

	repo, err := repository.NewLocal("test", src, repository.WithCacheDir(cache))
	r.NoError(err)
	for _, v := range []string{"1.0", "1.1"} {
		artifact, err := repo.Resolve(t.Context(), toyMRL, v, nil)
		r.NoError(err)
		r.NoError(repo.Prepare(t.Context(), artifact))
		data, err := os.ReadFile(filepath.Join(cache, filepath.FromSlash(artifact.ResourceURI()), "data.bin"))
		r.NoError(err)
		r.Equal(fmt.Sprintf("content %s", v), string(data))
	}
}

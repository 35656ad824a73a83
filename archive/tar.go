package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ExtractTarGz extracts all regular-file entries of the gzip-compressed tar
// stream read from r into the directory dst. Directory entries are not
// materialized on their own; parent directories are created as file entries
// need them. Entry names containing ".." are rejected.
func ExtractTarGz(dst string, r io.Reader) (err error) {
	gzipped, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("unable to create gzip reader: %w", err)
	}
	defer func() {
		err = errors.Join(err, gzipped.Close())
	}()

	reader := tar.NewReader(gzipped)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("unable to read tar entry: %w", err)
		}
		if strings.Contains(header.Name, "..") {
			return fmt.Errorf("invalid tar entry, contains %q: %s", "..", header.Name)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		target := filepath.Join(dst, filepath.FromSlash(header.Name))
		if err := writeFile(target, reader); err != nil {
			return err
		}
	}
	return nil
}

// Gunzip decompresses the single gzip stream read from r into the file dst.
func Gunzip(dst string, r io.Reader) (err error) {
	gzipped, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("unable to create gzip reader: %w", err)
	}
	defer func() {
		err = errors.Join(err, gzipped.Close())
	}()
	return writeFile(dst, gzipped)
}

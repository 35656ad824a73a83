// Package archive extracts the container formats an item may declare: full
// zip and tar+gzip archives for directory items, and single-stream zip/gzip
// transforms for file items. All functions consume plain readers; zip input
// is spooled to a temporary file first because the format needs random
// access.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when an item declares an extension no
// extraction strategy exists for.
var ErrUnsupportedFormat = fmt.Errorf("unsupported archive format")

// ExtractZip extracts every entry of the zip archive read from r into the
// directory dst. Entry names containing ".." are rejected.
func ExtractZip(dst string, r io.Reader) (err error) {
	zr, cleanup, err := spoolZip(r)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cleanup())
	}()

	for _, entry := range zr.File {
		if err := extractZipEntry(dst, entry); err != nil {
			return err
		}
	}
	return nil
}

// ExtractFirstZipEntry writes the content of the first file entry of the zip
// archive read from r to the file dst. This mirrors the behavior expected of
// file-type items with a zip extension, which wrap exactly one file.
func ExtractFirstZipEntry(dst string, r io.Reader) (err error) {
	zr, cleanup, err := spoolZip(r)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cleanup())
	}()

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		content, err := entry.Open()
		if err != nil {
			return fmt.Errorf("unable to open zip entry %s: %w", entry.Name, err)
		}
		defer func() {
			err = errors.Join(err, content.Close())
		}()
		return writeFile(dst, content)
	}
	return fmt.Errorf("zip archive contains no file entry")
}

func extractZipEntry(dst string, entry *zip.File) (err error) {
	if strings.Contains(entry.Name, "..") {
		return fmt.Errorf("invalid zip entry, contains %q: %s", "..", entry.Name)
	}
	target := filepath.Join(dst, filepath.FromSlash(entry.Name))
	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	content, err := entry.Open()
	if err != nil {
		return fmt.Errorf("unable to open zip entry %s: %w", entry.Name, err)
	}
	defer func() {
		err = errors.Join(err, content.Close())
	}()

	return writeFile(target, content)
}

// spoolZip copies the stream to a temporary file and opens it as a zip
// archive. The returned cleanup closes and removes the temporary file.
func spoolZip(r io.Reader) (*zip.Reader, func() error, error) {
	tmp, err := os.CreateTemp("", "mrl-zip-*")
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create zip spool file: %w", err)
	}
	cleanup := func() error {
		return errors.Join(tmp.Close(), os.Remove(tmp.Name()))
	}

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("unable to spool zip stream: %w", err), cleanup())
	}
	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("unable to read zip archive: %w", err), cleanup())
	}
	return zr, cleanup, nil
}

// CopyFile writes the stream verbatim to the file dst, creating parent
// directories as needed. It is the no-transform counterpart of the extract
// functions.
func CopyFile(dst string, r io.Reader) error {
	return writeFile(dst, r)
}

func writeFile(target string, content io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("unable to create directory: %w", err)
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("unable to open target file %s: %w", target, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	if _, err := io.Copy(file, content); err != nil {
		return fmt.Errorf("unable to write %s: %w", target, err)
	}
	return nil
}

package bundle

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/pkg/logger"
)

// DefaultMaxEntrySize caps the uncompressed size of a single entry.
const DefaultMaxEntrySize int64 = 100 * 1024 * 1024

var gzipMagic = []byte{0x1f, 0x8b}

// Extractor unpacks zip archives, and gzipped tarballs as published on FHIR
// package registries, into a directory.
//
// Existing files at an entry's destination are overwritten, so extracting
// the same archive into the same directory twice leaves identical content.
type Extractor struct {
	maxEntrySize int64
	log          *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxEntrySize sets the per-entry size limit.
func WithMaxEntrySize(n int64) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxEntrySize = n
		}
	}
}

// WithExtractLogger sets the logger.
func WithExtractLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.log = l
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{maxEntrySize: DefaultMaxEntrySize}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logger.Or(e.log, "bundle")
	return e
}

// Extract writes every entry of archivePath under targetDir, in archive
// order, and returns the number of files written. targetDir is created if
// needed. Directory entries become directories and are not counted.
func (e *Extractor) Extract(archivePath, targetDir string) (int, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return 0, &ExtractionError{Archive: archivePath, Err: err}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return 0, &ExtractionError{Archive: archivePath, Err: err}
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, &ExtractionError{Archive: archivePath, Err: err}
	}

	var count int
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		count, err = e.extractTarGz(f, targetDir)
	default:
		// Anything else goes through the zip reader, which reports a
		// malformed archive.
		count, err = e.extractZip(f, targetDir)
	}
	if err != nil {
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			extErr.Archive = archivePath
			return count, extErr
		}
		return count, &ExtractionError{Archive: archivePath, Err: err}
	}

	e.log.Debug("bundle extracted",
		zap.String("archive", archivePath),
		zap.String("dir", targetDir),
		zap.Int("files", count),
	)
	return count, nil
}

func (e *Extractor) extractZip(f *os.File, targetDir string) (int, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range zr.File {
		target, err := e.safeTarget(targetDir, entry.Name)
		if err != nil {
			return count, &ExtractionError{Entry: entry.Name, Err: err}
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, &ExtractionError{Entry: entry.Name, Err: err}
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return count, &ExtractionError{Entry: entry.Name, Err: err}
		}
		err = e.writeFile(target, rc)
		rc.Close()
		if err != nil {
			return count, &ExtractionError{Entry: entry.Name, Err: err}
		}
		count++
	}
	return count, nil
}

func (e *Extractor) extractTarGz(r io.Reader, targetDir string) (int, error) {
	gzr, err := gzip.NewReader(bufio.NewReader(r))
	if err != nil {
		return 0, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	count := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read tar: %w", err)
		}

		target, err := e.safeTarget(targetDir, header.Name)
		if err != nil {
			return count, &ExtractionError{Entry: header.Name, Err: err}
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, &ExtractionError{Entry: header.Name, Err: err}
			}
		case tar.TypeReg:
			if err := e.writeFile(target, tr); err != nil {
				return count, &ExtractionError{Entry: header.Name, Err: err}
			}
			count++
		}
	}
	return count, nil
}

// safeTarget joins name onto dir and rejects results outside dir.
func (e *Extractor) safeTarget(dir, name string) (string, error) {
	clean := filepath.Clean(dir)
	target := filepath.Join(clean, name) //nolint:gosec // G305: checked below
	if target != clean && !strings.HasPrefix(target, clean+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func (e *Extractor) writeFile(target string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	n, err := io.Copy(out, io.LimitReader(src, e.maxEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > e.maxEntrySize {
		err = ErrEntryTooLarge
	}
	if err != nil {
		_ = os.Remove(target)
		return err
	}
	return nil
}

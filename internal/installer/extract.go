package installer

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/filter"
)

// Compression identifies the tarball's outer encoding.
type Compression int

const (
	Gzip Compression = iota
	XZ
)

// CompressionFor picks the decompressor from a tarball name.
func CompressionFor(name string) Compression {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xz") || strings.HasSuffix(lower, ".txz") {
		return XZ
	}
	return Gzip
}

// Extractor writes the allow-listed entries of a tarball stream to disk.
type Extractor struct {
	keep    func(entryPath string) bool
	rewrite func(entryPath string) string
	log     zerolog.Logger
}

// NewExtractor returns an extractor using the filter package's rules.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{
		keep:    filter.ShouldKeep,
		rewrite: filter.Rewrite,
		log:     log,
	}
}

func decompress(r io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, classifyRead(fmt.Errorf("create xz reader: %w", err))
		}
		return xr, nil
	default:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, classifyRead(fmt.Errorf("create gzip reader: %w", err))
		}
		return gr, nil
	}
}

// Extract reads a compressed tarball from r and writes kept entries under
// destDir. It returns the number of files written. Directory entries only
// cause their parent directories to be created; other non-regular entries
// are ignored.
func (e *Extractor) Extract(r io.Reader, destDir string, c Compression) (int, error) {
	dec, err := decompress(r, c)
	if err != nil {
		return 0, err
	}

	root := filepath.Clean(destDir)
	tr := tar.NewReader(dec)
	written := 0

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, classifyRead(fmt.Errorf("read tar header: %w", err))
		}

		if !e.keep(header.Name) {
			continue
		}

		rel := e.rewrite(header.Name)
		target := filepath.Join(root, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, fmt.Errorf("%w: illegal file path: %s", ErrArchive, header.Name)
		}

		// Entries are not guaranteed to arrive parent-first.
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, fmt.Errorf("%w: create parent dir for %s: %w", ErrFilesystem, target, err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		if err := writeEntry(target, tr, header.FileInfo().Mode().Perm()); err != nil {
			return written, err
		}
		written++
		e.log.Debug().Str("file", target).Msg("saved file")
	}

	return written, nil
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("%w: create file %s: %w", ErrFilesystem, target, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return classifyCopy(fmt.Errorf("write file %s: %w", target, err))
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close file %s: %w", ErrFilesystem, target, err)
	}
	return nil
}

// classifyRead tags a read-side failure as a network error when the
// transport failed and as an archive error otherwise.
func classifyRead(err error) error {
	if errors.Is(err, ErrArchive) || errors.Is(err, ErrNetwork) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return fmt.Errorf("%w: %w", ErrArchive, err)
}

// classifyCopy tags an io.Copy failure: write-side failures are filesystem
// errors, read-side failures go through classifyRead.
func classifyCopy(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%w: %w", ErrFilesystem, err)
	}
	return classifyRead(err)
}

package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrUnsupportedFormat is returned when no registered decoder accepts
	// the bytes.
	ErrUnsupportedFormat = errors.New("source: unsupported image format")

	// ErrNotPreloaded is returned when an archive or preloaded source is
	// read without its bytes in the Store.
	ErrNotPreloaded = errors.New("source: content not preloaded")

	// ErrEmptyImage is returned for images with zero width or height.
	ErrEmptyImage = errors.New("source: image has no pixels")
)

// Kind tells where the bytes of a source live.
type Kind uint8

const (
	// KindFilesystem is a regular file read from disk.
	KindFilesystem Kind = iota

	// KindArchive is a path inside an archive. Archive readers live
	// outside this module; their content must be put in a Store.
	KindArchive

	// KindPreloaded is content already held in a Store.
	KindPreloaded
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFilesystem:
		return "filesystem"
	case KindArchive:
		return "archive"
	case KindPreloaded:
		return "preloaded"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Source names one image of a collection.
type Source struct {
	Kind Kind
	Path string
}

// File returns a filesystem source.
func File(path string) Source {
	return Source{Kind: KindFilesystem, Path: path}
}

// Preloaded returns a source whose bytes are looked up in a Store.
func Preloaded(path string) Source {
	return Source{Kind: KindPreloaded, Path: path}
}

// FileName returns the name shown to users: the base name for files, the
// full inner path otherwise.
func (s Source) FileName() string {
	if s.Kind == KindFilesystem {
		return filepath.Base(s.Path)
	}
	return s.Path
}

// String implements fmt.Stringer.
func (s Source) String() string {
	return s.Kind.String() + ":" + s.Path
}

// Reader reads the encoded bytes of sources.
type Reader struct {
	// Store holds archive and preloaded content. It may be nil when only
	// filesystem sources are read.
	Store *Store
}

// ReadBytes returns the encoded bytes of src.
func (r Reader) ReadBytes(src Source) ([]byte, error) {
	switch src.Kind {
	case KindFilesystem:
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.Path, err)
		}
		return data, nil
	case KindArchive, KindPreloaded:
		if r.Store == nil {
			return nil, fmt.Errorf("%w: %s (no store)", ErrNotPreloaded, src.Path)
		}
		return r.Store.Get(src.Path)
	default:
		return nil, fmt.Errorf("source: unknown kind %v for %s", src.Kind, src.Path)
	}
}

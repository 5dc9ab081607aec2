package credentials

import (
	"context"
	"fmt"
	"io"
	"os"
)

// RegistrySource is where the username:hash registry lives.
//
// Stat returns an opaque modification marker; the Store re-reads the registry
// only when the marker changes. Open returns the registry contents.
type RegistrySource interface {
	Stat(ctx context.Context) (string, error)
	Open(ctx context.Context) (io.ReadCloser, error)
	fmt.Stringer
}

// FileSource reads the registry from a local file, typically a mounted
// secret.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Stat(ctx context.Context) (string, error) {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d", fi.ModTime().UnixNano(), fi.Size()), nil
}

func (f *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f *FileSource) String() string {
	return "file://" + f.Path
}

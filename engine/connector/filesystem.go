package connector

import (
	"context"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/iterator"
)

// Filesystem is the reference Connector: it resolves glob selectors
// against the local filesystem and fetches files directly, sniffing
// content type when the caller doesn't already know it.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (f *Filesystem) Name() string { return "filesystem" }

func (f *Filesystem) List(_ context.Context, selector string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(f.root), selector)
	if err != nil {
		return nil, core.NewError(core.ErrConnector, fmt.Sprintf("glob %q", selector), err)
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = "file://" + f.root + "/" + m
	}
	return out, nil
}

func (f *Filesystem) Fetch(_ context.Context, uri string) (Fetched, error) {
	path, err := pathFromFileURI(uri)
	if err != nil {
		return Fetched{}, core.NewError(core.ErrConnector, "resolve file uri", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return Fetched{}, core.NewError(core.ErrConnector, fmt.Sprintf("open %s", path), err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return Fetched{}, core.NewError(core.ErrConnector, fmt.Sprintf("stat %s", path), err)
	}

	head := make([]byte, 512)
	n, _ := file.Read(head)
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return Fetched{}, core.NewError(core.ErrConnector, fmt.Sprintf("seek %s", path), err)
	}
	contentType := iterator.DetectContentType(head[:n])

	return Fetched{
		SourceURI:     uri,
		ContentType:   contentType,
		ContentLength: int(info.Size()),
		Body:          file,
	}, nil
}

func pathFromFileURI(uri string) (string, error) {
	const prefix = "file://"
	if len(uri) < len(prefix) || uri[:len(prefix)] != prefix {
		return "", fmt.Errorf("not a file:// uri: %s", uri)
	}
	return uri[len(prefix):], nil
}

package sink

import (
	"context"

	"github.com/fmf/pipeline/engine/artifact"
)

// FilesystemSink writes through the same atomic artifact Writer used
// for every other on-disk output, so export writes get the same
// write-temp-then-rename guarantee as docs/outputs/run records.
type FilesystemSink struct {
	writer *artifact.Writer
}

func NewFilesystemSink(writer *artifact.Writer) *FilesystemSink {
	return &FilesystemSink{writer: writer}
}

func (s *FilesystemSink) Name() string { return "filesystem" }

func (s *FilesystemSink) Write(_ context.Context, relPath string, data []byte) error {
	return s.writer.WriteFile(relPath, data)
}

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// CompressedExt marks files written as zstd frames.
const CompressedExt = ".zst"

type SnapshotWriter struct {
	encoder *zstd.Encoder
}

func NewSnapshotWriter() (*SnapshotWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &SnapshotWriter{encoder: enc}, nil
}

// Encode compresses raw into a single zstd frame.
func (sw *SnapshotWriter) Encode(raw []byte) []byte {
	return sw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// WriteFile atomically replaces filename with data: the bytes go to a
// temp file in the same directory which is then renamed over the target.
// Data is zstd-encoded when compress is set or filename ends in .zst.
func (sw *SnapshotWriter) WriteFile(filename string, data []byte, compress bool) error {
	if compress || strings.HasSuffix(filename, CompressedExt) {
		data = sw.Encode(data)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to replace %s", filename)
	}
	return nil
}

func (sw *SnapshotWriter) Close() error {
	return sw.encoder.Close()
}

var (
	defaultWriter     *SnapshotWriter
	defaultWriterErr  error
	defaultWriterOnce sync.Once
)

// WriteFile writes filename with a shared writer.
func WriteFile(filename string, data []byte, compress bool) error {
	defaultWriterOnce.Do(func() {
		defaultWriter, defaultWriterErr = NewSnapshotWriter()
	})
	if defaultWriterErr != nil {
		return defaultWriterErr
	}
	return defaultWriter.WriteFile(filename, data, compress)
}

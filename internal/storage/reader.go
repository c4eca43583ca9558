package storage

import (
	"bytes"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// ZstdMagic opens every zstd frame.
var ZstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

var ErrEmptyFile = errors.New("empty document file")

type SnapshotReader struct {
	decoder *zstd.Decoder
}

func NewSnapshotReader() (*SnapshotReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &SnapshotReader{decoder: dec}, nil
}

// Decode returns data unchanged unless it starts with a zstd frame,
// in which case the whole payload is decompressed.
func (sr *SnapshotReader) Decode(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	out, err := sr.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress document")
	}
	return out, nil
}

// ReadFile reads a JSON document, plain or zstd-compressed.
func (sr *SnapshotReader) ReadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filename)
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrEmptyFile, filename)
	}
	return sr.Decode(data)
}

func (sr *SnapshotReader) Close() {
	sr.decoder.Close()
}

// IsCompressed reports whether data begins with the zstd magic number.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, ZstdMagic)
}

var (
	defaultReader     *SnapshotReader
	defaultReaderErr  error
	defaultReaderOnce sync.Once
)

// ReadFile reads filename with a shared reader.
func ReadFile(filename string) ([]byte, error) {
	defaultReaderOnce.Do(func() {
		defaultReader, defaultReaderErr = NewSnapshotReader()
	})
	if defaultReaderErr != nil {
		return nil, defaultReaderErr
	}
	return defaultReader.ReadFile(filename)
}

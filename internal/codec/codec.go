// Package codec provides compression for shared-tier entity payloads.
package codec

import (
	"bytes"
	"io"
)

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)

	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)

	// Name identifies the codec in logs and diagnostics.
	Name() string
}

// Encode compresses data with c.
func Encode(c Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses data with c.
func Decode(c Codec, data []byte) ([]byte, error) {
	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

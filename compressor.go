package cryogonal

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/pkg/errors"
)

// zlibStreamSuffix is the 4-byte marker Discord appends to the end of each
// logical message within a zlib-stream connection (spec.md §4.1).
var zlibStreamSuffix = [4]byte{0x00, 0x00, 0xff, 0xff}

// Compressor inflates gateway binary frames. Read returns a complete
// inflated payload only once a full message has been assembled; otherwise
// it returns nil, indicating more bytes are needed (spec.md §4.1).
//
// Compressor instances are not shareable across connections: each Shard
// owns exactly one (spec.md §5, §9 "Compressor polymorphism").
type Compressor interface {
	Read(chunk []byte) ([]byte, error)
}

// NewCompressor constructs a Compressor by name: "zlib" or "zlib-stream".
// An unknown name returns ErrUnknownCompressor (spec.md §4.1).
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case "", "zlib":
		return &perMessageZlibCompressor{}, nil
	case "zlib-stream":
		return &streamingZlibCompressor{}, nil
	default:
		return nil, ErrUnknownCompressor{Name: name}
	}
}

// perMessageZlibCompressor implements the "zlib" Compressor: each frame is
// an independent zlib stream, fully inflated and yielded as soon as it's
// complete (spec.md §4.1).
type perMessageZlibCompressor struct {
	buf bytes.Buffer
}

func (c *perMessageZlibCompressor) Read(chunk []byte) ([]byte, error) {
	c.buf.Write(chunk)

	reader, err := zlib.NewReader(bytes.NewReader(c.buf.Bytes()))
	if err != nil {
		// not yet a complete zlib stream; wait for more bytes.
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "cryogonal: failed to open zlib reader")
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		// the stream is truncated; keep the buffered bytes and wait for more.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "cryogonal: failed to inflate zlib message")
	}

	// clear the buffer between messages to avoid unbounded growth
	// (SPEC_FULL.md §9, resolving the source's known buffer-management bug).
	c.buf.Reset()

	return out, nil
}

// streamingZlibCompressor implements the "zlib-stream" Compressor: a single
// zlib stream spans the entire connection, with message boundaries marked
// by the 4-byte suffix 00 00 FF FF (spec.md §4.1). The inflater is created
// lazily on first use and reused across all messages of the connection,
// since its internal dictionary state carries across frames.
type streamingZlibCompressor struct {
	wbuf bytes.Buffer  // accumulates compressed bytes since the last boundary
	zr   io.ReadCloser // lazily created, reused for the life of the connection
}

func (c *streamingZlibCompressor) Read(chunk []byte) ([]byte, error) {
	c.wbuf.Write(chunk)

	// the boundary marker is checked against the buffer accumulated so far,
	// not just the latest chunk, so arbitrary network-level chunking of the
	// same byte stream always yields the same message boundaries (spec.md
	// §8 invariant 6).
	buf := c.wbuf.Bytes()
	if len(buf) < 4 || !bytes.Equal(buf[len(buf)-4:], zlibStreamSuffix[:]) {
		return nil, nil
	}

	if c.zr == nil {
		zr, err := zlib.NewReader(&c.wbuf)
		if err != nil {
			return nil, errors.Wrap(err, "cryogonal: failed to start zlib-stream reader")
		}

		c.zr = zr
	}

	var out bytes.Buffer
	if _, err := out.ReadFrom(c.zr); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		// ErrUnexpectedEOF happens because the flate reader looks for a
		// block boundary past the sync-flush marker that Discord never
		// sends; the bytes already decoded up to that point are still
		// valid and are what we want to return.
		return nil, errors.Wrap(err, "cryogonal: failed to inflate zlib-stream message")
	}

	return out.Bytes(), nil
}

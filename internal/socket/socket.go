// Package socket wraps nhooyr.io/websocket with the buffer-reuse pattern
// the teacher repo uses for gateway I/O (switchupcb-disgo's
// wrapper/internal/socket), adapted to hand raw frames back to the caller
// instead of unmarshalling JSON itself — cryogonal's Shard owns frame
// demultiplexing (compressor/decoder dispatch), not this package.
package socket

import (
	"bytes"
	"context"
	"sync"

	"nhooyr.io/websocket"
)

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func get() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer) //nolint:forcetypeassert
}

func put(b *bytes.Buffer) {
	b.Reset()
	bufPool.Put(b)
}

// Read reads one frame from conn, returning its message type and raw bytes.
// Buffers are pooled across calls to avoid per-frame allocations.
func Read(ctx context.Context, conn *websocket.Conn) (websocket.MessageType, []byte, error) {
	messageType, reader, err := conn.Reader(ctx)
	if err != nil {
		return 0, nil, err
	}

	b := get()
	defer put(b)

	if _, err := b.ReadFrom(reader); err != nil {
		return 0, nil, err
	}

	out := make([]byte, b.Len())
	copy(out, b.Bytes())

	return messageType, out, nil
}

// Write writes a single frame of the given message type to conn.
func Write(ctx context.Context, conn *websocket.Conn, messageType websocket.MessageType, payload []byte) error {
	return conn.Write(ctx, messageType, payload)
}

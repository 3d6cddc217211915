// Package wire implements the length-prefixed JSON framing shared by every
// custom protocol substream: a 4-byte big-endian length followed by that
// many bytes of UTF-8 JSON.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// MaxFrameBytes is the largest frame recv will accept. A declared length
// beyond this is a protocol error and the substream is torn down.
const MaxFrameBytes = 16 * 1024 * 1024

// ErrFrameTooLarge is returned by Recv when the peer declares a frame length
// above MaxFrameBytes.
type ErrFrameTooLarge struct {
	Declared uint32
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("declared frame length %d exceeds maximum %d", e.Declared, MaxFrameBytes)
}

// Send writes a length-prefixed frame to w and reports the wall-clock time
// from call entry to flush completion. The duration is diagnostic only; it
// is not part of the wire format.
func Send(w io.Writer, payload []byte) (time.Duration, error) {
	start := time.Now()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return 0, fmt.Errorf("writing frame length: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return 0, fmt.Errorf("writing frame payload: %w", err)
		}
	}
	return time.Since(start), nil
}

// Recv reads one length-prefixed frame from r. A zero-length frame is legal
// and yields an empty, non-nil slice.
func Recv(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	declared := binary.BigEndian.Uint32(lenBuf[:])
	if declared > MaxFrameBytes {
		return nil, &ErrFrameTooLarge{Declared: declared}
	}

	payload := make([]byte, declared)
	if declared > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading frame payload: %w", err)
		}
	}
	return payload, nil
}

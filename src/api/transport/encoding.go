package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	FrameHeaderSize = 4
	MaxFrameSize    = 16 * 1024 * 1024
	MaxPacketSize   = 64 * 1024
)

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// readFrame reads a 4-byte little-endian length prefix followed by the payload.
func readFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return buf, nil
}

// writeFrame writes the length prefix and payload in a single Write.
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	buf := make([]byte, FrameHeaderSize, FrameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

package wire

import (
	"dqlcluster/configs"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// ErrChecksum is returned by ReadMessage when a message's checksum does not
// match its payload (§4.1, §6, §8 scenario 6).
var ErrChecksum = errors.New("checksum verification failed")

// ErrFrameLength is returned when a frame's declared length is outside the
// protocol bound 0 < length <= MaxFrameLength (§4.1, §8).
var ErrFrameLength = errors.New("invalid frame length")

// Encode frames m as u32-big-endian-length || JSON payload.
func Encode(m *Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 || len(payload) > configs.MaxFrameLength {
		return nil, ErrFrameLength
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out, nil
}

// WriteMessage frames and writes m to w.
func WriteMessage(w io.Writer, m *Message) error {
	framed, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(framed)
	return err
}

// ReadMessage reads one framed message from r, parses it, and verifies its
// checksum. It never returns a message with a bad checksum; callers get
// ErrChecksum instead.
func ReadMessage(r io.Reader) (*Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > configs.MaxFrameLength {
		return nil, ErrFrameLength
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if !m.VerifyChecksum() {
		return nil, ErrChecksum
	}
	return &m, nil
}

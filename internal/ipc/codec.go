package ipc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds a single IPC message; well above anything the
// session protocol emits (MediaOut carries encoded frame bytes only when
// the streamer does not hold its own transport, and even then a single
// access unit is bounded by the encoder's packet size).
const maxLineSize = 16 << 20 // 16 MiB

// Writer serialises Envelopes as a 4-byte big-endian length prefix
// followed by the JSON body, onto an underlying io.Writer (typically the
// streamer child process's stdin or, inside the streamer, its own
// stdout).
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteEnvelope marshals env and writes it length-prefixed.
func (w *Writer) WriteEnvelope(env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ipc: marshal envelope: %w", err)
	}
	if len(body) > maxLineSize {
		return fmt.Errorf("ipc: envelope of %d bytes exceeds max line size", len(body))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("ipc: write length prefix: %w", err)
	}
	if _, err := w.w.Write(body); err != nil {
		return fmt.Errorf("ipc: write body: %w", err)
	}
	return nil
}

// Write marshals kind/payload into an Envelope and writes it.
func (w *Writer) Write(kind Kind, payload any) error {
	return w.WriteEnvelope(Envelope{Kind: kind, Payload: payload})
}

// Reader deserialises length-prefixed Envelopes from an underlying
// io.Reader. It is restartable: no state survives past a single
// successful or failed ReadEnvelope call beyond the buffered reader's
// own position in the stream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadEnvelope blocks until a full length-prefixed message is available,
// returning io.EOF when the underlying stream closes cleanly between
// messages (a close mid-message surfaces as io.ErrUnexpectedEOF).
func (r *Reader) ReadEnvelope() (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Envelope{}, err
		}
		return Envelope{}, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxLineSize {
		return Envelope{}, fmt.Errorf("ipc: envelope of %d bytes exceeds max line size", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return Envelope{}, fmt.Errorf("ipc: short body read: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("ipc: unmarshal envelope: %w", err)
	}
	return env, nil
}

// DecodePayload re-marshals env.Payload (decoded generically by
// encoding/json into map[string]any) into dst, the concrete struct the
// caller expects for env.Kind.
func DecodePayload(env Envelope, dst any) error {
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("ipc: re-marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("ipc: decode payload for kind %q: %w", env.Kind, err)
	}
	return nil
}

// Package wire implements the byte-level protocol spoken on the command and
// control sockets.
//
// A command connection carries one tag byte. TagKill stands alone; TagStart
// is followed by the start payload:
//
//	focus secs    u64
//	rest secs     u64
//	iterations    u8
//	launched at   u64 (epoch seconds)
//	popup         u8 (0/1)
//	sound         u8 (0/1)
//	4 x length    u64 (focus banner, rest banner, focus audio, rest audio)
//	strings       the four strings back to back
//
// Integers are big-endian. The four lengths must account for every
// remaining byte of the connection.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/leonletto/comodoro/internal/session"
)

// ErrFraming marks a malformed or truncated payload.
var ErrFraming = errors.New("framing error")

// Tag is the first byte of every command connection.
type Tag byte

const (
	TagStart Tag = 0
	TagKill  Tag = 4
)

// Control bytes accepted on the control socket.
const (
	BytePause  byte = 1
	ByteResume byte = 2
	ByteStop   byte = 3
)

// MaxMessageSize bounds how much a single command connection may carry.
const MaxMessageSize = 64 << 10

// headerSize is every fixed-width field after the tag.
const headerSize = 8 + 8 + 1 + 8 + 1 + 1 + 4*8

// Request is a decoded command connection.
type Request struct {
	Tag        Tag
	Config     session.Config // set for TagStart
	LaunchedAt time.Time      // set for TagStart
}

// EncodeStart serializes a start request for cfg issued at launchedAt.
func EncodeStart(cfg session.Config, launchedAt time.Time) ([]byte, error) {
	if cfg.Focus < 0 || cfg.Rest < 0 {
		return nil, fmt.Errorf("%w: durations must not be negative", session.ErrConfig)
	}
	if launchedAt.Unix() < 0 {
		return nil, fmt.Errorf("%w: launch time before epoch", session.ErrConfig)
	}

	strs := [4]string{cfg.FocusBanner, cfg.RestBanner, cfg.FocusAudio, cfg.RestAudio}

	var buf bytes.Buffer
	buf.Grow(1 + headerSize + len(strs[0]) + len(strs[1]) + len(strs[2]) + len(strs[3]))
	buf.WriteByte(byte(TagStart))
	writeU64(&buf, uint64(cfg.Focus/time.Second))
	writeU64(&buf, uint64(cfg.Rest/time.Second))
	buf.WriteByte(cfg.Iterations)
	writeU64(&buf, uint64(launchedAt.Unix()))
	buf.WriteByte(boolByte(cfg.Popup))
	buf.WriteByte(boolByte(cfg.Sound))
	for _, s := range strs {
		writeU64(&buf, uint64(len(s)))
	}
	for _, s := range strs {
		buf.WriteString(s)
	}
	if buf.Len() > MaxMessageSize {
		return nil, fmt.Errorf("%w: start payload is %d bytes, limit %d", ErrFraming, buf.Len(), MaxMessageSize)
	}
	return buf.Bytes(), nil
}

// EncodeKill returns the single-byte kill command.
func EncodeKill() []byte {
	return []byte{byte(TagKill)}
}

// ReadRequest reads one command connection to EOF and decodes it.
func ReadRequest(r io.Reader) (Request, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxMessageSize+1))
	if err != nil {
		return Request{}, fmt.Errorf("read request: %w", err)
	}
	if len(data) > MaxMessageSize {
		return Request{}, fmt.Errorf("%w: request exceeds %d bytes", ErrFraming, MaxMessageSize)
	}
	return DecodeRequest(data)
}

// DecodeRequest decodes a complete command connection.
func DecodeRequest(data []byte) (Request, error) {
	c := &cursor{buf: data}

	tag, err := c.u8("tag")
	if err != nil {
		return Request{}, err
	}
	switch Tag(tag) {
	case TagKill:
		return Request{Tag: TagKill}, nil
	case TagStart:
	default:
		return Request{}, fmt.Errorf("%w: unknown tag %d", ErrFraming, tag)
	}

	req := Request{Tag: TagStart}
	cfg := &req.Config

	if cfg.Focus, err = c.seconds("focus"); err != nil {
		return Request{}, err
	}
	if cfg.Rest, err = c.seconds("rest"); err != nil {
		return Request{}, err
	}
	if cfg.Iterations, err = c.u8("iterations"); err != nil {
		return Request{}, err
	}
	launched, err := c.u64("launched at")
	if err != nil {
		return Request{}, err
	}
	if launched > math.MaxInt64 {
		return Request{}, fmt.Errorf("%w: launch time %d out of range", ErrFraming, launched)
	}
	req.LaunchedAt = time.Unix(int64(launched), 0)
	if cfg.Popup, err = c.flag("popup"); err != nil {
		return Request{}, err
	}
	if cfg.Sound, err = c.flag("sound"); err != nil {
		return Request{}, err
	}

	names := [4]string{"focus banner", "rest banner", "focus audio", "rest audio"}
	var lengths [4]uint64
	var total uint64
	for i, name := range names {
		if lengths[i], err = c.u64(name + " length"); err != nil {
			return Request{}, err
		}
		if lengths[i] > uint64(c.remaining()) {
			return Request{}, fmt.Errorf("%w: %s length %d exceeds %d trailing bytes",
				ErrFraming, name, lengths[i], c.remaining())
		}
		total += lengths[i]
	}
	if total != uint64(c.remaining()) {
		return Request{}, fmt.Errorf("%w: string lengths sum to %d, trailing run is %d bytes",
			ErrFraming, total, c.remaining())
	}

	var strs [4]string
	for i, name := range names {
		b, err := c.take(int(lengths[i]), name)
		if err != nil {
			return Request{}, err
		}
		strs[i] = string(b)
	}
	cfg.FocusBanner, cfg.RestBanner, cfg.FocusAudio, cfg.RestAudio = strs[0], strs[1], strs[2], strs[3]

	return req, nil
}

// EncodeSignal returns the control byte for sig.
func EncodeSignal(sig session.Signal) (byte, error) {
	switch sig {
	case session.SignalPause:
		return BytePause, nil
	case session.SignalResume:
		return ByteResume, nil
	case session.SignalStop:
		return ByteStop, nil
	default:
		return 0, fmt.Errorf("no control byte for signal %d", int(sig))
	}
}

// ParseSignal maps a control byte to its signal. Unknown bytes report false.
func ParseSignal(b byte) (session.Signal, bool) {
	switch b {
	case BytePause:
		return session.SignalPause, true
	case ByteResume:
		return session.SignalResume, true
	case ByteStop:
		return session.SignalStop, true
	default:
		return 0, false
	}
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

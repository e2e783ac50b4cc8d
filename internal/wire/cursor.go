package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// cursor walks a byte slice, failing with ErrFraming on any short read.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) take(n int, field string) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, fmt.Errorf("%w: %s: need %d bytes, have %d", ErrFraming, field, n, c.remaining())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) u8(field string) (uint8, error) {
	b, err := c.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u64(field string) (uint64, error) {
	b, err := c.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// flag accepts only 0 and 1.
func (c *cursor) flag(field string) (bool, error) {
	v, err := c.u8(field)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s flag is %d", ErrFraming, field, v)
	}
}

func (c *cursor) seconds(field string) (time.Duration, error) {
	v, err := c.u64(field)
	if err != nil {
		return 0, err
	}
	if v > uint64(math.MaxInt64/int64(time.Second)) {
		return 0, fmt.Errorf("%w: %s of %d seconds out of range", ErrFraming, field, v)
	}
	return time.Duration(v) * time.Second, nil
}

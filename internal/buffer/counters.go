package buffer

import (
	"encoding/binary"
	"fmt"

	"github.com/jittakal/audiomemlog/internal/errors"
)

// Counters is a fixed-length array of uint64 tallies indexed by a small
// state enumeration. Values wrap on overflow.
//
// Counters is not safe for concurrent use.
type Counters struct {
	values []uint64
}

// NewCounters creates a zero-filled array of the given length.
func NewCounters(length int) *Counters {
	if length < 0 {
		length = 0
	}
	return &Counters{values: make([]uint64, length)}
}

func (c *Counters) check(index int) error {
	if index < 0 || index >= len(c.values) {
		return fmt.Errorf("%w: index %d, length %d", errors.ErrOutOfRange, index, len(c.values))
	}
	return nil
}

// Increment adds one to the counter at index.
func (c *Counters) Increment(index int) error {
	if err := c.check(index); err != nil {
		return err
	}
	c.values[index]++
	return nil
}

// Get returns the counter at index.
func (c *Counters) Get(index int) (uint64, error) {
	if err := c.check(index); err != nil {
		return 0, err
	}
	return c.values[index], nil
}

// Set overwrites the counter at index.
func (c *Counters) Set(index int, value uint64) error {
	if err := c.check(index); err != nil {
		return err
	}
	c.values[index] = value
	return nil
}

// Clear resets every counter to zero.
func (c *Counters) Clear() {
	clear(c.values)
}

// Len returns the number of counters.
func (c *Counters) Len() int { return len(c.values) }

// Snapshot returns a copy of the counters in index order.
func (c *Counters) Snapshot() []uint64 {
	out := make([]uint64, len(c.values))
	copy(out, c.values)
	return out
}

// AppendBinary appends the counters as little-endian uint64 values in index
// order.
func (c *Counters) AppendBinary(b []byte) ([]byte, error) {
	for _, v := range c.values {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	return b, nil
}

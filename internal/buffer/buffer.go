// Package buffer implements the fixed-capacity record ring and the counter
// arrays that back each recorder type.
package buffer

import (
	"fmt"

	"github.com/jittakal/audiomemlog/internal/errors"
)

// Ring is a fixed-capacity FIFO of fixed-size records stored in one
// contiguous arena. When full, Enqueue overwrites the oldest record.
//
// Ring is not safe for concurrent use; the recorder serializes all access
// under its guard.
type Ring struct {
	arena      []byte
	recordSize int
	capacity   int
	front      int // oldest live slot
	rear       int // most recently written slot, -1 before the first write
	count      int
	overwrites uint64
}

// NewRing preallocates floor(capacityBytes/recordSize) zeroed slots.
// maxArenaBytes caps the arena size; zero means no cap.
func NewRing(recordSize int, capacityBytes, maxArenaBytes int64) (*Ring, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("%w: record size %d", errors.ErrRecordSize, recordSize)
	}
	if capacityBytes < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d bytes", errors.ErrAllocationFailure, capacityBytes)
	}

	slots := capacityBytes / int64(recordSize)
	if slots == 0 {
		return nil, fmt.Errorf("%w: %d bytes cannot hold one %d byte record",
			errors.ErrAllocationFailure, capacityBytes, recordSize)
	}

	arenaBytes := slots * int64(recordSize)
	if maxArenaBytes > 0 && arenaBytes > maxArenaBytes {
		return nil, fmt.Errorf("%w: arena of %d bytes exceeds limit of %d bytes",
			errors.ErrAllocationFailure, arenaBytes, maxArenaBytes)
	}

	return &Ring{
		arena:      make([]byte, arenaBytes),
		recordSize: recordSize,
		capacity:   int(slots),
		front:      0,
		rear:       -1,
		count:      0,
	}, nil
}

func (r *Ring) slot(i int) []byte {
	off := i * r.recordSize
	return r.arena[off : off+r.recordSize]
}

// Enqueue copies payload into the next slot. It reports whether the oldest
// record was overwritten to make room.
func (r *Ring) Enqueue(payload []byte) (bool, error) {
	if len(payload) != r.recordSize {
		return false, fmt.Errorf("%w: got %d bytes, want %d", errors.ErrRecordSize, len(payload), r.recordSize)
	}

	evicted := false
	if r.count == r.capacity {
		r.front = (r.front + 1) % r.capacity
		r.count--
		r.overwrites++
		evicted = true
	}

	r.rear = (r.rear + 1) % r.capacity
	copy(r.slot(r.rear), payload)
	r.count++

	return evicted, nil
}

// Dequeue copies the oldest record into dst and zeroes its slot.
func (r *Ring) Dequeue(dst []byte) error {
	if r.count == 0 {
		return errors.ErrEmpty
	}
	if len(dst) < r.recordSize {
		return fmt.Errorf("%w: destination holds %d bytes, want %d", errors.ErrRecordSize, len(dst), r.recordSize)
	}

	s := r.slot(r.front)
	copy(dst, s)
	clear(s)

	r.front = (r.front + 1) % r.capacity
	r.count--
	return nil
}

// Drain dequeues records oldest-first, handing each to fn, until the ring is
// empty or fn fails. A record whose fn call failed has already been removed.
// The slice passed to fn is reused between calls.
func (r *Ring) Drain(fn func(rec []byte) error) (int, error) {
	scratch := make([]byte, r.recordSize)
	n := 0
	for r.count > 0 {
		if err := r.Dequeue(scratch); err != nil {
			return n, err
		}
		n++
		if err := fn(scratch); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Snapshot returns copies of the live records, oldest first, without
// consuming them.
func (r *Ring) Snapshot() [][]byte {
	out := make([][]byte, 0, r.count)
	for i := 0; i < r.count; i++ {
		rec := make([]byte, r.recordSize)
		copy(rec, r.slot((r.front+i)%r.capacity))
		out = append(out, rec)
	}
	return out
}

// Len returns the number of live records.
func (r *Ring) Len() int { return r.count }

// Cap returns the number of slots.
func (r *Ring) Cap() int { return r.capacity }

// IsEmpty returns true if the ring holds no records.
func (r *Ring) IsEmpty() bool { return r.count == 0 }

// RecordSize returns the slot width in bytes.
func (r *Ring) RecordSize() int { return r.recordSize }

// Overwrites returns how many records were evicted by Enqueue on a full ring.
func (r *Ring) Overwrites() uint64 { return r.overwrites }

// Release drops the arena. The ring must not be used afterwards.
func (r *Ring) Release() {
	r.arena = nil
	r.capacity = 0
	r.count = 0
	r.front = 0
	r.rear = -1
}

// Package buffer provides the in-memory storage behind each recorder type.
//
// # Ring
//
// Ring is a fixed-capacity FIFO of fixed-size records. All slots live in one
// contiguous arena allocated up front:
//
//	ring, err := buffer.NewRing(record.GraphSize, 64*1024, 0)
//	if err != nil {
//	    // errors.ErrAllocationFailure if the budget cannot hold one record
//	}
//
// Enqueue never fails because the ring is full. Instead the oldest record is
// overwritten:
//
//	evicted, err := ring.Enqueue(payload)
//
// Dequeue copies the oldest record out and zeroes its slot. Drain repeats
// Dequeue until the ring is empty, handing every record to a callback:
//
//	n, err := ring.Drain(func(rec []byte) error {
//	    _, err := f.Write(rec)
//	    return err
//	})
//
// A callback error stops the drain. The record passed to the failing call has
// already left the ring.
//
// # Counters
//
// Counters is a fixed-length array of uint64 tallies indexed by a state
// enumeration. Increment wraps on overflow. AppendBinary serializes the array
// as little-endian uint64 values in index order.
//
// # Thread Safety
//
// Neither type locks. The recorder holds one global guard around every call.
package buffer

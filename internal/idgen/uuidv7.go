// Package idgen generates monotonic sortable identifiers and manages the
// stable per-installation device identifier used by the sync engine.
package idgen

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// monotonic guards same-millisecond UUIDv7 generation so that two ids
// minted within one clock tick remain strictly increasing, per RFC 9562
// §6.2 method 2 ("monotonic random"). google/uuid only exposes random
// bits, so the counter lives here.
var monotonic struct {
	mu       sync.Mutex
	lastMS   int64
	counter  uint16
	seededOK bool
}

const counterMask = 0x0FFF // 12 bits of sub-millisecond sequence

// NewUUIDv7 returns a new time-ordered UUID: the top 48 bits are the
// current Unix milliseconds, the next 4 bits are the version (7), the
// next 12 bits are a monotonic counter that increments within the same
// millisecond, the variant occupies 2 bits, and the remaining 62 bits
// are cryptographically random.
func NewUUIDv7() (uuid.UUID, error) {
	var u uuid.UUID

	nowMS := time.Now().UnixMilli()

	monotonic.mu.Lock()
	if nowMS <= monotonic.lastMS {
		// Same tick, or still inside a millisecond borrowed earlier.
		nowMS = monotonic.lastMS
		monotonic.counter = (monotonic.counter + 1) & counterMask
		if monotonic.counter == 0 {
			// Counter wrapped within the same millisecond; borrow the
			// next millisecond to preserve strict ordering.
			nowMS++
		}
	} else {
		monotonic.lastMS = nowMS
		monotonic.counter = 0
	}
	seq := monotonic.counter
	monotonic.lastMS = nowMS
	monotonic.mu.Unlock()

	u[0] = byte(nowMS >> 40)
	u[1] = byte(nowMS >> 32)
	u[2] = byte(nowMS >> 24)
	u[3] = byte(nowMS >> 16)
	u[4] = byte(nowMS >> 8)
	u[5] = byte(nowMS)

	u[6] = 0x70 | byte(seq>>8) // version 7 in top nibble, 4 high bits of seq
	u[7] = byte(seq)

	rnd := make([]byte, 8)
	if _, err := rand.Read(rnd); err != nil {
		return uuid.UUID{}, fmt.Errorf("idgen: read random bits: %w", err)
	}
	copy(u[8:], rnd)
	u[8] = (u[8] & 0x3F) | 0x80 // RFC 9562 variant

	return u, nil
}

// MustUUIDv7 panics on entropy failure. Reserved for call sites where a
// missing crypto/rand source is already a fatal startup condition (e.g.
// command construction), never for request-path code.
func MustUUIDv7() uuid.UUID {
	u, err := NewUUIDv7()
	if err != nil {
		panic(err)
	}
	return u
}

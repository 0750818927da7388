/*
   nvcell - power-fail-safe EEPROM emulator over NOR flash sectors
   Copyright (c) 2024, nvcell contributors

   This file is part of nvcell.

   nvcell is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   nvcell is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with nvcell. If not, see <http://www.gnu.org/licenses/>.
*/

package flash

import "fmt"

// Erased is the value every flash byte holds after a sector erase.
const Erased = 0xFF

// Span describes one hardware erase sector: its base offset and size in
// the RAM store's address space. A real flash chip bakes sector geometry
// into the hardware; the RAM store needs it told explicitly so
// EraseSector knows how far to reach.
type Span struct {
	Base uint32
	Size uint32
}

// RAM is an in-memory Store used for development and for exercising the
// emulator's crash-recovery paths in tests. It models the NOR AND-write
// rule and offers a "discard writes after N" hook for crash injection, per
// the on-device test strategy called for by this emulator's design.
type RAM struct {
	buf   []byte
	spans []Span
	//
	calls      int
	discardAt  int
	discarding bool
}

// NewRAM creates a RAM-backed store covering the given sector spans,
// initialised to the erased state. Spans may overlap disjoint regions of
// a shared address space; they must not overlap each other.
func NewRAM(spans ...Span) *RAM {

	var end uint32
	for _, s := range spans {
		if e := s.Base + s.Size; e > end {
			end = e
		}
	}

	r := &RAM{buf: make([]byte, end), spans: spans}
	for i := range r.buf {
		r.buf[i] = Erased
	}
	return r
}

// DiscardAfter lets the next n Program or EraseSector calls complete
// normally and makes every call after them a no-op that reports failure:
// Program returns a marginal-write failure, EraseSector leaves the sector's
// bits as they were. n = 0 fails every call. Pass a negative n to disable
// injection.
func (r *RAM) DiscardAfter(n int) {
	r.discardAt = n
	r.discarding = n >= 0
	r.calls = 0
}

func (r *RAM) tick() bool {
	r.calls++
	return r.discarding && r.calls > r.discardAt
}

func (r *RAM) spanFor(base uint32) (Span, error) {
	for _, s := range r.spans {
		if s.Base == base {
			return s, nil
		}
	}
	return Span{}, fmt.Errorf("no registered sector at offset %#x", base)
}

func (r *RAM) Read(offset uint32, dst []byte) {
	copy(dst, r.buf[offset:int(offset)+len(dst)])
}

func (r *RAM) DataAt(offset uint32, n int) []byte {
	return r.buf[offset : int(offset)+n]
}

// Program applies the NOR AND rule and reports a marginal write when the
// discard-injection hook is active.
func (r *RAM) Program(offset uint32, src []byte) int {
	if r.tick() {
		return -1
	}
	for i, b := range src {
		r.buf[int(offset)+i] &= b
	}
	return 0
}

// EraseSector sets every byte of the registered sector starting at base to
// 0xFF. base must match a span passed to NewRAM.
func (r *RAM) EraseSector(base uint32) int {

	span, err := r.spanFor(base)
	if err != nil {
		return -1
	}

	if r.tick() {
		return -1
	}

	for i := uint32(0); i < span.Size; i++ {
		r.buf[span.Base+i] = Erased
	}
	return 0
}

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

package record

import (
	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/sector"
)

// Cursor is one (offset, record) pair yielded by an iterator.
type Cursor struct {
	Offset uint32
	Rec    Record
}

// Forward walks a sector's record log from its first slot, stopping at
// the first EMPTY record or the sector's end.
type Forward struct {
	store  flash.Store
	offset uint32
	end    uint32
	done   bool
}

// NewForward creates a forward iterator over the sector described by d.
func NewForward(store flash.Store, d sector.Descriptor) *Forward {
	return &Forward{
		store:  store,
		offset: d.Base + sector.HeaderSize,
		end:    d.Base + d.Size,
	}
}

// Next returns the next record in append order, or ok=false once an EMPTY
// slot or the sector end has been reached.
func (f *Forward) Next() (Cursor, bool) {

	if f.done || f.offset+Size > f.end {
		return Cursor{}, false
	}

	rec := Decode(f.store.DataAt(f.offset, Size))
	cur := Cursor{Offset: f.offset, Rec: rec}

	if rec.Status == Empty {
		f.done = true
		return Cursor{}, false
	}

	f.offset += Size
	return cur, true
}

// LastInvalidOffset scans forward and returns the offset of the last
// INVALID record in the sector, and whether one was found at all.
func LastInvalidOffset(store flash.Store, d sector.Descriptor) (uint32, bool) {

	var last uint32
	found := false

	it := NewForward(store, d)
	for {
		cur, ok := it.Next()
		if !ok {
			break
		}
		if cur.Rec.Status == Invalid {
			last = cur.Offset
			found = true
		}
	}
	return last, found
}

// HasInvalid reports whether the sector contains any INVALID record.
func HasInvalid(store flash.Store, d sector.Descriptor) bool {
	_, found := LastInvalidOffset(store, d)
	return found
}

// BackwardInvalid first locates the last INVALID record in the sector via
// a forward scan, then walks backward from there, yielding records that
// are still INVALID and stopping at the first that is not.
type BackwardInvalid struct {
	store  flash.Store
	offset uint32
	start  uint32
	live   bool
}

// NewBackwardInvalid creates a backward iterator over the trailing run of
// INVALID records in the sector described by d.
func NewBackwardInvalid(store flash.Store, d sector.Descriptor) *BackwardInvalid {

	b := &BackwardInvalid{store: store, start: d.Base + sector.HeaderSize}

	if last, found := LastInvalidOffset(store, d); found {
		b.offset = last
		b.live = true
	}
	return b
}

// Next returns the next record walking backward through the trailing run
// of INVALID records, or ok=false once a non-INVALID record or the start
// of the sector is reached.
func (b *BackwardInvalid) Next() (Cursor, bool) {

	if !b.live || b.offset < b.start {
		return Cursor{}, false
	}

	rec := Decode(b.store.DataAt(b.offset, Size))
	if rec.Status != Invalid {
		b.live = false
		return Cursor{}, false
	}

	cur := Cursor{Offset: b.offset, Rec: rec}

	if b.offset == b.start {
		b.live = false
	} else {
		b.offset -= Size
	}
	return cur, true
}

// ValidIter walks a sector's VALID records in append order, stopping as soon
// as the first INVALID record is encountered. Records after a torn
// invalid record are hidden until the next compaction republishes them.
type ValidIter struct {
	fwd     *Forward
	stopped bool
}

// NewValid creates a valid-record iterator over the sector described by d.
func NewValid(store flash.Store, d sector.Descriptor) *ValidIter {
	return &ValidIter{fwd: NewForward(store, d)}
}

// Next returns the next VALID record preceding the first INVALID one.
func (v *ValidIter) Next() (Cursor, bool) {

	if v.stopped {
		return Cursor{}, false
	}

	for {
		cur, ok := v.fwd.Next()
		if !ok {
			v.stopped = true
			return Cursor{}, false
		}
		if cur.Rec.Status == Invalid {
			v.stopped = true
			return Cursor{}, false
		}
		if cur.Rec.Status == Valid {
			return cur, true
		}
	}
}

// SortedValid repeatedly sweeps the valid-record view to yield VALID
// records in ascending id order, latest write per id winning. This is
// O(n^2) in the number of live records, which the compactor - the only
// caller - can afford.
type SortedValid struct {
	store  flash.Store
	d      sector.Descriptor
	prevID int32
	done   bool
}

// NewSortedValid creates a sorted-by-id iterator over the sector's live
// records.
func NewSortedValid(store flash.Store, d sector.Descriptor) *SortedValid {
	return &SortedValid{store: store, d: d, prevID: -1}
}

// Next returns the next record in ascending id order, or ok=false once
// every id has been yielded.
func (s *SortedValid) Next() (Cursor, bool) {

	if s.done {
		return Cursor{}, false
	}

	var best Cursor
	haveBest := false

	it := NewValid(s.store, s.d)
	for {
		cur, ok := it.Next()
		if !ok {
			break
		}
		if int32(cur.Rec.ID) <= s.prevID {
			continue
		}
		if !haveBest || cur.Rec.ID <= best.Rec.ID {
			best = cur
			haveBest = true
		}
	}

	if !haveBest {
		s.done = true
		return Cursor{}, false
	}

	s.prevID = int32(best.Rec.ID)
	return best, true
}

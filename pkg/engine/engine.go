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

// Package engine materialises byte ranges from the active sector's record
// log and performs atomic range writes via an invalid-then-valid commit,
// falling back to sector compaction when the active sector can't absorb a
// write cleanly.
package engine

import (
	log "github.com/sirupsen/logrus"

	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/record"
	"github.com/oqtaflash/nvcell/pkg/sector"
)

// Engine implements the byte-range read/write protocol over a sector
// state machine.
type Engine struct {
	store flash.Store
	sm    *sector.Machine
}

// New creates an Engine over the given store and sector state machine.
// The state machine must already have resolved an active sector.
func New(store flash.Store, sm *sector.Machine) *Engine {
	return &Engine{store: store, sm: sm}
}

// Capacity returns the number of distinct logical ids the smaller of the
// two sectors can hold.
func (e *Engine) Capacity() int {

	d1 := e.sm.Descriptor(sector.Sector1)
	d2 := e.sm.Descriptor(sector.Sector2)

	size := d1.Size
	if d2.Size < size {
		size = d2.Size
	}
	return record.SlotCapacity(size)
}

// Get fills dst with the latest value of each id in [startID, startID+len(dst)),
// 0xFF for any id that has never been written.
func (e *Engine) Get(startID uint16, dst []byte) {

	for i := range dst {
		dst[i] = flash.Erased
	}

	d := e.sm.Descriptor(e.sm.Active())

	it := record.NewValid(e.store, d)
	for {
		cur, ok := it.Next()
		if !ok {
			return
		}
		if idx := int(cur.Rec.ID) - int(startID); idx >= 0 && idx < len(dst) {
			dst[idx] = cur.Rec.Data
		}
	}
}

// Put atomically writes src to [startID, startID+len(src)): after Put
// returns, every byte in that range reads its new value, or every byte
// still reads its pre-Put value, even across a reset at any point during
// the write. Silently drops the write if it would end at or past
// capacity.
func (e *Engine) Put(startID uint16, src []byte) {

	n := uint16(len(src))
	if uint32(startID)+uint32(n) >= uint32(e.Capacity()) {
		log.WithFields(log.Fields{"id": startID, "len": n}).
			Debug("put out of range, dropping")
		return
	}

	existing := make([]byte, n)
	e.Get(startID, existing)

	d := e.sm.Descriptor(e.sm.Active())
	// appends use no more slots than the smaller of the two sectors holds
	if limit := uint32(sector.HeaderSize + e.Capacity()*record.Size); d.Size > limit {
		d.Size = limit
	}
	success := !record.HasInvalid(e.store, d)

	for i := uint16(0); success && i < n; i++ {
		if src[i] == existing[i] {
			continue
		}
		success = record.Append(e.store, d, record.Record{
			ID: startID + i, Status: record.Invalid, Data: src[i],
		})
	}

	if success {
		it := record.NewBackwardInvalid(e.store, d)
		for {
			cur, ok := it.Next()
			if !ok {
				break
			}
			if !record.CommitStatus(e.store, cur.Offset, record.Valid) {
				success = false
			}
		}
	}

	if !success {
		log.Debug("range write failed, triggering compaction")
		e.compact(startID, src)
	}
}

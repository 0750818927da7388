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

package engine

import (
	log "github.com/sirupsen/logrus"

	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/record"
)

// compact moves the latest value of every id to the alternate sector,
// then appends the pending (startID, src) payload there before promoting
// it to active. Runs up to two attempts: the second re-erases the
// destination even if it verified erased, to guard against a marginal
// erase that reads 0xFF but programs unreliably.
func (e *Engine) compact(startID uint16, src []byte) bool {

	n := uint16(len(src))
	rangeEnd := uint32(startID) + uint32(n)

	for attempt := 0; attempt < 2; attempt++ {

		source := e.sm.Active()
		dest := e.sm.Alternate()
		sd := e.sm.Descriptor(source)
		dd := e.sm.Descriptor(dest)

		if !e.sm.VerifyErased(dest) || attempt > 0 {
			if rc := e.store.EraseSector(dd.Base); rc < 0 {
				log.Warnf("compaction attempt %d: erase failed, retrying", attempt)
				continue
			}
		}

		if err := e.sm.MarkCopy(dest); err != nil {
			log.Warnf("compaction attempt %d: %v, retrying", attempt, err)
			continue
		}

		ok := true

		it := record.NewSortedValid(e.store, sd)
		for ok {
			cur, has := it.Next()
			if !has {
				break
			}
			id := uint32(cur.Rec.ID)
			if id >= uint32(startID) && id < rangeEnd {
				continue // superseded by the pending write
			}
			if cur.Rec.Data == flash.Erased {
				continue // reads as 0xFF by default, no need to store it
			}
			ok = record.Append(e.store, dd, record.Record{
				ID: cur.Rec.ID, Status: record.Valid, Data: cur.Rec.Data,
			})
		}

		for i := uint16(0); ok && i < n; i++ {
			if src[i] == flash.Erased {
				continue
			}
			ok = record.Append(e.store, dd, record.Record{
				ID: startID + i, Status: record.Valid, Data: src[i],
			})
		}

		if ok {
			if err := e.sm.Promote(dest, source); err != nil {
				log.Warnf("compaction attempt %d: %v, retrying", attempt, err)
				ok = false
			}
		}

		if ok {
			return true
		}
	}

	log.Error("compaction failed after two attempts, write not applied")
	return false
}

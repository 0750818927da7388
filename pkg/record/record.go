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

// Package record implements the fixed-size, append-only record log that
// lives inside the active flash sector.
package record

import (
	"encoding/binary"

	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/sector"
)

// Size is the width in bytes of one record: a 16-bit id, an 8-bit status
// and an 8-bit data byte.
const Size = 4

// EmptyID marks a record slot that has never been written.
const EmptyID = 0xFFFF

// Status values are a monotone bit-clearing sequence, same as sector
// status: EMPTY -> INVALID -> VALID, no path back without an erase.
type Status byte

const (
	// Empty is erased flash: the slot has never been written.
	Empty Status = 0xFF
	// Invalid marks a record written but not yet committed.
	Invalid Status = 0x0F
	// Valid marks a committed record; its Data is authoritative for its ID.
	Valid Status = 0x00
)

// Record is one 4-byte append-only unit carrying (id, status, data).
type Record struct {
	ID     uint16
	Status Status
	Data   byte
}

// Encode serialises r into its 4-byte on-media layout.
func Encode(r Record) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:2], r.ID)
	buf[2] = byte(r.Status)
	buf[3] = r.Data
	return buf
}

// Decode parses a 4-byte on-media record.
func Decode(buf []byte) Record {
	return Record{
		ID:     binary.LittleEndian.Uint16(buf[0:2]),
		Status: Status(buf[2]),
		Data:   buf[3],
	}
}

// SlotCapacity returns the number of record slots a sector of the given
// size can hold, after its header.
func SlotCapacity(sectorSize uint32) int {
	if sectorSize < sector.HeaderSize {
		return 0
	}
	return int(sectorSize-sector.HeaderSize) / Size
}

// FindEmptyOffset scans forward from the first record slot and returns the
// offset of the first EMPTY record, or the sector's end offset if the
// sector is full.
func FindEmptyOffset(store flash.Store, d sector.Descriptor) uint32 {

	end := d.Base + d.Size
	offset := d.Base + sector.HeaderSize

	for offset+Size <= end {
		buf := store.DataAt(offset, Size)
		if Status(buf[2]) == Empty {
			return offset
		}
		offset += Size
	}
	return end
}

// Append writes a new record into the first empty slot of the sector.
// Returns false if there is no room, or the program failed verification.
func Append(store flash.Store, d sector.Descriptor, r Record) bool {

	offset := FindEmptyOffset(store, d)
	if d.Base+d.Size-offset < Size {
		return false
	}

	return store.Program(offset, Encode(r)) >= 0
}

// CommitStatus programs a record's status byte in place, moving it from
// one point in the EMPTY -> INVALID -> VALID sequence to the next with a
// single monotone bit-clearing write.
func CommitStatus(store flash.Store, offset uint32, status Status) bool {
	statusOffset := offset + 2
	return store.Program(statusOffset, []byte{byte(status)}) >= 0
}

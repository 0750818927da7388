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

// Package sector owns the four-state lifecycle of the two flash sectors
// backing the emulator, and resolves which one is active after a reset.
package sector

import (
	"encoding/binary"

	"github.com/oqtaflash/nvcell/pkg/flash"
)

// HeaderSize is the width in bytes of a sector header: a single 16-bit
// status field, with the first record starting immediately after it.
const HeaderSize = 2

// Status values are a monotone bit-clearing sequence: each transition
// only clears bits, so it can be programmed with a single flash write and
// never needs an erase to move forward.
type Status uint16

const (
	// Erased marks a blank sector.
	Erased Status = 0xFFFF
	// Copy marks a compaction destination, mid-copy.
	Copy Status = 0x0FFF
	// Active marks the sole live sector.
	Active Status = 0x00FF
	// Inactive marks an old live sector awaiting erase.
	Inactive Status = 0x000F
)

func (s Status) String() string {
	switch s {
	case Erased:
		return "ERASED"
	case Copy:
		return "COPY"
	case Active:
		return "ACTIVE"
	case Inactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// ReadStatus reads the status field of the sector header at base.
func ReadStatus(store flash.Store, base uint32) Status {
	buf := make([]byte, HeaderSize)
	store.Read(base, buf)
	return Status(binary.LittleEndian.Uint16(buf[0:2]))
}

// WriteStatus programs the status field of the sector header at base.
// Returns >= 0 on success, < 0 on a marginal write.
func WriteStatus(store flash.Store, base uint32, status Status) int {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(status))
	return store.Program(base, buf)
}

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

// Package flash models the raw NOR flash primitives the emulator core
// builds on: byte-granular read, AND-programming, and whole-sector erase.
package flash

// Store is the capability the emulator core needs from the underlying
// flash device. Implementations are not required to be safe for concurrent
// use; the emulator owns one exclusively.
type Store interface {

	// Read copies len(dst) bytes starting at offset into dst. Always
	// succeeds for offsets within the store's range.
	Read(offset uint32, dst []byte)

	// DataAt returns a zero-copy view of n bytes starting at offset.
	// Backing stores that cannot support zero-copy access may return a
	// fresh copy.
	DataAt(offset uint32, n int) []byte

	// Program writes src at offset under the NOR constraint: the resulting
	// byte is (current byte) AND (src byte). Returns >= 0 on verified
	// success, < 0 on a marginal write (program failure or verify
	// mismatch).
	Program(offset uint32, src []byte) int

	// EraseSector sets every byte of the sector containing base to 0xFF.
	// Returns 0 on success. Blocks for the duration of the erase.
	EraseSector(base uint32) int
}

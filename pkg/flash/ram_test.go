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

import "testing"

func TestRAMStartsErased(t *testing.T) {
	r := NewRAM(Span{Base: 0, Size: 16})
	buf := make([]byte, 16)
	r.Read(0, buf)
	for i, b := range buf {
		if b != Erased {
			t.Fatalf("byte %d: want 0xFF, got %#x", i, b)
		}
	}
}

func TestRAMProgramIsANDOnly(t *testing.T) {
	r := NewRAM(Span{Base: 0, Size: 16})

	if rc := r.Program(0, []byte{0x0F}); rc < 0 {
		t.Fatalf("program failed: rc=%d", rc)
	}
	buf := make([]byte, 1)
	r.Read(0, buf)
	if buf[0] != 0x0F {
		t.Fatalf("want 0x0F, got %#x", buf[0])
	}

	// programming 0xF0 over 0x0F cannot set the high bits back to 1 and
	// clears the low four; the AND rule leaves the byte at 0x00.
	if rc := r.Program(0, []byte{0xF0}); rc < 0 {
		t.Fatalf("program failed: rc=%d", rc)
	}
	r.Read(0, buf)
	if buf[0] != 0x00 {
		t.Fatalf("want 0x00 after AND, got %#x", buf[0])
	}
}

func TestRAMEraseSectorRestoresErased(t *testing.T) {
	r := NewRAM(Span{Base: 0, Size: 8}, Span{Base: 8, Size: 8})

	r.Program(0, []byte{0x00, 0x00})
	r.Program(8, []byte{0x00, 0x00})

	if rc := r.EraseSector(0); rc != 0 {
		t.Fatalf("erase failed: rc=%d", rc)
	}

	buf := make([]byte, 16)
	r.Read(0, buf)
	for i := 0; i < 8; i++ {
		if buf[i] != Erased {
			t.Fatalf("byte %d in erased sector: want 0xFF, got %#x", i, buf[i])
		}
	}
	if buf[8] != 0x00 {
		t.Fatalf("byte 8 in untouched sector should be unaffected, got %#x", buf[8])
	}
}

func TestRAMDiscardAfterFailsSubsequentCalls(t *testing.T) {
	r := NewRAM(Span{Base: 0, Size: 16})
	r.DiscardAfter(1)

	if rc := r.Program(0, []byte{0x00}); rc < 0 {
		t.Fatalf("first program should succeed, got rc=%d", rc)
	}
	if rc := r.Program(4, []byte{0x00}); rc >= 0 {
		t.Fatalf("second program should be discarded, got rc=%d", rc)
	}
}

func TestRAMEraseUnknownBaseFails(t *testing.T) {
	r := NewRAM(Span{Base: 0, Size: 16})
	if rc := r.EraseSector(4); rc >= 0 {
		t.Fatalf("erase at unregistered base should fail, got rc=%d", rc)
	}
}

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

package sector

import (
	"testing"

	"github.com/oqtaflash/nvcell/pkg/flash"
)

func newMachine(t *testing.T) (*flash.RAM, Descriptor, Descriptor, *Machine) {
	t.Helper()
	d1 := Descriptor{Base: 0, Size: 64}
	d2 := Descriptor{Base: 64, Size: 64}
	r := flash.NewRAM(flash.Span{Base: d1.Base, Size: d1.Size}, flash.Span{Base: d2.Base, Size: d2.Size})
	return r, d1, d2, New(r, d1, d2)
}

func TestResolveActiveOnBlankMedia(t *testing.T) {
	_, _, _, m := newMachine(t)
	active, alternate := m.ResolveActive()
	if active != None || alternate != None {
		t.Fatalf("blank media should resolve to None, got active=%v alternate=%v", active, alternate)
	}
}

func TestResolveActiveSingleActive(t *testing.T) {
	r, d1, _, m := newMachine(t)
	WriteStatus(r, d1.Base, Active)

	active, alternate := m.ResolveActive()
	if active != Sector1 || alternate != Sector2 {
		t.Fatalf("want (Sector1, Sector2), got (%v, %v)", active, alternate)
	}
}

func TestResolveActiveTieBreaksToSector1(t *testing.T) {
	r, d1, d2, m := newMachine(t)
	WriteStatus(r, d1.Base, Active)
	WriteStatus(r, d2.Base, Active)

	active, _ := m.ResolveActive()
	if active != Sector1 {
		t.Fatalf("tie-break should favor sector1, got %v", active)
	}
}

func TestResolveActivePromotesCompletedCopy(t *testing.T) {
	r, d1, d2, m := newMachine(t)
	WriteStatus(r, d1.Base, Inactive)
	WriteStatus(r, d2.Base, Copy)

	active, alternate := m.ResolveActive()
	if active != Sector2 || alternate != Sector1 {
		t.Fatalf("want (Sector2, Sector1), got (%v, %v)", active, alternate)
	}
	if got := ReadStatus(r, d2.Base); got != Active {
		t.Fatalf("promoted sector should now read ACTIVE, got %v", got)
	}
}

func TestClearSetsSector1ActiveSector2Erased(t *testing.T) {
	r, d1, d2, m := newMachine(t)
	if err := m.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got := ReadStatus(r, d1.Base); got != Active {
		t.Fatalf("sector1 status: want ACTIVE, got %v", got)
	}
	if got := ReadStatus(r, d2.Base); got != Erased {
		t.Fatalf("sector2 status: want ERASED, got %v", got)
	}
	if m.Active() != Sector1 {
		t.Fatalf("active sector: want Sector1, got %v", m.Active())
	}
}

func TestPendingEraseAfterPromotion(t *testing.T) {
	r, d1, _, m := newMachine(t)
	WriteStatus(r, d1.Base, Active)
	m.ResolveActive()

	if p := m.PendingErase(); p != None {
		t.Fatalf("fresh active sector should have no pending erase, got %v", p)
	}

	// simulate a compaction: sector2 becomes active, sector1 becomes the
	// inactive source awaiting erase.
	if err := m.Promote(Sector2, Sector1); err != nil {
		t.Fatalf("promote failed: %v", err)
	}

	if m.Active() != Sector2 {
		t.Fatalf("active sector: want Sector2, got %v", m.Active())
	}
	if p := m.PendingErase(); p != Sector1 {
		t.Fatalf("pending erase: want Sector1, got %v", p)
	}

	if err := m.PerformPendingErase(); err != nil {
		t.Fatalf("perform pending erase failed: %v", err)
	}
	if p := m.PendingErase(); p != None {
		t.Fatalf("pending erase should be cleared after performing it, got %v", p)
	}
}

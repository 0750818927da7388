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

package nvcell

import (
	"testing"

	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/record"
	"github.com/oqtaflash/nvcell/pkg/sector"
)

// the two sector spans used throughout scenario testing below.
const (
	sector1Base = 0xC000
	sector1Size = 0x4000
	sector2Base = 0x10000
	sector2Size = 0x1000
)

func newTestEmulator(t *testing.T) (*flash.RAM, *Emulator) {
	t.Helper()
	r := flash.NewRAM(
		flash.Span{Base: sector1Base, Size: sector1Size},
		flash.Span{Base: sector2Base, Size: sector2Size},
	)
	e := New(r, sector.Descriptor{Base: sector1Base, Size: sector1Size},
		sector.Descriptor{Base: sector2Base, Size: sector2Size})
	if err := e.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return r, e
}

// Scenario 1: fresh init, single put.
func TestScenarioFreshInitSinglePut(t *testing.T) {
	r, e := newTestEmulator(t)

	e.PutByte(10, 0xCC)

	if got := sector.ReadStatus(r, sector1Base); got != sector.Active {
		t.Fatalf("sector1 status: want ACTIVE, got %v", got)
	}
	if got := sector.ReadStatus(r, sector2Base); got != sector.Erased {
		t.Fatalf("sector2 status: want ERASED, got %v", got)
	}

	rec := record.Decode(r.DataAt(sector1Base+sector.HeaderSize, record.Size))
	want := record.Record{ID: 10, Status: record.Valid, Data: 0xCC}
	if rec != want {
		t.Fatalf("first record: want %+v, got %+v", want, rec)
	}
}

// Scenario 2: multi-byte put alongside an existing single byte.
func TestScenarioMultiBytePut(t *testing.T) {
	_, e := newTestEmulator(t)

	e.PutByte(10, 0xCC)
	e.Put(0, []byte{1, 2, 3})

	got := make([]byte, 3)
	e.Get(0, got)
	want := []byte{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("get(0..3): want %v, got %v", want, got)
		}
	}
	if b := e.GetByte(10); b != 0xCC {
		t.Fatalf("get(10): want 0xCC, got %#x", b)
	}
}

// Scenario 3: crash during phase A - only the first invalid record made it.
func TestScenarioCrashDuringPhaseA(t *testing.T) {
	r, e := newTestEmulator(t)

	r.DiscardAfter(1)
	e.Put(0, []byte{1, 2, 3})

	// simulate the reboot: fresh emulator handle over the same media.
	e2 := New(r, sector.Descriptor{Base: sector1Base, Size: sector1Size},
		sector.Descriptor{Base: sector2Base, Size: sector2Size})
	if err := e2.Init(); err != nil {
		t.Fatalf("recovery init failed: %v", err)
	}

	got := make([]byte, 3)
	e2.Get(0, got)
	want := []byte{0xFF, 0xFF, 0xFF}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("get(0..3) after crash: want %v, got %v", want, got)
		}
	}
}

// Scenario 4: crash during phase B - first status flip landed, rest did not.
func TestScenarioCrashDuringPhaseB(t *testing.T) {
	r, e := newTestEmulator(t)

	r.DiscardAfter(4)
	e.Put(0, []byte{1, 2, 3})

	e2 := New(r, sector.Descriptor{Base: sector1Base, Size: sector1Size},
		sector.Descriptor{Base: sector2Base, Size: sector2Size})
	if err := e2.Init(); err != nil {
		t.Fatalf("recovery init failed: %v", err)
	}

	got := make([]byte, 3)
	e2.Get(0, got)
	want := []byte{0xFF, 0xFF, 0xFF}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("get(0..3) after crash: want %v, got %v", want, got)
		}
	}
}

// Scenario 5: filling sector1 triggers compaction onto sector2.
func TestScenarioFullSectorTriggersCompaction(t *testing.T) {
	_, e := newTestEmulator(t)

	capacity := (sector2Size - sector.HeaderSize) / record.Size // smallest sector governs capacity
	for i := 0; i < capacity; i++ {
		e.PutByte(0, byte(i))
	}

	e.PutByte(0, 0xAB)

	if e.Status().Active != sector.Sector2 {
		t.Fatalf("active sector after compaction: want Sector2, got %v", e.Status().Active)
	}
	if b := e.GetByte(0); b != 0xAB {
		t.Fatalf("get(0) after compaction: want 0xAB, got %#x", b)
	}
}

// Scenario 6: both sectors read ACTIVE after a crash; tie-break to sector1.
func TestScenarioBothSectorsActiveAfterCrash(t *testing.T) {
	r, e := newTestEmulator(t)

	e.PutByte(0, 0x11)

	sector.WriteStatus(r, sector2Base, sector.Active)

	e2 := New(r, sector.Descriptor{Base: sector1Base, Size: sector1Size},
		sector.Descriptor{Base: sector2Base, Size: sector2Size})
	if err := e2.Init(); err != nil {
		t.Fatalf("recovery init failed: %v", err)
	}

	if e2.Status().Active != sector.Sector1 {
		t.Fatalf("tie-break should favor sector1, got %v", e2.Status().Active)
	}
	if b := e2.GetByte(0); b != 0x11 {
		t.Fatalf("get(0): want 0x11, got %#x", b)
	}
}

func TestReadAfterWrite(t *testing.T) {
	_, e := newTestEmulator(t)
	e.PutByte(42, 0x77)
	if b := e.GetByte(42); b != 0x77 {
		t.Fatalf("want 0x77, got %#x", b)
	}
}

func TestErasedDefault(t *testing.T) {
	_, e := newTestEmulator(t)
	if b := e.GetByte(999); b != 0xFF {
		t.Fatalf("unwritten id should read 0xFF, got %#x", b)
	}
}

func TestIdempotentInit(t *testing.T) {
	r, e := newTestEmulator(t)
	e.PutByte(1, 1)

	before := make([]byte, sector1Size)
	r.Read(sector1Base, before)

	if err := e.Init(); err != nil {
		t.Fatalf("second init failed: %v", err)
	}

	after := make([]byte, sector1Size)
	r.Read(sector1Base, after)

	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("byte %d changed across repeated init: %#x -> %#x", i, before[i], after[i])
		}
	}
}

func TestOutOfRangePutIsDropped(t *testing.T) {
	_, e := newTestEmulator(t)
	capacity := e.Capacity()

	// ends exactly at capacity: out of range, so dropped rather than accepted.
	e.Put(uint16(capacity-2), []byte{1, 2})

	got := make([]byte, 2)
	e.Get(uint16(capacity-2), got)
	if got[0] != 0xFF || got[1] != 0xFF {
		t.Fatalf("out-of-range put should have been dropped, got %v", got)
	}
}

func TestCompactionPreservesValues(t *testing.T) {
	_, e := newTestEmulator(t)

	e.PutByte(1, 0x01)
	e.PutByte(2, 0x02)

	before1 := e.GetByte(1)
	before2 := e.GetByte(2)

	capacity := (sector2Size - sector.HeaderSize) / record.Size
	for i := 0; i < capacity; i++ {
		e.PutByte(3, byte(i)) // eventually forces a compaction
	}

	if got := e.GetByte(1); got != before1 {
		t.Fatalf("id 1 changed across compaction: %#x -> %#x", before1, got)
	}
	if got := e.GetByte(2); got != before2 {
		t.Fatalf("id 2 changed across compaction: %#x -> %#x", before2, got)
	}
}

func TestClearRemovesAllData(t *testing.T) {
	r, e := newTestEmulator(t)
	e.PutByte(5, 0x55)

	if err := e.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	if b := e.GetByte(5); b != 0xFF {
		t.Fatalf("data should be gone after clear, got %#x", b)
	}
	if got := sector.ReadStatus(r, sector1Base); got != sector.Active {
		t.Fatalf("sector1 status after clear: want ACTIVE, got %v", got)
	}
	if got := sector.ReadStatus(r, sector2Base); got != sector.Erased {
		t.Fatalf("sector2 status after clear: want ERASED, got %v", got)
	}
}

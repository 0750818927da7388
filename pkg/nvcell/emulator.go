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

// Package nvcell exposes the public, power-fail-safe byte store built on
// top of two NOR-flash erase sectors: a small handle applications use to
// read and write bytes without worrying about flash's erase-before-write
// constraint or about what happens when power is cut mid-write.
package nvcell

import (
	log "github.com/sirupsen/logrus"

	"github.com/oqtaflash/nvcell/pkg/engine"
	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/sector"
)

// Emulator is a byte-addressable store backed by two flash sectors. It
// holds no durable state of its own; everything authoritative lives on
// the flash it was constructed with.
type Emulator struct {
	store flash.Store
	sm    *sector.Machine
	eng   *engine.Engine
}

// New creates an Emulator over the given store and the two sector spans.
// Call Init before using it.
func New(store flash.Store, sector1, sector2 sector.Descriptor) *Emulator {
	sm := sector.New(store, sector1, sector2)
	return &Emulator{
		store: store,
		sm:    sm,
		eng:   engine.New(store, sm),
	}
}

// Init resolves the active sector from on-media state. If no sector can
// be recognised as active - blank media, or a status combination that
// can't happen under this state machine's transitions - it reinitialises
// via Clear. Safe to call repeatedly.
func (e *Emulator) Init() error {

	active, alternate := e.sm.ResolveActive()
	log.WithFields(log.Fields{"active": active, "alternate": alternate}).
		Debug("resolved sector state")

	if active == sector.None {
		log.Info("no active sector found, reinitialising")
		if err := e.sm.Clear(); err != nil {
			return err
		}
	}
	return nil
}

// Get writes the latest value of id into data, 0xFF if id was never
// programmed.
func (e *Emulator) Get(id uint16, data []byte) {
	e.eng.Get(id, data)
}

// GetByte reads a single byte.
func (e *Emulator) GetByte(id uint16) byte {
	var b [1]byte
	e.eng.Get(id, b[:])
	return b[0]
}

// Put atomically writes data to [id, id+len(data)). See Engine.Put for the
// consistency guarantee.
func (e *Emulator) Put(id uint16, data []byte) {
	e.eng.Put(id, data)
}

// PutByte writes a single byte, atomically.
func (e *Emulator) PutByte(id uint16, b byte) {
	e.eng.Put(id, []byte{b})
}

// Clear erases all data. Post-condition: sector1 is ACTIVE, sector2 is
// ERASED, no records survive.
func (e *Emulator) Clear() error {
	return e.sm.Clear()
}

// Capacity returns the number of distinct logical ids the store can hold.
func (e *Emulator) Capacity() int {
	return e.eng.Capacity()
}

// HasPendingErase reports whether the alternate sector needs erasing.
// Erasing a sector stalls the flash bus for hundreds of milliseconds;
// applications that care about that latency can call this during idle
// time and erase then, via PerformPendingErase.
func (e *Emulator) HasPendingErase() bool {
	return e.sm.PendingErase() != sector.None
}

// PerformPendingErase erases the alternate sector if one is pending.
func (e *Emulator) PerformPendingErase() error {
	return e.sm.PerformPendingErase()
}

// Status reports the on-media status of both sectors, for diagnostics.
type Status struct {
	Sector1      sector.Status
	Sector2      sector.Status
	Active       sector.Sector
	PendingErase bool
	Capacity     int
}

// Status snapshots the current sector states.
func (e *Emulator) Status() Status {
	return Status{
		Sector1:      e.sm.Status(sector.Sector1),
		Sector2:      e.sm.Status(sector.Sector2),
		Active:       e.sm.Active(),
		PendingErase: e.HasPendingErase(),
		Capacity:     e.Capacity(),
	}
}

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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/oqtaflash/nvcell/pkg/flash"
)

// Sector identifies one of the two flash regions backing the emulator, or
// the absence of a valid one.
type Sector int

const (
	None Sector = iota
	Sector1
	Sector2
)

func (s Sector) String() string {
	switch s {
	case Sector1:
		return "sector1"
	case Sector2:
		return "sector2"
	default:
		return "none"
	}
}

// Descriptor locates one sector in the flash address space.
type Descriptor struct {
	Base uint32
	Size uint32
}

// Machine owns the four-state lifecycle of the two sectors and resolves
// which one is active after a reset, from on-media bits alone.
type Machine struct {
	store flash.Store
	//
	d1, d2 Descriptor
	//
	active, alternate Sector
}

// New creates a state machine over the two given sector spans. Call
// ResolveActive before using Active/Alternate.
func New(store flash.Store, d1, d2 Descriptor) *Machine {
	return &Machine{store: store, d1: d1, d2: d2}
}

// Descriptor returns the base/size span for the given sector.
func (m *Machine) Descriptor(s Sector) Descriptor {
	switch s {
	case Sector1:
		return m.d1
	case Sector2:
		return m.d2
	default:
		return Descriptor{}
	}
}

// Active returns the sector currently serving reads and writes.
func (m *Machine) Active() Sector {
	return m.active
}

// Alternate returns the non-active sector.
func (m *Machine) Alternate() Sector {
	return m.alternate
}

// Status reads the current header status of the given sector.
func (m *Machine) Status(s Sector) Status {
	d := m.Descriptor(s)
	return ReadStatus(m.store, d.Base)
}

// ResolveActive maps the pair of on-media sector statuses to (active,
// alternate), promoting a completed-but-unconfirmed compaction
// destination along the way. Returns None, None if the media is blank or
// in an unrecognised combination; the caller must then run Clear.
func (m *Machine) ResolveActive() (Sector, Sector) {

	s1 := m.Status(Sector1)
	s2 := m.Status(Sector2)

	switch {

	case s1 == Active && s2 != Active:
		m.active, m.alternate = Sector1, Sector2

	case s2 == Active && s1 != Active:
		m.active, m.alternate = Sector2, Sector1

	case s1 == Active && s2 == Active:
		// tie-break: first sector wins
		m.active, m.alternate = Sector1, Sector2

	case s1 == Copy && s2 == Inactive:
		log.Info("promoting sector1: completed copy found on reset")
		WriteStatus(m.store, m.d1.Base, Active)
		m.active, m.alternate = Sector1, Sector2

	case s2 == Copy && s1 == Inactive:
		log.Info("promoting sector2: completed copy found on reset")
		WriteStatus(m.store, m.d2.Base, Active)
		m.active, m.alternate = Sector2, Sector1

	default:
		m.active, m.alternate = None, None
	}

	return m.active, m.alternate
}

// Clear erases both sectors and marks sector1 active. Post-condition:
// sector1.status = ACTIVE, sector2.status = ERASED, no records survive.
func (m *Machine) Clear() error {

	if rc := m.store.EraseSector(m.d1.Base); rc < 0 {
		return fmt.Errorf("error erasing sector1: rc=%d", rc)
	}
	if rc := m.store.EraseSector(m.d2.Base); rc < 0 {
		return fmt.Errorf("error erasing sector2: rc=%d", rc)
	}
	if rc := WriteStatus(m.store, m.d1.Base, Active); rc < 0 {
		return fmt.Errorf("error activating sector1: rc=%d", rc)
	}

	m.ResolveActive()
	return nil
}

// PendingErase returns the alternate sector iff its status is not ERASED,
// letting the caller schedule the long erase during idle time.
func (m *Machine) PendingErase() Sector {
	if m.alternate == None {
		return None
	}
	if m.Status(m.alternate) != Erased {
		return m.alternate
	}
	return None
}

// PerformPendingErase erases the alternate sector if PendingErase reports
// one is due.
func (m *Machine) PerformPendingErase() error {
	if p := m.PendingErase(); p != None {
		d := m.Descriptor(p)
		if rc := m.store.EraseSector(d.Base); rc < 0 {
			return fmt.Errorf("error erasing %s: rc=%d", p, rc)
		}
	}
	return nil
}

// Promote marks the destination sector ACTIVE and the source sector
// INACTIVE, then re-resolves. Used by the compactor after it has finished
// copying records to the destination.
func (m *Machine) Promote(destination, source Sector) error {

	dd := m.Descriptor(destination)
	if rc := WriteStatus(m.store, dd.Base, Active); rc < 0 {
		return fmt.Errorf("error activating %s: rc=%d", destination, rc)
	}

	sd := m.Descriptor(source)
	if rc := WriteStatus(m.store, sd.Base, Inactive); rc < 0 {
		return fmt.Errorf("error deactivating %s: rc=%d", source, rc)
	}

	m.ResolveActive()
	return nil
}

// MarkCopy marks the destination sector as the target of an in-progress
// compaction.
func (m *Machine) MarkCopy(destination Sector) error {
	d := m.Descriptor(destination)
	if rc := WriteStatus(m.store, d.Base, Copy); rc < 0 {
		return fmt.Errorf("error marking %s as copy target: rc=%d", destination, rc)
	}
	return nil
}

// VerifyErased scans the given sector and confirms every byte reads as
// erased. Protects against marginal erases surviving a crash.
func (m *Machine) VerifyErased(s Sector) bool {
	d := m.Descriptor(s)
	buf := m.store.DataAt(d.Base, int(d.Size))
	for _, b := range buf {
		if b != flash.Erased {
			return false
		}
	}
	return true
}

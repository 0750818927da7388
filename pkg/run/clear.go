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

package run

import "fmt"

// NewClear creates the clear command: wipes all stored data.
func NewClear() *Clear {

	c := &Clear{}
	c.Runner = *NewRunner("clear", "erase all data in the emulator",
		"\nUse the clear command to erase all data managed by a running daemon.",
		"", runnerHelpEpilogue, c.Run)
	c.AddBaseSettings()
	return c
}

// Clear is the "clear" subcommand.
type Clear struct {
	Runner
}

// Run issues the clear request.
func (c *Clear) Run() error {
	c.ParseSettings()
	resp, err := c.apiCall("POST", "/clear", nil)
	if err != nil {
		return err
	}
	defer resp.Close()
	fmt.Println("cleared")
	return nil
}

// NewPendingErase creates the pending-erase command: performs a deferred
// sector erase if one is outstanding.
func NewPendingErase() *PendingErase {

	p := &PendingErase{}
	p.Runner = *NewRunner("pending-erase",
		"perform a deferred sector erase, if one is pending",
		"\nUse this command to erase the alternate sector during idle time, "+
			"rather than paying the erase latency inline with the write that triggered compaction.",
		"", runnerHelpEpilogue, p.Run)
	p.AddBaseSettings()
	return p
}

// PendingErase is the "pending-erase" subcommand.
type PendingErase struct {
	Runner
}

// Run issues the pending-erase request.
func (p *PendingErase) Run() error {
	p.ParseSettings()
	resp, err := p.apiCall("POST", "/pending-erase", nil)
	if err != nil {
		return err
	}
	defer resp.Close()
	fmt.Println("pending erase handled")
	return nil
}

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

import (
	"encoding/json"
	"fmt"
)

// NewStatus creates the status command: reports sector state and capacity.
func NewStatus() *StatusCmd {

	s := &StatusCmd{}
	s.Runner = *NewRunner("status", "show emulator status",
		"\nUse the status command to see both sectors' states, the active sector, and capacity.",
		"", runnerHelpEpilogue, s.Run)
	s.AddBaseSettings()
	return s
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct {
	Runner
}

type statusReply struct {
	Sector1      string `json:"sector1"`
	Sector2      string `json:"sector2"`
	Active       string `json:"active"`
	PendingErase bool   `json:"pendingErase"`
	Capacity     int    `json:"capacity"`
}

// Run fetches and prints the daemon's status.
func (s *StatusCmd) Run() error {

	s.ParseSettings()

	resp, err := s.apiCall("GET", "/status", nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	var st statusReply
	if err := json.NewDecoder(resp).Decode(&st); err != nil {
		return err
	}

	fmt.Printf("\nsector 1:      %s\n", st.Sector1)
	fmt.Printf("sector 2:      %s\n", st.Sector2)
	fmt.Printf("active:        %s\n", st.Active)
	fmt.Printf("pending erase: %v\n", st.PendingErase)
	fmt.Printf("capacity:      %d\n\n", st.Capacity)
	return nil
}

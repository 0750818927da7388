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
	"fmt"
	"io"
	"os"
)

// NewGet creates the get command: reads a byte range from a running daemon.
func NewGet() *Get {

	g := &Get{}
	g.Runner = *NewRunner(
		"get -i|--id {id} [-l|--length {length}]",
		"read bytes from the emulator",
		"\nUse the get command to read one or more bytes starting at id from a running daemon.",
		"", runnerHelpEpilogue, g.Run)

	g.AddBaseSettings()
	g.AddSetting(&g.ID, "id", "i", "", nil, "starting id", true)
	g.AddSetting(&g.Length, "length", "l", "", 1, "number of bytes to read", false)

	return g
}

// Get is the "get" subcommand.
type Get struct {
	Runner
	ID     int
	Length int
}

// Run fetches the requested range and writes it as raw bytes to stdout.
func (g *Get) Run() error {

	g.ParseSettings()

	path := fmt.Sprintf("/range/%d/%d", g.ID, g.Length)
	if g.Length == 1 {
		path = fmt.Sprintf("/cell/%d", g.ID)
	}

	resp, err := g.apiCall("GET", path, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	_, err = io.Copy(os.Stdout, resp)
	return err
}

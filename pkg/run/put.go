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
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// NewPut creates the put command: writes a byte range to a running daemon.
func NewPut() *Put {

	p := &Put{}
	p.Runner = *NewRunner(
		"put -i|--id {id} -v|--value {byte[,byte...]}",
		"write bytes to the emulator",
		`
Use the put command to atomically write one or more bytes starting at id.
Pass --value as a comma-separated list of decimal byte values, e.g. -v 1,2,3.`,
		"", runnerHelpEpilogue, p.Run)

	p.AddBaseSettings()
	p.AddSetting(&p.ID, "id", "i", "", nil, "starting id", true)
	p.AddSetting(&p.Value, "value", "v", "", nil, "comma-separated byte values to write", true)

	return p
}

// Put is the "put" subcommand.
type Put struct {
	Runner
	ID    int
	Value string
}

// Run parses --value and PUTs it to the daemon in one atomic range write.
func (p *Put) Run() error {

	p.ParseSettings()

	parts := strings.Split(p.Value, ",")
	data := make([]byte, len(parts))
	for i, s := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 0 || n > 0xFF {
			return fmt.Errorf("invalid byte value: %q", s)
		}
		data[i] = byte(n)
	}

	path := fmt.Sprintf("/range/%d", p.ID)
	if len(data) == 1 {
		path = fmt.Sprintf("/cell/%d", p.ID)
	}

	resp, err := p.apiCall("PUT", path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return resp.Close()
}

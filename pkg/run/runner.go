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
	"net/http"
)

const runnerHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.
`

// NewRunner creates a base runner for commands that talk to a running
// nveectl daemon over its HTTP control API.
func NewRunner(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Runner {
	return &Runner{
		Command: *NewCommand(use, short, long, helpPrologue, helpEpilogue, exec),
	}
}

// Runner is the base for every subcommand that reaches a live daemon
// rather than driving the emulator in-process.
type Runner struct {
	Command
	Port int
}

// AddBaseSettings registers the settings shared by every daemon-client
// command. Cobra/Viper require this to be called from the top-level
// command type rather than from NewRunner itself.
func (r *Runner) AddBaseSettings() {
	r.AddSetting(&r.Port, "port", "p", "NVEECTL_PORT", 8080,
		"port of the nveectl daemon's API server", false)
}

func (r *Runner) apiCall(method, path string, body io.Reader) (io.ReadCloser, error) {

	client := &http.Client{}
	req, err := http.NewRequest(method,
		fmt.Sprintf("http://127.0.0.1:%d%s", r.Port, path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, msg)
	}
	return resp.Body, nil
}

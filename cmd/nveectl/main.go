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

package main

import (
	"fmt"
	"os"

	"github.com/oqtaflash/nvcell/pkg/run"
)

var NvcellVersion string

func synopsis() {
	fmt.Print(`
synopsis: nveectl {serve|get|put|clear|pending-erase|status|version} ...

run 'nveectl {action} -h|--help' to see detailed info

`)
}

func version() {
	fmt.Printf("\nnvcell %s\n\n", NvcellVersion)
}

func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "get":
		run.DieOnError(run.NewGet().Execute(args))

	case "put":
		run.DieOnError(run.NewPut().Execute(args))

	case "clear":
		run.DieOnError(run.NewClear().Execute(args))

	case "pending-erase":
		run.DieOnError(run.NewPendingErase().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}

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

// Package daemon runs a single Emulator behind an HTTP control API,
// serializing every request onto one owning goroutine.
package daemon

import (
	"github.com/oqtaflash/nvcell/pkg/nvcell"
)

// job is one unit of work handed to the emulator's owning goroutine. fn
// runs with exclusive access to the emulator; done is closed once it has.
type job struct {
	fn   func(*nvcell.Emulator)
	done chan struct{}
}

// worker owns the only reference the rest of the process is allowed to
// call methods on directly. The emulator itself is not safe for concurrent
// use; this is what makes that safe under an HTTP server that hands each
// request its own goroutine.
type worker struct {
	emu  *nvcell.Emulator
	jobs chan job
	quit chan struct{}
}

func newWorker(emu *nvcell.Emulator) *worker {
	return &worker{
		emu:  emu,
		jobs: make(chan job),
		quit: make(chan struct{}),
	}
}

func (w *worker) run() {
	for {
		select {
		case j := <-w.jobs:
			j.fn(w.emu)
			close(j.done)
		case <-w.quit:
			return
		}
	}
}

func (w *worker) stop() {
	close(w.quit)
}

// do runs fn against the emulator on the worker goroutine and blocks
// until it completes.
func (w *worker) do(fn func(*nvcell.Emulator)) {
	done := make(chan struct{})
	w.jobs <- job{fn: fn, done: done}
	<-done
}

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
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/oqtaflash/nvcell/pkg/daemon"
	"github.com/oqtaflash/nvcell/pkg/flash"
	"github.com/oqtaflash/nvcell/pkg/nvcell"
	"github.com/oqtaflash/nvcell/pkg/sector"
)

// NewServe creates the serve command: starts a daemon over either a RAM
// store (development) or a serial-attached flash programmer.
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve [--ram] [-d|--device {device}] --sector1-base {n} --sector1-size {n}
      --sector2-base {n} --sector2-size {n}`,
		"run the emulator daemon & API server",
		`Use the serve command to run the emulator against either an in-memory
store (--ram, for development) or a flash programmer reached over a serial
link (--device). The two sector geometries are always required, since this
emulator never guesses flash layout.`,
		"", `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.RAM, "ram", "", "", false,
		"back the emulator with an in-memory store instead of a serial device", false)
	s.AddSetting(&s.Device, "device", "d", "NVEECTL_DEVICE", "",
		"serial port device for the flash programmer", false)
	s.AddSetting(&s.Sector1Base, "sector1-base", "", "", nil, "sector 1 base offset", true)
	s.AddSetting(&s.Sector1Size, "sector1-size", "", "", nil, "sector 1 size in bytes", true)
	s.AddSetting(&s.Sector2Base, "sector2-base", "", "", nil, "sector 2 base offset", true)
	s.AddSetting(&s.Sector2Size, "sector2-size", "", "", nil, "sector 2 size in bytes", true)

	return s
}

// Serve is the "serve" subcommand.
type Serve struct {
	Runner
	RAM         bool
	Device      string
	Sector1Base int
	Sector1Size int
	Sector2Base int
	Sector2Size int
}

// Run starts the flash store, resolves the emulator's on-media state, and
// serves the HTTP control API until interrupted.
func (s *Serve) Run() error {

	s.ParseSettings()

	var store flash.Store

	if s.RAM {
		store = flash.NewRAM(
			flash.Span{Base: uint32(s.Sector1Base), Size: uint32(s.Sector1Size)},
			flash.Span{Base: uint32(s.Sector2Base), Size: uint32(s.Sector2Size)},
		)
	} else {
		if s.Device == "" {
			return fmt.Errorf("either --ram or --device must be given")
		}
		serial, serr := flash.OpenSerial(s.Device)
		if serr != nil {
			return serr
		}
		defer serial.Close()
		store = serial
	}

	emu := nvcell.New(store,
		sector.Descriptor{Base: uint32(s.Sector1Base), Size: uint32(s.Sector1Size)},
		sector.Descriptor{Base: uint32(s.Sector2Base), Size: uint32(s.Sector2Size)})

	if err := emu.Init(); err != nil {
		return fmt.Errorf("error initialising emulator: %v", err)
	}

	d := daemon.NewDaemon(emu)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.WithField("signal", sig).Info("signal received, shutting down")
		d.Stop()
	}()

	if err := d.Serve(fmt.Sprintf(":%d", s.Port)); err != nil {
		return fmt.Errorf("daemon closed with error: %v", err)
	}
	log.Info("nvcell daemon stopped")
	return nil
}

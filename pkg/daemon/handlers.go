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

package daemon

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/oqtaflash/nvcell/pkg/nvcell"
)

// statusResponse is the JSON body served by GET /status.
type statusResponse struct {
	Sector1      string `json:"sector1"`
	Sector2      string `json:"sector2"`
	Active       string `json:"active"`
	PendingErase bool   `json:"pendingErase"`
	Capacity     int    `json:"capacity"`
}

func (d *Daemon) status(w http.ResponseWriter, req *http.Request) {

	var resp statusResponse

	d.worker.do(func(e *nvcell.Emulator) {
		s := e.Status()
		resp = statusResponse{
			Sector1:      s.Sector1.String(),
			Sector2:      s.Sector2.String(),
			Active:       fmt.Sprintf("%d", s.Active),
			PendingErase: s.PendingErase,
			Capacity:     s.Capacity,
		}
	})

	sendJSON(resp, http.StatusOK, w)
}

func (d *Daemon) getCell(w http.ResponseWriter, req *http.Request) {

	id, err := idFromVars(req)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	var b byte
	d.worker.do(func(e *nvcell.Emulator) {
		b = e.GetByte(id)
	})

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte{b})
}

func (d *Daemon) putCell(w http.ResponseWriter, req *http.Request) {

	id, err := idFromVars(req)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 2))
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	if len(body) != 1 {
		handleError(fmt.Errorf("PUT /cell requires exactly one byte"),
			http.StatusUnprocessableEntity, w)
		return
	}

	d.worker.do(func(e *nvcell.Emulator) {
		e.PutByte(id, body[0])
	})

	w.WriteHeader(http.StatusOK)
}

func (d *Daemon) getRange(w http.ResponseWriter, req *http.Request) {

	vars := mux.Vars(req)

	id, err := strconv.Atoi(vars["id"])
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	length, err := strconv.Atoi(vars["length"])
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	buf := make([]byte, length)
	d.worker.do(func(e *nvcell.Emulator) {
		e.Get(uint16(id), buf)
	})

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(buf)
}

func (d *Daemon) putRange(w http.ResponseWriter, req *http.Request) {

	id, err := idFromVars(req)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 65536))
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	d.worker.do(func(e *nvcell.Emulator) {
		if int(id)+len(body) >= e.Capacity() {
			return
		}
		e.Put(id, body)
	})

	w.WriteHeader(http.StatusOK)
}

func (d *Daemon) clear(w http.ResponseWriter, req *http.Request) {

	var err error
	d.worker.do(func(e *nvcell.Emulator) {
		err = e.Clear()
	})

	if handleError(err, http.StatusInternalServerError, w) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (d *Daemon) pendingErase(w http.ResponseWriter, req *http.Request) {

	var err error
	d.worker.do(func(e *nvcell.Emulator) {
		if e.HasPendingErase() {
			err = e.PerformPendingErase()
		}
	})

	if handleError(err, http.StatusInternalServerError, w) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

func idFromVars(req *http.Request) (uint16, error) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		return 0, err
	}
	if id < 0 || id > 0xFFFF {
		return 0, fmt.Errorf("id out of range: %d", id)
	}
	return uint16(id), nil
}

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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/oqtaflash/nvcell/pkg/nvcell"
)

// Daemon owns one Emulator and exposes it over HTTP. All calls into the
// emulator are serialized onto a single goroutine; HTTP handlers hand
// their work to it and block for the result.
type Daemon struct {
	worker *worker
	server *http.Server
}

// NewDaemon creates a Daemon around an already-constructed Emulator. The
// caller is responsible for calling emu.Init() beforehand.
func NewDaemon(emu *nvcell.Emulator) *Daemon {
	return &Daemon{worker: newWorker(emu)}
}

// Serve starts the emulator's worker goroutine and blocks serving HTTP on
// addr until Stop is called.
func (d *Daemon) Serve(addr string) error {

	go d.worker.run()

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", d.status)
	addRoute(router, "get-cell", "GET", "/cell/{id:[0-9]+}", d.getCell)
	addRoute(router, "put-cell", "PUT", "/cell/{id:[0-9]+}", d.putCell)
	addRoute(router, "get-range", "GET", "/range/{id:[0-9]+}/{length:[0-9]+}", d.getRange)
	addRoute(router, "put-range", "PUT", "/range/{id:[0-9]+}", d.putRange)
	addRoute(router, "clear", "POST", "/clear", d.clear)
	addRoute(router, "pending-erase", "POST", "/pending-erase", d.pendingErase)

	if len(addr) > 0 && addr[0] == ':' {
		addr = "127.0.0.1" + addr
	}

	log.Infof("nvcell daemon starts listening on %s", addr)
	d.server = &http.Server{Addr: addr, Handler: router}

	err := d.server.ListenAndServe()
	d.worker.stop()

	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (d *Daemon) Stop() error {
	if d.server == nil {
		return nil
	}
	log.Info("nvcell daemon stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.server.Shutdown(ctx)
	d.server = nil
	return err
}

func addRoute(r *mux.Router, name, method, pattern string, handler http.HandlerFunc) {
	r.Methods(method).Path(pattern).Name(name).Handler(requestLogger(handler, name))
}

func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API | %s", name)
	})
}

func handleError(e error, statusCode int, w http.ResponseWriter) bool {
	if e == nil {
		return false
	}
	log.Errorf("%v", e)
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, "%v\n", e)
	return true
}

func sendJSON(obj interface{}, statusCode int, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing JSON reply: %v", err)
	}
}

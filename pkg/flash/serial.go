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

package flash

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// command bytes for the framed protocol spoken to a serial-attached flash
// programmer: 1 byte opcode, 4 byte offset, 2 byte length, payload.
const (
	opRead  = 'R'
	opProg  = 'P'
	opErase = 'E'
)

// Serial drives a physical flash chip through a serial-attached
// programmer. It speaks a small framed-command protocol: an opcode byte,
// an offset, a length, and then payload bytes for writes.
type Serial struct {
	port io.ReadWriteCloser
}

// OpenSerial opens the given serial device at a fixed baud rate suitable
// for a flash programmer link.
func OpenSerial(device string) (*Serial, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening flash programmer port: %v", err)
	}
	return &Serial{port: port}, nil
}

// Close releases the underlying serial port.
func (s *Serial) Close() error {
	return s.port.Close()
}

func (s *Serial) frame(op byte, offset uint32, payload []byte) error {

	hdr := make([]byte, 7)
	hdr[0] = op
	binary.LittleEndian.PutUint32(hdr[1:5], offset)
	binary.LittleEndian.PutUint16(hdr[5:7], uint16(len(payload)))

	if _, err := s.port.Write(hdr); err != nil {
		return fmt.Errorf("error sending command header: %v", err)
	}
	if len(payload) > 0 {
		if _, err := s.port.Write(payload); err != nil {
			return fmt.Errorf("error sending command payload: %v", err)
		}
	}
	return nil
}

func (s *Serial) ack() int {
	status := make([]byte, 1)
	if _, err := io.ReadFull(s.port, status); err != nil {
		log.Errorf("error reading programmer ack: %v", err)
		return -1
	}
	return int(int8(status[0]))
}

func (s *Serial) Read(offset uint32, dst []byte) {
	if err := s.frame(opRead, offset, nil); err != nil {
		log.Errorf("error requesting read: %v", err)
		return
	}
	if _, err := io.ReadFull(s.port, dst); err != nil {
		log.Errorf("error receiving read data: %v", err)
	}
}

// DataAt has no zero-copy path over a serial link; it reads into a fresh
// buffer instead.
func (s *Serial) DataAt(offset uint32, n int) []byte {
	buf := make([]byte, n)
	s.Read(offset, buf)
	return buf
}

func (s *Serial) Program(offset uint32, src []byte) int {
	if err := s.frame(opProg, offset, src); err != nil {
		log.Errorf("error sending program command: %v", err)
		return -1
	}
	return s.ack()
}

func (s *Serial) EraseSector(base uint32) int {
	if err := s.frame(opErase, base, nil); err != nil {
		log.Errorf("error sending erase command: %v", err)
		return -1
	}
	return s.ack()
}

package sink

import (
	"fmt"
	"io"
	"log"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
)

// SerialWriter emits batches on a serial line, so the simulator can stand in
// for a hardware receiver in front of another device.
type SerialWriter struct {
	name string

	wmu    sync.Mutex // serialises writes, guards errors
	errors int

	mu sync.Mutex // guards w; never held across a write
	w  io.WriteCloser
}

// OpenSerial opens portName at baud, 8N1.
func OpenSerial(portName string, baud int) (*SerialWriter, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	log.Printf("serial: output opened on %s at %d baud", portName, baud)
	return NewSerialWriter(portName, port), nil
}

// NewSerialWriter wraps an already open port.
func NewSerialWriter(name string, w io.WriteCloser) *SerialWriter {
	return &SerialWriter{name: name, w: w}
}

func (s *SerialWriter) Push(b feeder.Batch) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w == nil {
		return
	}
	if _, err := w.Write(b.Bytes()); err != nil {
		s.errors++
		// log the first failure and then every 60th to keep the log readable
		if s.errors%60 == 1 {
			log.Printf("serial: write to %s failed (%d errors): %v", s.name, s.errors, err)
		}
	}
}

// Close closes the port; later pushes are dropped. It does not wait for a
// write in progress, closing the port is what unblocks it.
func (s *SerialWriter) Close() error {
	s.mu.Lock()
	w := s.w
	s.w = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

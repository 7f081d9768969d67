// Package messaging connects the simulation to the traffic-light controller:
// an MQTT messenger, an in-memory loopback bus and the single-slot mailbox the
// tick reads inbound commands from.
package messaging

import "sync/atomic"

type slotEntry struct {
	payload []byte
	version uint64
}

// Slot holds only the most recent payload. Writers never block and the reader
// always sees a complete payload.
type Slot struct {
	seq     atomic.Uint64
	current atomic.Pointer[slotEntry]
}

// Store replaces the held payload with a copy of payload.
func (s *Slot) Store(payload []byte) {
	cp := append([]byte(nil), payload...)
	s.current.Store(&slotEntry{payload: cp, version: s.seq.Add(1)})
}

// Load returns the latest payload and its version. Version 0 means nothing has
// been stored yet.
func (s *Slot) Load() ([]byte, uint64) {
	e := s.current.Load()
	if e == nil {
		return nil, 0
	}
	return e.payload, e.version
}

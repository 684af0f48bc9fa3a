// Package observability collects runtime counters for the chat server and
// reports them, together with process self-stats, on a fixed interval.
package observability

import "sync/atomic"

// Telemetry aggregates the server-wide counters. All increments are atomic;
// sessions share one instance.
type Telemetry struct {
	connectionsOpened uint64
	registrations     uint64
	renames           uint64
	broadcasts        uint64
	addressedSends    uint64
	droppedAddressed  uint64
	decodeMisses      uint64
	livenessTimeouts  uint64
	departures        uint64
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	ConnectionsOpened uint64
	Registrations     uint64
	Renames           uint64
	Broadcasts        uint64
	AddressedSends    uint64
	DroppedAddressed  uint64
	DecodeMisses      uint64
	LivenessTimeouts  uint64
	Departures        uint64
}

func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

func (t *Telemetry) IncrConnectionsOpened() { atomic.AddUint64(&t.connectionsOpened, 1) }
func (t *Telemetry) IncrRegistrations()     { atomic.AddUint64(&t.registrations, 1) }
func (t *Telemetry) IncrRenames()           { atomic.AddUint64(&t.renames, 1) }
func (t *Telemetry) IncrBroadcasts()        { atomic.AddUint64(&t.broadcasts, 1) }
func (t *Telemetry) IncrAddressedSends()    { atomic.AddUint64(&t.addressedSends, 1) }
func (t *Telemetry) IncrDroppedAddressed()  { atomic.AddUint64(&t.droppedAddressed, 1) }
func (t *Telemetry) IncrDecodeMisses()      { atomic.AddUint64(&t.decodeMisses, 1) }
func (t *Telemetry) IncrLivenessTimeouts()  { atomic.AddUint64(&t.livenessTimeouts, 1) }
func (t *Telemetry) IncrDepartures()        { atomic.AddUint64(&t.departures, 1) }

func (t *Telemetry) Snapshot() Stats {
	return Stats{
		ConnectionsOpened: atomic.LoadUint64(&t.connectionsOpened),
		Registrations:     atomic.LoadUint64(&t.registrations),
		Renames:           atomic.LoadUint64(&t.renames),
		Broadcasts:        atomic.LoadUint64(&t.broadcasts),
		AddressedSends:    atomic.LoadUint64(&t.addressedSends),
		DroppedAddressed:  atomic.LoadUint64(&t.droppedAddressed),
		DecodeMisses:      atomic.LoadUint64(&t.decodeMisses),
		LivenessTimeouts:  atomic.LoadUint64(&t.livenessTimeouts),
		Departures:        atomic.LoadUint64(&t.departures),
	}
}

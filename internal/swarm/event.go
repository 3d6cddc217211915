package swarm

// Event is the shared envelope every protocol's OutEvent travels in on the
// swarm-wide broadcast channel, mirroring the source's single
// SwarmEvent::Behaviour(BehaviourEvent::<Protocol>(..)) tagged union without
// requiring this package to import every protocol package (which would
// create an import cycle, since protocol behaviours publish onto a
// *Broadcaster owned here).
type Event struct {
	// Protocol names the originating protocol, e.g. "messaging", "advertise",
	// "blob", or "swarm" for connection-lifecycle notifications raised by
	// the swarm task itself.
	Protocol string
	// Payload is the protocol's own OutEvent value. Handle layers type-assert
	// it back to their concrete OutEvent type.
	Payload any
}

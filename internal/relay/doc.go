// Package relay is the realtime command core of Hearth.
//
// A client-issued device command flows through four components: the
// Dispatcher resolves the target controller and buffers the command, the
// Buffer holds it under a TTL awaiting hardware acknowledgment, the
// Correlator matches the controller's ACK back to the buffered entry,
// and the Notifier fans the outcome out to every client connected to the
// house. The Registry underneath tracks which logical connections are
// live and addressable by group.
//
// The correctness-critical invariant lives in the Buffer: under
// concurrent Take calls for one command id, exactly one caller wins and
// all others observe a miss, so a duplicate or racing ACK can never be
// processed twice. Expiry is enforced by the buffer itself on every
// Take; a command whose deadline has passed is indistinguishable from
// one that never existed.
package relay

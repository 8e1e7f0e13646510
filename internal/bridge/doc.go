/*
Package bridge moves events from an instrumented client to the aggregator.

A [Page] is the instrumented side; it posts marked messages onto a bounded
channel and never blocks. A [Mediator] drains that channel, ignores anything
not carrying the marker, and re-envelopes each event for a [Relay].

Relays are best effort. An unreachable daemon is indistinguishable from a
successful send to the caller; retry belongs to the aggregator's batcher.
*/
package bridge

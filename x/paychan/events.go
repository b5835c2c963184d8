package paychan

import (
	"math/big"

	"github.com/wolever/machinomy"
)

// Event is emitted by the registry on every successful state transition.
// Events are reported after the transition is persisted; a discarded
// operation emits nothing.
type Event interface {
	event()
}

// DidCreateChannel reports a newly opened channel.
type DidCreateChannel struct {
	Sender    machinomy.Address
	Receiver  machinomy.Address
	ChannelID machinomy.HexBytes
}

// DidDeposit reports an increase of the channel escrow. Value is the new
// escrow total.
type DidDeposit struct {
	ChannelID machinomy.HexBytes
	Value     *big.Int
}

// DidStartSettle reports a sender initiated settlement with the proposed
// payment amount.
type DidStartSettle struct {
	ChannelID machinomy.HexBytes
	Payment   *big.Int
}

// DidSettle reports a finalized channel. Payment is what the receiver
// was paid, OddValue the remainder refunded to the sender.
type DidSettle struct {
	ChannelID machinomy.HexBytes
	Payment   *big.Int
	OddValue  *big.Int
}

func (DidCreateChannel) event() {}
func (DidDeposit) event()       {}
func (DidStartSettle) event()   {}
func (DidSettle) event()        {}

// EventSink consumes registry events. Implementations must not block;
// the registry holds its lock while emitting.
type EventSink interface {
	Emit(Event)
}

// EventRecorder is an EventSink that keeps everything in memory. Useful
// in tests and as a building block for notification plumbing.
type EventRecorder struct {
	events []Event
}

var _ EventSink = (*EventRecorder)(nil)

// Emit implements EventSink.
func (r *EventRecorder) Emit(e Event) {
	r.events = append(r.events, e)
}

// Events returns all recorded events in emission order.
func (r *EventRecorder) Events() []Event {
	return append([]Event{}, r.events...)
}

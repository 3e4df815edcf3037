package mempool

import "obsidianmempool/wire"

// EventType enumerates the observable events the mempool emits in
// program order on the thread that performed the mutation.
type EventType string

const (
	EventTx          EventType = "tx"
	EventAddEntry    EventType = "add entry"
	EventAddOrphan   EventType = "add orphan"
	EventConfirmed   EventType = "confirmed"
	EventRemoveEntry EventType = "remove entry"
	EventRemoveOrphan EventType = "remove orphan"
	EventDoubleSpend EventType = "double spend"
	EventConflict    EventType = "conflict"
	EventBadOrphan   EventType = "bad orphan"
	EventUnconfirmed EventType = "unconfirmed"
	EventError       EventType = "error"
)

// Event carries an observable mempool occurrence to whatever embeds the
// engine. Fields not relevant to a given Type are left zero.
type Event struct {
	Type       EventType
	Tx         *wire.MsgTx
	Entry      *MempoolEntry
	Hash       wire.Hash
	OriginPeer int32
	Block      *wire.MsgBlock
	Err        error
}

// Events returns the channel the mempool publishes events on. The
// channel is buffered; a consumer that falls behind will make emit a
// non-blocking best-effort drop rather than stall the admission pipeline.
func (m *Mempool) Events() <-chan Event {
	return m.events
}

func (m *Mempool) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.WithField("event", ev.Type).Warn("event channel full, dropping event")
	}
}

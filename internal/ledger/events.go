// events.go - Append-only event feed with symmetric account indexing.
//
// Transfer and Approval events carry the still-encrypted amount handle.
// Both participant addresses of every event are indexed, so either side can
// retrieve its history.

package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"cipherledger/internal/fhe"
)

// Topics for external event publishing.
const (
	TopicTransfers = "ledger.transfers"
	TopicApprovals = "ledger.approvals"
)

// EventType discriminates feed entries.
type EventType string

const (
	EventTransfer EventType = "Transfer"
	EventApproval EventType = "Approval"
)

// Event is one committed ledger event. For transfers, From/To are sender and
// recipient (From is the zero address for mints); for approvals they are
// owner and spender.
type Event struct {
	ID     string         `json:"id"`
	Seq    uint64         `json:"seq"`
	Type   EventType      `json:"type"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount fhe.Handle     `json:"amount"`
	At     time.Time      `json:"at"`
}

// EventPublisher forwards committed events to an external sink.
// Publish failures never abort the committed call.
type EventPublisher interface {
	Publish(topic string, event any) error
}

// eventFeed is the in-memory append-only feed plus its per-account index.
type eventFeed struct {
	events    []Event
	byAccount map[common.Address][]int
}

func newEventFeed() *eventFeed {
	return &eventFeed{byAccount: make(map[common.Address][]int)}
}

// append assigns the next sequence number and indexes both participants.
func (f *eventFeed) append(typ EventType, from, to common.Address, amount fhe.Handle) Event {
	ev := Event{
		ID:     uuid.New().String(),
		Seq:    uint64(len(f.events)),
		Type:   typ,
		From:   from,
		To:     to,
		Amount: amount,
		At:     time.Now().UTC(),
	}
	idx := len(f.events)
	f.events = append(f.events, ev)
	if from != (common.Address{}) {
		f.byAccount[from] = append(f.byAccount[from], idx)
	}
	if to != from {
		f.byAccount[to] = append(f.byAccount[to], idx)
	}
	return ev
}

// Events returns a copy of the full ordered feed.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.feed.events))
	copy(out, l.feed.events)
	return out
}

// EventsByAccount returns every event the account participated in, in feed
// order, whichever side of the event it was on.
func (l *Ledger) EventsByAccount(account common.Address) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	idxs := l.feed.byAccount[account]
	out := make([]Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, l.feed.events[i])
	}
	return out
}

// emit appends to the feed and forwards to the publisher if one is set.
// Called with l.mu held, after all state mutations committed.
func (l *Ledger) emit(typ EventType, from, to common.Address, amount fhe.Handle) {
	ev := l.feed.append(typ, from, to, amount)
	topic := TopicTransfers
	if typ == EventApproval {
		topic = TopicApprovals
	}
	if l.publisher != nil {
		if err := l.publisher.Publish(topic, ev); err != nil {
			l.log.Warn().Err(err).Str("topic", topic).Uint64("seq", ev.Seq).
				Msg("event publish failed")
		}
	}
}

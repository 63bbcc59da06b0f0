// Package bus implements the realtime event fan-out of spec §5: one
// channel per poker table, one private channel per agent (hole cards and
// other agent-only notices), and a single global channel for duel
// lifecycle events. Delivery is best-effort and in order per
// (channel, subscriber): a slow subscriber has its own events dropped, it
// never blocks the publisher or other subscribers.
//
// Grounded on the teacher's internal/api/websocket.go Hub (a
// mutex-guarded client set fed by a single broadcast channel, with a
// write deadline so one stuck client cannot wedge the others), generalized
// from one global broadcast channel to many independently-addressed
// channels, each with its own per-subscriber buffered queue instead of a
// shared deadline-enforced socket write.
package bus

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
)

// Event is one message delivered on a channel.
type Event struct {
	Channel string
	Kind    string
	Payload interface{}
}

// subscriberQueueSize bounds how far a subscriber may lag before this bus
// starts dropping its events, per spec §5 "best-effort, drop-on-backpressure".
const subscriberQueueSize = 64

// Subscription is a single subscriber's view of one channel.
type Subscription struct {
	channel string
	events  chan Event
	bus     *Bus
}

// Events returns the subscriber's event stream. Closed when Unsubscribe is
// called.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Unsubscribe() { s.bus.unsubscribe(s) }

// Bus is the process-wide realtime fan-out (spec §5). The zero value is not
// usable; construct with New.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe opens a subscription to a channel name (e.g. "table:<id>",
// "agent:<id>", or the well-known "duel" channel).
func (b *Bus) Subscribe(channel string) *Subscription {
	sub := &Subscription{channel: channel, events: make(chan Event, subscriberQueueSize), bus: b}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*Subscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.channel]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.events)
		}
		if len(set) == 0 {
			delete(b.subs, sub.channel)
		}
	}
}

// Publish fans an event out to every current subscriber of channel. A
// subscriber whose queue is full has this event dropped rather than
// blocking the publisher, per spec §5.
func (b *Bus) Publish(channel, kind string, payload interface{}) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs[channel]))
	for sub := range b.subs[channel] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	evt := Event{Channel: channel, Kind: kind, Payload: payload}
	for _, sub := range subs {
		select {
		case sub.events <- evt:
		default:
			log.Printf("bus: dropping event %q on channel %q, subscriber queue full", kind, channel)
		}
	}
}

const duelChannel = "duel"

func tableChannel(tableID uuid.UUID) string { return "table:" + tableID.String() }
func agentChannel(id agent.ID) string       { return "agent:" + id.String() }

// TableEvent implements poker.EventSink: broadcasts to every subscriber of
// the table's own channel.
func (b *Bus) TableEvent(tableID uuid.UUID, kind string, payload interface{}) {
	b.Publish(tableChannel(tableID), kind, payload)
}

// PrivateEvent implements poker.EventSink: delivers to the single agent's
// private channel only (hole cards, per spec §3/§5 "no other party ever
// observes hole cards before showdown").
func (b *Bus) PrivateEvent(id agent.ID, kind string, payload interface{}) {
	b.Publish(agentChannel(id), kind, payload)
}

// DuelEvent implements duel.EventSink: every duel lifecycle event goes on
// the one global duel channel (spec §5).
func (b *Bus) DuelEvent(gameID uuid.UUID, kind string, payload interface{}) {
	b.Publish(duelChannel, kind, payload)
}

// SubscribeTable opens a subscription to one table's channel.
func (b *Bus) SubscribeTable(tableID uuid.UUID) *Subscription { return b.Subscribe(tableChannel(tableID)) }

// SubscribeAgent opens a subscription to one agent's private channel.
func (b *Bus) SubscribeAgent(id agent.ID) *Subscription { return b.Subscribe(agentChannel(id)) }

// SubscribeDuels opens a subscription to the global duel channel.
func (b *Bus) SubscribeDuels() *Subscription { return b.Subscribe(duelChannel) }

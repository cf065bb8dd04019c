// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"roboburn/pkg/logger"
)

type Topic string
type Event = any

// Bus is an in-memory pub/sub where each subscriber only ever holds the
// most recent event of its topic. Publish never blocks.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]*subscriber
	last   map[Topic]Event
	nextID atomic.Uint64
	closed atomic.Bool
	log    *logger.Logger

	published atomic.Int64
	delivered atomic.Int64
	replaced  atomic.Int64
	dropped   atomic.Int64
}

// subscriber is only sent to and closed with b.mu held.
type subscriber struct {
	ch     chan Event
	closed bool
}

// Stats are cumulative delivery counters.
type Stats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Replaced  int64 `json:"replaced"`
	Dropped   int64 `json:"dropped"`
}

func New() *Bus {
	return &Bus{
		subs: make(map[Topic]map[uint64]*subscriber),
		last: make(map[Topic]Event),
		log:  logger.New("EventBus"),
	}
}

func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Replaced:  b.replaced.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Publish stores ev as the last event for topic and hands it to every
// subscriber, replacing whatever the subscriber had not read yet.
func (b *Bus) Publish(topic Topic, ev Event) {
	if b.closed.Load() {
		return
	}
	b.published.Add(1)

	// deliver under the lock so a subscriber ends on the last published event
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return
	}
	b.last[topic] = ev
	for _, s := range b.subs[topic] {
		b.replace(s, ev)
	}
}

// replace must be called with b.mu held.
func (b *Bus) replace(s *subscriber, ev Event) {
	if s.closed {
		b.dropped.Add(1)
		return
	}
	ch := s.ch

	select {
	case ch <- ev:
		b.delivered.Add(1)
		return
	default:
	}

	select {
	case <-ch:
		b.replaced.Add(1)
	default:
	}
	select {
	case ch <- ev:
		b.delivered.Add(1)
	default:
		b.log.Debug("dropped event: %T", ev)
		b.dropped.Add(1)
	}
}

// Subscribe returns a channel carrying the latest events of topic and an
// unsubscribe func. With withLast the stored last event is delivered
// first. The channel is closed when ctx ends or unsubscribe is called.
func (b *Bus) Subscribe(ctx context.Context, topic Topic, withLast bool) (<-chan Event, func()) {
	if b.closed.Load() {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	sub := &subscriber{ch: make(chan Event, 1)}
	id := b.nextID.Add(1)

	b.mu.Lock()
	if b.last == nil {
		// closed since the check above
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*subscriber)
	}
	b.subs[topic][id] = sub
	if last, ok := b.last[topic]; ok && withLast {
		b.replace(sub, last)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	unsub := func() { once.Do(func() { close(done) }) }

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.ch)
		if m, ok := b.subs[topic]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(b.subs, topic)
			}
		}
	}()

	return sub.ch, unsub
}

// GetLast returns the last published event for a topic (if any).
func (b *Bus) GetLast(topic Topic) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.last[topic]
	return v, ok
}

// Close closes all subscriber channels. Publish becomes a no-op and
// Subscribe returns a closed channel.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	for _, m := range b.subs {
		for _, s := range m {
			s.closed = true
			close(s.ch)
		}
	}
	b.subs = map[Topic]map[uint64]*subscriber{}
	b.last = nil
	b.mu.Unlock()
}

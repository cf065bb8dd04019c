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

package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"roboburn/internal/burner"
	"roboburn/pkg/logger"
)

const DefaultInterval = time.Second

var ErrAlreadyRunning = errors.New("poller already running")

// StatusSource is anything that can fetch a status snapshot. The control
// client satisfies it.
type StatusSource interface {
	GetStatus(ctx context.Context) (burner.Status, error)
}

type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Stats are cumulative over the poller's lifetime, across restarts.
type Stats struct {
	State        string    `json:"state"`
	Cycles       int64     `json:"cycles"`
	StatusEvents int64     `json:"status_events"`
	ErrorEvents  int64     `json:"error_events"`
	Panics       int64     `json:"consumer_panics"`
	LastError    string    `json:"last_error,omitempty"`
	LastSuccess  time.Time `json:"last_success"`
}

// Poller fetches the status once per interval on a single goroutine and
// fans the result out to registered consumers in registration order.
type Poller struct {
	source   StatusSource
	interval time.Duration
	log      *logger.Logger

	mu        sync.Mutex
	consumers []StatusConsumer
	state     State
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}

	cycles       atomic.Int64
	statusEvents atomic.Int64
	errorEvents  atomic.Int64
	panics       atomic.Int64
	lastErr      atomic.Value // string
	lastSuccess  atomic.Int64 // unix nanos
}

type Option func(*Poller)

// WithInterval sets the pause between the end of one cycle and the start
// of the next.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

func New(source StatusSource, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		interval: DefaultInterval,
		log:      logger.New("Poller"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Register appends a consumer. It takes effect from the next cycle.
func (p *Poller) Register(c StatusConsumer) {
	if c == nil {
		return
	}
	p.mu.Lock()
	p.consumers = append(p.consumers, c)
	p.mu.Unlock()
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins a new lifecycle. If the previous lifecycle is still
// stopping, the new one waits for it to exit before its first fetch.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Running {
		return ErrAlreadyRunning
	}

	prev := p.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.gen++
	p.state = Running
	p.cancel = cancel
	p.done = done

	go p.loop(ctx, p.gen, prev, done)
	p.log.Debug("started lifecycle %d", p.gen)
	return nil
}

// Stop ends the current lifecycle. It never blocks and may be called from
// inside a consumer; use Done to wait for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Running {
		return
	}
	p.state = Stopping
	p.cancel()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed when the current lifecycle's goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return closedChan
	}
	return p.done
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if err := p.Start(); err != nil {
		p.log.Error("start: %v", err)
		return
	}
	done := p.Done()

	select {
	case <-ctx.Done():
		p.Stop()
		<-done
	case <-done:
	}
}

func (p *Poller) Stats() Stats {
	s := Stats{
		State:        p.State().String(),
		Cycles:       p.cycles.Load(),
		StatusEvents: p.statusEvents.Load(),
		ErrorEvents:  p.errorEvents.Load(),
		Panics:       p.panics.Load(),
	}
	if v, ok := p.lastErr.Load().(string); ok {
		s.LastError = v
	}
	if ns := p.lastSuccess.Load(); ns != 0 {
		s.LastSuccess = time.Unix(0, ns)
	}
	return s
}

func (p *Poller) loop(ctx context.Context, gen uint64, prev <-chan struct{}, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.gen == gen {
			p.state = Stopped
		}
		p.mu.Unlock()
		close(done)
		p.log.Debug("lifecycle %d exited", gen)
	}()

	// cycles of consecutive lifecycles must not overlap
	if prev != nil {
		<-prev
	}

	initial := true
	for {
		if ctx.Err() != nil {
			return
		}

		p.cycle(ctx, &initial)

		if !sleep(ctx, p.interval) {
			return
		}
	}
}

// sleep waits d or until ctx ends, reporting whether the full d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *Poller) cycle(ctx context.Context, initial *bool) {
	st, err := p.fetch(ctx)
	now := time.Now()
	p.cycles.Add(1)

	if err != nil {
		if ctx.Err() != nil {
			p.log.Debug("fetch aborted by stop: %v", err)
			return
		}
		p.errorEvents.Add(1)
		p.lastErr.Store(err.Error())
		p.log.Debug("poll failed: %v", err)
		p.deliverError(ErrorEvent{Err: err, Time: now})
		return
	}

	p.statusEvents.Add(1)
	p.lastSuccess.Store(now.UnixNano())
	ev := StatusEvent{Status: st, Initial: *initial, Time: now}
	*initial = false
	p.deliverStatus(ev)
}

func (p *Poller) fetch(ctx context.Context) (st burner.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status source panic: %v", r)
		}
	}()
	return p.source.GetStatus(ctx)
}

func (p *Poller) snapshotConsumers() []StatusConsumer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StatusConsumer(nil), p.consumers...)
}

func (p *Poller) deliverStatus(ev StatusEvent) {
	for _, c := range p.snapshotConsumers() {
		p.safeCall(c, func() { c.OnStatus(ev) })
	}
}

func (p *Poller) deliverError(ev ErrorEvent) {
	for _, c := range p.snapshotConsumers() {
		ec, ok := c.(ErrorConsumer)
		if !ok {
			continue
		}
		p.safeCall(c, func() { ec.OnError(ev) })
	}
}

func (p *Poller) safeCall(c StatusConsumer, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.log.Error("consumer %T panicked: %v", c, r)
		}
	}()
	fn()
}

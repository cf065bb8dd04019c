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

package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"roboburn/internal/burner"
	"roboburn/internal/poller"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu   sync.Mutex
	msgs []published
	got  chan struct{}
}

func (c *fakeClient) Connect() mqtt.Token { return doneToken{} }
func (c *fakeClient) Disconnect(uint)     {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	c.msgs = append(c.msgs, published{topic, retained, payload.([]byte)})
	c.mu.Unlock()
	c.got <- struct{}{}
	return doneToken{}
}

// pendingToken never completes, like a connect that keeps retrying.
type pendingToken struct{ doneToken }

func (pendingToken) Done() <-chan struct{} { return make(chan struct{}) }

type retryingClient struct {
	fakeClient
	disconnected chan uint
}

func (c *retryingClient) Connect() mqtt.Token { return pendingToken{} }
func (c *retryingClient) Disconnect(q uint)   { c.disconnected <- q }

func TestCancelWhileConnectingDisconnects(t *testing.T) {
	rc := &retryingClient{disconnected: make(chan uint, 1)}
	p := newWithClient(rc, "smoker")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-rc.disconnected:
	default:
		t.Error("connect retry left running")
	}
}

func TestQueueKeepsLatest(t *testing.T) {
	p := newWithClient(&fakeClient{}, "smoker")
	for i := 0; i < 5; i++ {
		p.OnError(poller.ErrorEvent{Err: errors.New("err"), Time: time.Unix(int64(i), 0)})
	}
	m := <-p.errs
	var e errorPayload
	json.Unmarshal(m.payload, &e)
	if e.Time.Unix() != 4 {
		t.Errorf("queued error from t=%d, want latest", e.Time.Unix())
	}
	select {
	case <-p.errs:
		t.Error("more than one message queued")
	default:
	}
}

func TestRunPublishes(t *testing.T) {
	fc := &fakeClient{got: make(chan struct{}, 4)}
	p := newWithClient(fc, "smoker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	st, _ := burner.Decode([]byte(`{"mode":"ON","high_temp":100,"burn":true,"temp_food":{"probe_temp":0,"fault":true}}`))
	p.OnStatus(poller.StatusEvent{Status: st, Time: time.Unix(10, 0)})
	p.OnError(poller.ErrorEvent{Err: errors.New("refused"), Time: time.Unix(11, 0)})

	for i := 0; i < 2; i++ {
		select {
		case <-fc.got:
		case <-time.After(2 * time.Second):
			t.Fatal("publish not called")
		}
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	byTopic := map[string]published{}
	for _, m := range fc.msgs {
		byTopic[m.topic] = m
	}

	s, ok := byTopic["smoker/status"]
	if !ok || !s.retained {
		t.Fatalf("status message = %+v", s)
	}
	var snap Snapshot
	if err := json.Unmarshal(s.payload, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Mode != "ON" || snap.HighF != 212 || !snap.Burn || snap.SenseF != nil || snap.FoodF == nil || *snap.FoodF != 32 || !snap.FoodFault {
		t.Errorf("snapshot = %+v", snap)
	}

	e, ok := byTopic["smoker/error"]
	if !ok || e.retained {
		t.Errorf("error message = %+v", e)
	}
}

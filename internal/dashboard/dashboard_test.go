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

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"roboburn/internal/events"
	"roboburn/internal/readout"
	"roboburn/pkg/eventbus"
)

type fakeChart struct{}

func (fakeChart) Snapshot() events.ChartUpdate {
	return events.ChartUpdate{Series: []events.Series{{Name: "sense", Points: []events.Point{{X: 1, Y: 70}}}}}
}

type fakeReadout struct {
	mu    sync.Mutex
	edits []readout.Edit
}

func (f *fakeReadout) Snapshot() events.ReadoutUpdate {
	return events.ReadoutUpdate{Sense: "212.0 F", Mode: "AUTO"}
}

func (f *fakeReadout) Apply(_ context.Context, e readout.Edit) (string, error) {
	if e.Mode == "BOOST" {
		return "", errors.New("invalid mode")
	}
	f.mu.Lock()
	f.edits = append(f.edits, e)
	f.mu.Unlock()
	return "edit-1", nil
}

type rawEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*Service, *fakeReadout, *eventbus.Bus, *httptest.Server) {
	t.Helper()
	bus := eventbus.New()
	ro := &fakeReadout{}
	s := New(bus, fakeChart{}, ro)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		bus.Close()
	})
	return s, ro, bus, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	hdr := http.Header{"Origin": {srv.URL}}
	ws, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) rawEnvelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env rawEnvelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestGreetingCarriesCurrentState(t *testing.T) {
	_, _, _, srv := setup(t)
	ws := dial(t, srv)

	first, second := read(t, ws), read(t, ws)
	if first.Type != "chart" || second.Type != "readout" {
		t.Fatalf("greeting types = %s, %s", first.Type, second.Type)
	}
	var r events.ReadoutUpdate
	json.Unmarshal(second.Data, &r)
	if r.Sense != "212.0 F" {
		t.Errorf("readout = %+v", r)
	}
}

func TestClientsTracksConnections(t *testing.T) {
	s, _, _, srv := setup(t)
	ws := dial(t, srv)
	read(t, ws)
	read(t, ws)

	if n := s.Clients(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}

	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d after close", s.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastsBusEvents(t *testing.T) {
	s, _, bus, srv := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ws := dial(t, srv)
	read(t, ws)
	read(t, ws)

	// Run subscribes asynchronously; keep publishing until it lands
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				bus.Publish(events.TopicReadout, events.ReadoutUpdate{PollError: "refused"})
			}
		}
	}()

	env := read(t, ws)
	if env.Type != "readout" {
		t.Fatalf("type = %s", env.Type)
	}
	var r events.ReadoutUpdate
	json.Unmarshal(env.Data, &r)
	if r.PollError != "refused" {
		t.Errorf("readout = %+v", r)
	}
}

func TestSaveCommand(t *testing.T) {
	_, ro, _, srv := setup(t)
	ws := dial(t, srv)
	read(t, ws)
	read(t, ws)

	ws.WriteJSON(map[string]string{"command": "save", "high_f": "225", "low_f": "200", "mode": "AUTO"})
	env := read(t, ws)
	var reply EditReply
	json.Unmarshal(env.Data, &reply)
	if env.Type != "edit" || reply.ID != "edit-1" || reply.Error != "" {
		t.Errorf("reply = %s %+v", env.Type, reply)
	}

	ws.WriteJSON(map[string]string{"command": "save", "high_f": "225", "low_f": "200", "mode": "BOOST"})
	env = read(t, ws)
	json.Unmarshal(env.Data, &reply)
	if reply.Error == "" {
		t.Errorf("expected error reply, got %+v", reply)
	}

	ro.mu.Lock()
	defer ro.mu.Unlock()
	if len(ro.edits) != 1 || ro.edits[0] != (readout.Edit{HighF: "225", LowF: "200", Mode: "AUTO"}) {
		t.Errorf("edits = %+v", ro.edits)
	}
}

func TestRejectsForeignOrigin(t *testing.T) {
	_, _, _, srv := setup(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStateAndPage(t *testing.T) {
	_, _, _, srv := setup(t)

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Readout.Mode != "AUTO" || len(st.Chart.Series) != 1 {
		t.Errorf("state = %+v", st)
	}

	page, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	page.Body.Close()
	if ct := page.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}

	missing, _ := http.Get(srv.URL + "/nope")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", missing.StatusCode)
	}
}

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
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"roboburn/internal/events"
	"roboburn/internal/readout"
	"roboburn/pkg/eventbus"
	"roboburn/pkg/logger"
)

//go:embed www/dashboard.html
var pageHTML []byte

type ChartSource interface {
	Snapshot() events.ChartUpdate
}

// ReadoutSource is the readout feed: its state plus the edit action.
type ReadoutSource interface {
	Snapshot() events.ReadoutUpdate
	Apply(ctx context.Context, e readout.Edit) (string, error)
}

// Request is a message from the browser.
type Request struct {
	Command string `json:"command"`
	readout.Edit
}

// Envelope is every message sent to the browser.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type EditReply struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

type State struct {
	Chart   events.ChartUpdate   `json:"chart"`
	Readout events.ReadoutUpdate `json:"readout"`
}

// Service serves the live dashboard and pushes bus updates to every
// connected socket.
type Service struct {
	eb      *eventbus.Bus
	chart   ChartSource
	readout ReadoutSource
	clients *clientSet
	log     *logger.Logger
}

func New(bus *eventbus.Bus, chart ChartSource, ro ReadoutSource) *Service {
	return &Service{
		eb:      bus,
		chart:   chart,
		readout: ro,
		clients: newClientSet(),
		log:     logger.New("Dashboard"),
	}
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRoot)
	mux.HandleFunc("/api/state", s.serveState)
	mux.HandleFunc("/ws", s.serveWebSockets())
	return mux
}

// Run forwards chart and readout events to the sockets until ctx ends.
func (s *Service) Run(ctx context.Context) {
	chartCh, unsubChart := s.eb.Subscribe(ctx, events.TopicChart, false)
	defer unsubChart()
	readoutCh, unsubReadout := s.eb.Subscribe(ctx, events.TopicReadout, false)
	defer unsubReadout()
	defer s.clients.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-chartCh:
			if !ok {
				return
			}
			s.broadcast("chart", ev)
		case ev, ok := <-readoutCh:
			if !ok {
				return
			}
			s.broadcast("readout", ev)
		}
	}
}

// Clients reports how many websocket clients are connected.
func (s *Service) Clients() int {
	return s.clients.count()
}

func (s *Service) broadcast(kind string, data any) {
	pm, err := prepare(kind, data)
	if err != nil {
		s.log.Error("failed to prepare %s message: %v", kind, err)
		return
	}
	s.clients.broadcast(pm, s.log)
}

func prepare(kind string, data any) (*websocket.PreparedMessage, error) {
	b, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		return nil, err
	}
	return websocket.NewPreparedMessage(websocket.TextMessage, b)
}

func (s *Service) state() State {
	return State{Chart: s.chart.Snapshot(), Readout: s.readout.Snapshot()}
}

func (s *Service) serveRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(pageHTML)
}

func (s *Service) serveState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state()); err != nil {
		s.log.Error("encode state: %v", err)
	}
}

func (s *Service) serveWebSockets() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			s.log.Debug("checking origin: %s", origin)
			if origin == "" {
				return false
			}
			if strings.Contains(origin, "localhost") {
				return true
			}
			return strings.Contains(origin, r.Host)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("failed to upgrade websocket: %v", err)
			return
		}
		defer func() {
			s.clients.remove(ws)
			ws.Close()
		}()

		if err := s.clients.add(ws, s.greeting()...); err != nil {
			s.log.Error("failed to greet client: %v", err)
			return
		}
		s.log.Debug("client connected, %d open", s.clients.count())

		// edits outlive the socket; the client timeouts bound them
		editCtx := context.WithoutCancel(r.Context())

		for {
			var req Request
			if err := ws.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Debug("ws read: %v", err)
				}
				return
			}
			s.handle(editCtx, ws, req)
		}
	}
}

func (s *Service) greeting() []*websocket.PreparedMessage {
	st := s.state()
	var out []*websocket.PreparedMessage
	for _, m := range []struct {
		kind string
		data any
	}{{"chart", st.Chart}, {"readout", st.Readout}} {
		pm, err := prepare(m.kind, m.data)
		if err != nil {
			s.log.Error("failed to prepare %s message: %v", m.kind, err)
			continue
		}
		out = append(out, pm)
	}
	return out
}

func (s *Service) handle(ctx context.Context, ws *websocket.Conn, req Request) {
	switch req.Command {
	case "save":
		var reply EditReply
		id, err := s.readout.Apply(ctx, req.Edit)
		if err != nil {
			reply.Error = err.Error()
		} else {
			reply.ID = id
		}
		s.reply(ws, "edit", reply)
	case "refresh":
		for _, pm := range s.greeting() {
			if err := s.clients.send(ws, pm); err != nil {
				s.log.Debug("refresh: %v", err)
				return
			}
		}
	default:
		s.reply(ws, "error", EditReply{Error: "unknown command: " + req.Command})
	}
}

func (s *Service) reply(ws *websocket.Conn, kind string, data any) {
	pm, err := prepare(kind, data)
	if err != nil {
		s.log.Error("failed to prepare reply: %v", err)
		return
	}
	if err := s.clients.send(ws, pm); err != nil {
		s.log.Debug("reply: %v", err)
	}
}

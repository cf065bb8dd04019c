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
	"sync"

	"github.com/gorilla/websocket"

	"roboburn/pkg/logger"
)

// clientSet serializes all writes to the connected sockets.
type clientSet struct {
	mutex   sync.Mutex
	clients map[*websocket.Conn]bool
}

func newClientSet() *clientSet {
	return &clientSet{clients: make(map[*websocket.Conn]bool)}
}

func (c *clientSet) broadcast(pm *websocket.PreparedMessage, log *logger.Logger) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		if err := ws.WritePreparedMessage(pm); err != nil {
			log.Error("failed to write message: %v", err)
			ws.Close()
			delete(c.clients, ws)
		}
	}
}

// add registers ws after writing greeting, so no broadcast can interleave
// with it.
func (c *clientSet) add(ws *websocket.Conn, greeting ...*websocket.PreparedMessage) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, pm := range greeting {
		if err := ws.WritePreparedMessage(pm); err != nil {
			return err
		}
	}
	c.clients[ws] = true
	return nil
}

func (c *clientSet) send(ws *websocket.Conn, pm *websocket.PreparedMessage) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return ws.WritePreparedMessage(pm)
}

func (c *clientSet) remove(ws *websocket.Conn) {
	c.mutex.Lock()
	delete(c.clients, ws)
	c.mutex.Unlock()
}

func (c *clientSet) count() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.clients)
}

func (c *clientSet) closeAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		ws.Close()
		delete(c.clients, ws)
	}
}

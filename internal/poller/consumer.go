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
	"time"

	"roboburn/internal/burner"
)

// StatusEvent carries one successful fetch. Initial is set on the first
// delivery of each lifecycle.
type StatusEvent struct {
	Status  burner.Status
	Initial bool
	Time    time.Time
}

// ErrorEvent reports a cycle that produced no status.
type ErrorEvent struct {
	Err  error
	Time time.Time
}

type StatusConsumer interface {
	OnStatus(StatusEvent)
}

// ErrorConsumer is implemented by consumers that also want poll failures.
// Consumers without it keep their last good state.
type ErrorConsumer interface {
	StatusConsumer
	OnError(ErrorEvent)
}

// StatusFunc adapts a function to StatusConsumer.
type StatusFunc func(StatusEvent)

func (f StatusFunc) OnStatus(ev StatusEvent) { f(ev) }

// ErrorFunc pairs a status func with an error func.
type ErrorFunc struct {
	Status func(StatusEvent)
	Error  func(ErrorEvent)
}

func (f ErrorFunc) OnStatus(ev StatusEvent) {
	if f.Status != nil {
		f.Status(ev)
	}
}

func (f ErrorFunc) OnError(ev ErrorEvent) {
	if f.Error != nil {
		f.Error(ev)
	}
}

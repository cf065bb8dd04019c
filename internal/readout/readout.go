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

package readout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roboburn/internal/burner"
	"roboburn/internal/events"
	"roboburn/internal/poller"
	"roboburn/pkg/eventbus"
	"roboburn/pkg/logger"
	"roboburn/pkg/tempconv"
)

const (
	noReading = "--"
	faultText = "FAULT"
)

var ErrInvalidEdit = errors.New("invalid edit")

// Setter is the subset of the control client used by edits.
type Setter interface {
	SetHigh(ctx context.Context, tempC string) (burner.Status, error)
	SetLow(ctx context.Context, tempC string) (burner.Status, error)
	SetMode(ctx context.Context, mode string) (burner.Status, error)
}

// Edit is a user change as typed: setpoints in Fahrenheit. HighC and LowC
// carry a setpoint the user did not touch, in the device's own Celsius
// text; they are sent as is and only used when the Fahrenheit field is
// empty.
type Edit struct {
	HighF string `json:"high_f"`
	LowF  string `json:"low_f"`
	Mode  string `json:"mode"`

	HighC string `json:"high_c,omitempty"`
	LowC  string `json:"low_c,omitempty"`
}

// Feed keeps the text and indicator state of the readout panel.
type Feed struct {
	eb     *eventbus.Bus
	setter Setter
	log    *logger.Logger

	mu    sync.RWMutex
	state events.ReadoutUpdate

	edits sync.WaitGroup
}

// New returns a Feed. setter may be nil for a read-only readout; bus may
// be nil when nothing subscribes.
func New(setter Setter, bus *eventbus.Bus) *Feed {
	return &Feed{
		eb:     bus,
		setter: setter,
		log:    logger.New("Readout"),
		state: events.ReadoutUpdate{
			Sense: noReading,
			Food:  noReading,
			Burn:  events.NewIndicator("BURN", false, events.ColorBurn),
			Wait:  events.NewIndicator("WAIT", false, events.ColorWait),
			Mode:  burner.Mode("").String(),
			High:  noReading,
			Low:   noReading,
		},
	}
}

func (f *Feed) OnStatus(ev poller.StatusEvent) {
	f.mu.Lock()
	applyStatus(&f.state, ev.Status)
	f.state.PollError = ""
	f.state.Initial = ev.Initial
	f.state.Updated = ev.Time
	u := f.state
	f.mu.Unlock()

	f.publish(u)
}

// OnError records a failed poll. Sensor texts keep their last values.
func (f *Feed) OnError(ev poller.ErrorEvent) {
	f.mu.Lock()
	f.state.PollError = ev.Err.Error()
	u := f.state
	f.mu.Unlock()

	f.publish(u)
}

func (f *Feed) Snapshot() events.ReadoutUpdate {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u := f.state
	if u.LastEdit != nil {
		e := *u.LastEdit
		u.LastEdit = &e
	}
	return u
}

func (f *Feed) publish(u events.ReadoutUpdate) {
	if f.eb != nil {
		f.eb.Publish(events.TopicReadout, u)
	}
}

func applyStatus(u *events.ReadoutUpdate, st burner.Status) {
	if r, ok := st.Sense(); ok {
		u.Sense = ReadingText(r)
	}
	if r, ok := st.Food(); ok {
		u.Food = ReadingText(r)
	}
	u.Burn = events.NewIndicator("BURN", st.Burning(), events.ColorBurn)
	u.Wait = events.NewIndicator("WAIT", st.Waiting(), events.ColorWait)
	u.Mode = st.Mode().String()
	u.High = TempText(st.HighC())
	u.Low = TempText(st.LowC())
}

// ReadingText renders a probe reading, or FAULT when the probe reports one.
func ReadingText(r burner.Reading) string {
	if r.Fault {
		return faultText
	}
	return TempText(r.ProbeC)
}

// TempText renders a Celsius value in Fahrenheit.
func TempText(c float64) string {
	return fmt.Sprintf("%2.1f F", tempconv.CelsiusToFahrenheit(c))
}

// Apply validates e and sends it on a new goroutine: high, then low, then
// mode. The first failing step aborts the rest. ctx bounds the requests,
// so it must outlive the call. The returned id tags the outcome published
// as LastEdit.
func (f *Feed) Apply(ctx context.Context, e Edit) (string, error) {
	if f.setter == nil {
		return "", fmt.Errorf("%w: readout is read-only", ErrInvalidEdit)
	}
	highC, err := setpointC(e.HighF, e.HighC)
	if err != nil {
		return "", fmt.Errorf("%w: high: %v", ErrInvalidEdit, err)
	}
	lowC, err := setpointC(e.LowF, e.LowC)
	if err != nil {
		return "", fmt.Errorf("%w: low: %v", ErrInvalidEdit, err)
	}
	mode, err := burner.ParseMode(e.Mode)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEdit, err)
	}

	id := uuid.NewString()
	f.log.Info("edit %s: high=%sC low=%sC mode=%s", id, highC, lowC, mode)

	f.edits.Add(1)
	go func() {
		defer f.edits.Done()
		f.runEdit(ctx, id, highC, lowC, mode)
	}()
	return id, nil
}

// Wait blocks until every edit started by Apply has finished.
func (f *Feed) Wait() {
	f.edits.Wait()
}

// setpointC picks the Celsius text to send: the converted Fahrenheit entry,
// or the unchanged Celsius value when no Fahrenheit entry was given.
func setpointC(f, c string) (string, error) {
	if strings.TrimSpace(f) != "" || strings.TrimSpace(c) == "" {
		return parseF(f)
	}
	c = strings.TrimSpace(c)
	v, err := strconv.ParseFloat(c, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%q is not a finite number", c)
	}
	return c, nil
}

// parseF converts a Fahrenheit entry to the Celsius string sent to the
// device.
func parseF(s string) (string, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return "", fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%q is not finite", s)
	}
	return strconv.FormatFloat(tempconv.FahrenheitToCelsius(v), 'f', -1, 64), nil
}

func (f *Feed) runEdit(ctx context.Context, id, highC, lowC string, mode burner.Mode) {
	steps := []struct {
		name string
		call func() (burner.Status, error)
	}{
		{"high", func() (burner.Status, error) { return f.setter.SetHigh(ctx, highC) }},
		{"low", func() (burner.Status, error) { return f.setter.SetLow(ctx, lowC) }},
		{"mode", func() (burner.Status, error) { return f.setter.SetMode(ctx, string(mode)) }},
	}

	result := &events.EditResult{ID: id, OK: true}
	var echo burner.Status
	for _, s := range steps {
		st, err := s.call()
		if err != nil {
			result.OK = false
			result.Step = s.name
			result.Error = err.Error()
			f.log.Error("edit %s failed at %s: %v", id, s.name, err)
			break
		}
		echo = st
	}
	result.Time = time.Now()

	f.mu.Lock()
	if result.OK {
		f.log.Info("edit %s applied", id)
		applyStatus(&f.state, echo)
		f.state.Initial = false
	}
	f.state.LastEdit = result
	u := f.state
	f.mu.Unlock()

	f.publish(u)
}

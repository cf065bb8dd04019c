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

package burner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode is the controller's operating mode.
type Mode string

const (
	ModeAuto Mode = "AUTO"
	ModeOff  Mode = "OFF"
	ModeOn   Mode = "ON"
)

// Modes lists the valid modes in display order.
var Modes = []Mode{ModeAuto, ModeOff, ModeOn}

// ErrInvalidMode is returned by ParseMode.
var ErrInvalidMode = errors.New("invalid mode")

// ParseMode accepts AUTO, OFF or ON in any letter case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeAuto, ModeOff, ModeOn:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) String() string {
	if m == "" {
		return "UNKNOWN"
	}
	return string(m)
}

// Reading is one thermocouple measurement with its fault flags.
type Reading struct {
	Connected   bool
	GroundShort bool
	VCCShort    bool
	Fault       bool
	InternalC   float64
	ProbeC      float64
	Time        time.Time // zero when the device sent no usable time
}

func (r Reading) HasTime() bool {
	return !r.Time.IsZero()
}

// Sample is one history point.
type Sample struct {
	Time  time.Time
	TempC float64
}

// Status is an immutable snapshot of the remote controller. Accessors
// return copies, so a Status can be handed to any number of consumers.
type Status struct {
	mode         Mode
	lowC         float64
	highC        float64
	burning      bool
	waiting      bool
	sense        *Reading
	food         *Reading
	senseHistory []Sample
	foodHistory  []Sample
}

// StatusFields is the input to NewStatus.
type StatusFields struct {
	Mode         Mode
	LowC         float64
	HighC        float64
	Burning      bool
	Waiting      bool
	Sense        *Reading
	Food         *Reading
	SenseHistory []Sample
	FoodHistory  []Sample
}

// NewStatus builds a Status, sorting and de-duplicating the histories.
func NewStatus(f StatusFields) Status {
	return Status{
		mode:         f.Mode,
		lowC:         f.LowC,
		highC:        f.HighC,
		burning:      f.Burning,
		waiting:      f.Waiting,
		sense:        copyReading(f.Sense),
		food:         copyReading(f.Food),
		senseHistory: normalizeHistory(f.SenseHistory),
		foodHistory:  normalizeHistory(f.FoodHistory),
	}
}

func (s Status) Mode() Mode     { return s.mode }
func (s Status) LowC() float64  { return s.lowC }
func (s Status) HighC() float64 { return s.highC }

// Burning reports whether the burner is firing.
func (s Status) Burning() bool { return s.burning }

// Waiting reports the post-burn dead band. Burning and Waiting are shown
// as sent, even if both are set.
func (s Status) Waiting() bool { return s.waiting }

// Sense is the reading of the control probe, if the device sent one.
func (s Status) Sense() (Reading, bool) {
	if s.sense == nil {
		return Reading{}, false
	}
	return *s.sense, true
}

// Food is the reading of the food probe, if the device sent one.
func (s Status) Food() (Reading, bool) {
	if s.food == nil {
		return Reading{}, false
	}
	return *s.food, true
}

// SenseHistory is sorted ascending by time with unique timestamps.
func (s Status) SenseHistory() []Sample {
	return append([]Sample(nil), s.senseHistory...)
}

// FoodHistory is sorted ascending by time with unique timestamps.
func (s Status) FoodHistory() []Sample {
	return append([]Sample(nil), s.foodHistory...)
}

func copyReading(r *Reading) *Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

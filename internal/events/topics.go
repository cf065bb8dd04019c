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

package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"roboburn/pkg/eventbus"
)

var (
	TopicChart   eventbus.Topic = "chart"
	TopicReadout eventbus.Topic = "readout"
)

// ----- chart -----

// Point is one plotted sample: X in epoch milliseconds, Y in Fahrenheit.
type Point struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Marker is a horizontal line across the plot.
type Marker struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Tick is an axis label at Value.
type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

type ChartUpdate struct {
	Series  []Series  `json:"series"`
	Markers []Marker  `json:"markers"`
	XTicks  []Tick    `json:"x_ticks"`
	YTicks  []Tick    `json:"y_ticks"`
	Updated time.Time `json:"updated"`
}

// Clone returns a deep copy.
func (c ChartUpdate) Clone() ChartUpdate {
	out := ChartUpdate{Updated: c.Updated}
	out.Series = make([]Series, len(c.Series))
	for i, s := range c.Series {
		out.Series[i] = Series{Name: s.Name, Points: append([]Point(nil), s.Points...)}
	}
	out.Markers = append([]Marker(nil), c.Markers...)
	out.XTicks = append([]Tick(nil), c.XTicks...)
	out.YTicks = append([]Tick(nil), c.YTicks...)
	return out
}

// ----- readout -----

// Color is ARGB.
type Color uint32

const (
	ColorWhite Color = 0xffffffff
	ColorBurn  Color = 0xffff0100
	ColorWait  Color = 0xff0015ff
)

// CSS renders the color as #rrggbb.
func (c Color) CSS() string {
	const hex = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i := 0; i < 6; i++ {
		b[6-i] = hex[(c>>(4*i))&0xf]
	}
	return string(b)
}

// MarshalText encodes the color for the dashboard as CSS.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.CSS()), nil
}

// UnmarshalText accepts the #rrggbb form produced by MarshalText.
func (c *Color) UnmarshalText(b []byte) error {
	s := strings.TrimPrefix(string(b), "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return fmt.Errorf("invalid color %q", b)
	}
	*c = Color(0xff000000 | v)
	return nil
}

// Indicator is a label whose colors swap when active.
type Indicator struct {
	Label      string `json:"label"`
	Active     bool   `json:"active"`
	Background Color  `json:"background"`
	Text       Color  `json:"text"`
}

// NewIndicator applies the colour contract: active shows white text on
// the colour, inactive shows the colour on white.
func NewIndicator(label string, active bool, c Color) Indicator {
	if active {
		return Indicator{Label: label, Active: true, Background: c, Text: ColorWhite}
	}
	return Indicator{Label: label, Background: ColorWhite, Text: c}
}

type EditResult struct {
	ID    string    `json:"id"`
	OK    bool      `json:"ok"`
	Step  string    `json:"step,omitempty"`
	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

type ReadoutUpdate struct {
	Sense     string      `json:"sense"`
	Food      string      `json:"food"`
	Burn      Indicator   `json:"burn"`
	Wait      Indicator   `json:"wait"`
	Mode      string      `json:"mode"`
	High      string      `json:"high"`
	Low       string      `json:"low"`
	PollError string      `json:"poll_error,omitempty"`
	Initial   bool        `json:"initial"`
	Updated   time.Time   `json:"updated"`
	LastEdit  *EditResult `json:"last_edit,omitempty"`
}

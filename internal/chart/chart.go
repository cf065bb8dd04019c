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

package chart

import (
	"math"
	"strconv"
	"sync"
	"time"

	"roboburn/internal/burner"
	"roboburn/internal/events"
	"roboburn/internal/poller"
	"roboburn/pkg/eventbus"
	"roboburn/pkg/logger"
	"roboburn/pkg/tempconv"
)

const (
	SeriesSense = "sense"
	SeriesFood  = "food"
	MarkerHigh  = "high"
	MarkerLow   = "low"

	maxTicks = 8
)

var (
	domainSteps = []time.Duration{
		time.Minute, 5 * time.Minute, 10 * time.Minute, 15 * time.Minute, 30 * time.Minute,
		time.Hour, 2 * time.Hour, 6 * time.Hour, 12 * time.Hour, 24 * time.Hour,
	}
	rangeSteps = []float64{1, 2, 5, 10, 20, 25, 50, 100, 200, 500, 1000}
)

// Feed turns status snapshots into plot state. It ignores poll errors so
// the plot keeps its last good data.
type Feed struct {
	eb  *eventbus.Bus
	log *logger.Logger

	mu    sync.RWMutex
	state events.ChartUpdate
}

// New returns a Feed publishing on bus. bus may be nil.
func New(bus *eventbus.Bus) *Feed {
	return &Feed{
		eb:  bus,
		log: logger.New("Chart"),
		state: events.ChartUpdate{
			Series: []events.Series{{Name: SeriesSense}, {Name: SeriesFood}},
		},
	}
}

func (f *Feed) OnStatus(ev poller.StatusEvent) {
	st := ev.Status
	update := events.ChartUpdate{
		Series: []events.Series{
			{Name: SeriesSense, Points: points(st.SenseHistory())},
			{Name: SeriesFood, Points: points(st.FoodHistory())},
		},
		Markers: []events.Marker{
			{Name: MarkerHigh, Value: tempconv.CelsiusToFahrenheit(st.HighC())},
			{Name: MarkerLow, Value: tempconv.CelsiusToFahrenheit(st.LowC())},
		},
		Updated: ev.Time,
	}
	update.XTicks = domainTicks(update.Series)
	update.YTicks = rangeTicks(update.Series, update.Markers)

	f.mu.Lock()
	f.state = update
	f.mu.Unlock()

	f.log.Debug("replaced series: sense=%d food=%d points", len(update.Series[0].Points), len(update.Series[1].Points))
	if f.eb != nil {
		f.eb.Publish(events.TopicChart, update.Clone())
	}
}

// Snapshot returns a copy of the current plot state.
func (f *Feed) Snapshot() events.ChartUpdate {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Clone()
}

func points(samples []burner.Sample) []events.Point {
	out := make([]events.Point, len(samples))
	for i, s := range samples {
		out[i] = events.Point{
			X: s.Time.UnixMilli(),
			Y: tempconv.CelsiusToFahrenheit(s.TempC),
		}
	}
	return out
}

// DomainLabel formats an x value as local wall-clock HH:mm.
func DomainLabel(ms int64) string {
	return time.UnixMilli(ms).Format("15:04")
}

// RangeLabel formats a y value as a whole number, rounding half to even.
func RangeLabel(v float64) string {
	return strconv.FormatFloat(math.RoundToEven(v), 'f', 0, 64)
}

// domainTicks labels the time axis on whole steps of the smallest interval
// that keeps the tick count under maxTicks.
func domainTicks(series []events.Series) []events.Tick {
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	for _, s := range series {
		for _, p := range s.Points {
			lo = min(lo, p.X)
			hi = max(hi, p.X)
		}
	}
	if lo > hi {
		return nil
	}

	step := domainSteps[len(domainSteps)-1].Milliseconds()
	for _, d := range domainSteps {
		if (hi-lo)/d.Milliseconds() < maxTicks {
			step = d.Milliseconds()
			break
		}
	}

	first := lo - lo%step
	if first < lo {
		first += step
	}
	var out []events.Tick
	for x := first; x <= hi; x += step {
		out = append(out, events.Tick{Value: float64(x), Label: DomainLabel(x)})
	}
	return out
}

// rangeTicks labels the temperature axis over the points and markers.
func rangeTicks(series []events.Series, markers []events.Marker) []events.Tick {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, p := range s.Points {
			lo = math.Min(lo, p.Y)
			hi = math.Max(hi, p.Y)
		}
	}
	for _, m := range markers {
		lo = math.Min(lo, m.Value)
		hi = math.Max(hi, m.Value)
	}
	if lo > hi {
		return nil
	}

	step := rangeSteps[len(rangeSteps)-1]
	for _, s := range rangeSteps {
		if (hi-lo)/s < maxTicks {
			step = s
			break
		}
	}

	var out []events.Tick
	first := math.Ceil(lo/step) * step
	for i := 0; ; i++ {
		y := first + float64(i)*step
		if y > hi {
			break
		}
		out = append(out, events.Tick{Value: y, Label: RangeLabel(y)})
	}
	if len(out) == 0 {
		out = append(out, events.Tick{Value: lo, Label: RangeLabel(lo)})
	}
	return out
}

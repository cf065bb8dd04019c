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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// wire payload from GET /status and the mutating endpoints
type wireStatus struct {
	Mode         string              `json:"mode"`
	LowTemp      float64             `json:"low_temp"`
	HighTemp     float64             `json:"high_temp"`
	Burn         bool                `json:"burn"`
	Wait         bool                `json:"wait"`
	TempSense    *wireReading        `json:"temp_sense"`
	TempFood     *wireReading        `json:"temp_food"`
	HistorySense map[string]*float64 `json:"history_sense"`
	HistoryFood  map[string]*float64 `json:"history_food"`
}

type wireReading struct {
	Connected bool            `json:"connected"`
	GndShort  bool            `json:"gnd_short"`
	VccShort  bool            `json:"vcc_short"`
	IntTemp   float64         `json:"int_temp"`
	ProbeTemp float64         `json:"probe_temp"`
	Fault     bool            `json:"fault"`
	Time      json.RawMessage `json:"time"`
}

// Decode parses a status payload. Unknown fields are ignored. History
// entries and reading times that do not parse as epoch seconds are
// dropped without error.
func Decode(data []byte) (Status, error) {
	var w wireStatus
	if err := json.Unmarshal(data, &w); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}

	var mode Mode
	if w.Mode != "" {
		m, err := ParseMode(w.Mode)
		if err != nil {
			return Status{}, fmt.Errorf("decode status: %w", err)
		}
		mode = m
	}

	return Status{
		mode:         mode,
		lowC:         w.LowTemp,
		highC:        w.HighTemp,
		burning:      w.Burn,
		waiting:      w.Wait,
		sense:        w.TempSense.reading(),
		food:         w.TempFood.reading(),
		senseHistory: decodeHistory(w.HistorySense),
		foodHistory:  decodeHistory(w.HistoryFood),
	}, nil
}

func (w *wireReading) reading() *Reading {
	if w == nil {
		return nil
	}
	r := &Reading{
		Connected:   w.Connected,
		GroundShort: w.GndShort,
		VCCShort:    w.VccShort,
		Fault:       w.Fault,
		InternalC:   w.IntTemp,
		ProbeC:      w.ProbeTemp,
	}
	if t, ok := parseRawEpoch(w.Time); ok {
		r.Time = t
	}
	return r
}

// parseRawEpoch accepts a JSON string or number of epoch seconds.
func parseRawEpoch(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		return ParseEpochSeconds(s)
	}
	return ParseEpochSeconds(string(raw))
}

// ParseEpochSeconds parses a decimal epoch-seconds string, truncating to
// milliseconds. Non-numeric and non-finite input is rejected.
func ParseEpochSeconds(s string) (time.Time, bool) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, false
	}
	ms := secs * 1000
	if ms > math.MaxInt64 || ms < math.MinInt64 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// decodeHistory walks keys in lexical order so that keys collapsing to
// the same millisecond resolve deterministically (last one wins).
func decodeHistory(in map[string]*float64) []Sample {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	samples := make([]Sample, 0, len(keys))
	for _, k := range keys {
		v := in[k]
		if v == nil {
			continue
		}
		t, ok := ParseEpochSeconds(k)
		if !ok {
			continue
		}
		samples = append(samples, Sample{Time: t, TempC: *v})
	}
	return normalizeHistory(samples)
}

// normalizeHistory sorts by time and keeps the last sample for each
// timestamp. The input is not modified.
func normalizeHistory(in []Sample) []Sample {
	if len(in) == 0 {
		return nil
	}
	out := append([]Sample(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i := range out {
		if n > 0 && out[n-1].Time.Equal(out[i].Time) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

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

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"roboburn/internal/burner"
	"roboburn/internal/poller"
)

var _ poller.ErrorConsumer = (*Metrics)(nil)

// gauge returns the value of the sample of family name whose labels
// include all of want.
func gauge(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("no sample %s%v", name, want)
	return 0
}

func TestStatusAndErrorMetrics(t *testing.T) {
	m := New()
	st, err := burner.Decode([]byte(`{"mode":"AUTO","low_temp":100,"high_temp":110,"burn":true,
		"temp_sense":{"probe_temp":100},"temp_food":{"probe_temp":0,"fault":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1700000000, 0)
	m.OnStatus(poller.StatusEvent{Status: st, Time: now})
	m.OnError(poller.ErrorEvent{Err: errors.New("refused"), Time: now})
	m.OnError(poller.ErrorEvent{Err: errors.New("refused"), Time: now})

	reg := m.Registry()
	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"roboburn_poll_cycles_total", map[string]string{"outcome": "ok"}, 1},
		{"roboburn_poll_cycles_total", map[string]string{"outcome": "error"}, 2},
		{"roboburn_probe_temperature_fahrenheit", map[string]string{"probe": "sense"}, 212},
		{"roboburn_probe_fault", map[string]string{"probe": "food"}, 1},
		{"roboburn_setpoint_fahrenheit", map[string]string{"setpoint": "high"}, 230},
		{"roboburn_setpoint_fahrenheit", map[string]string{"setpoint": "low"}, 212},
		{"roboburn_burner_state", map[string]string{"state": "burn"}, 1},
		{"roboburn_burner_state", map[string]string{"state": "wait"}, 0},
		{"roboburn_connection_failure", nil, 1},
		{"roboburn_last_success_timestamp_seconds", nil, 1700000000},
	}
	for _, c := range checks {
		if got := gauge(t, reg, c.name, c.labels); got != c.want {
			t.Errorf("%s%v = %v, want %v", c.name, c.labels, got, c.want)
		}
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.OnError(poller.ErrorEvent{Err: errors.New("x")})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), `roboburn_poll_cycles_total{outcome="error"} 1`) {
		t.Errorf("exposition:\n%s", rec.Body.String())
	}
}

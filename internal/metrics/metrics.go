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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roboburn/internal/poller"
	"roboburn/pkg/tempconv"
)

// Metrics is a poll loop consumer exporting the controller state on its
// own registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles      *prometheus.CounterVec
	probeTemp   *prometheus.GaugeVec
	probeFault  *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec
	burnerState *prometheus.GaugeVec
	connFailure prometheus.Gauge
	lastSuccess prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roboburn_poll_cycles_total",
			Help: "Poll cycles by outcome.",
		}, []string{"outcome"}),
		probeTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roboburn_probe_temperature_fahrenheit",
			Help: "Latest probe temperature in Fahrenheit.",
		}, []string{"probe"}),
		probeFault: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roboburn_probe_fault",
			Help: "1 if the probe reports a fault, 0 otherwise.",
		}, []string{"probe"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roboburn_setpoint_fahrenheit",
			Help: "Controller setpoints in Fahrenheit.",
		}, []string{"setpoint"}),
		burnerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roboburn_burner_state",
			Help: "Burner flags (1=set, 0=clear).",
		}, []string{"state"}),
		connFailure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roboburn_connection_failure",
			Help: "1 if the last poll failed, 0 if it succeeded.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roboburn_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful poll.",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.probeTemp,
		m.probeFault,
		m.setpoint,
		m.burnerState,
		m.connFailure,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) OnStatus(ev poller.StatusEvent) {
	st := ev.Status
	m.cycles.WithLabelValues("ok").Inc()
	m.connFailure.Set(0)
	m.lastSuccess.Set(float64(ev.Time.UnixNano()) / 1e9)

	if r, ok := st.Sense(); ok {
		m.probeTemp.WithLabelValues("sense").Set(tempconv.CelsiusToFahrenheit(r.ProbeC))
		m.probeFault.WithLabelValues("sense").Set(boolGauge(r.Fault))
	}
	if r, ok := st.Food(); ok {
		m.probeTemp.WithLabelValues("food").Set(tempconv.CelsiusToFahrenheit(r.ProbeC))
		m.probeFault.WithLabelValues("food").Set(boolGauge(r.Fault))
	}
	m.setpoint.WithLabelValues("high").Set(tempconv.CelsiusToFahrenheit(st.HighC()))
	m.setpoint.WithLabelValues("low").Set(tempconv.CelsiusToFahrenheit(st.LowC()))
	m.burnerState.WithLabelValues("burn").Set(boolGauge(st.Burning()))
	m.burnerState.WithLabelValues("wait").Set(boolGauge(st.Waiting()))
}

func (m *Metrics) OnError(ev poller.ErrorEvent) {
	m.cycles.WithLabelValues("error").Inc()
	m.connFailure.Set(1)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

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

package mqttpub

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"roboburn/internal/config"
	"roboburn/internal/poller"
	"roboburn/pkg/logger"
	"roboburn/pkg/tempconv"
)

const publishTimeout = 5 * time.Second

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// Snapshot is the JSON published on <prefix>/status.
type Snapshot struct {
	Mode       string    `json:"mode"`
	HighF      float64   `json:"high_f"`
	LowF       float64   `json:"low_f"`
	Burn       bool      `json:"burn"`
	Wait       bool      `json:"wait"`
	SenseF     *float64  `json:"sense_f,omitempty"`
	SenseFault bool      `json:"sense_fault"`
	FoodF      *float64  `json:"food_f,omitempty"`
	FoodFault  bool      `json:"food_fault"`
	Time       time.Time `json:"time"`
}

type errorPayload struct {
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

// Publisher mirrors poll results to an MQTT broker. The poll loop only
// queues the latest message per topic; Run does the network work.
type Publisher struct {
	client mqttClient
	prefix string
	log    *logger.Logger

	status chan message
	errs   chan message
}

func New(cfg config.MQTTConfig) *Publisher {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return newWithClient(mqtt.NewClient(opts), cfg.TopicPrefix)
}

func newWithClient(c mqttClient, prefix string) *Publisher {
	return &Publisher{
		client: c,
		prefix: prefix,
		log:    logger.New("MQTT"),
		status: make(chan message, 1),
		errs:   make(chan message, 1),
	}
}

func (p *Publisher) OnStatus(ev poller.StatusEvent) {
	st := ev.Status
	snap := Snapshot{
		Mode:  st.Mode().String(),
		HighF: tempconv.CelsiusToFahrenheit(st.HighC()),
		LowF:  tempconv.CelsiusToFahrenheit(st.LowC()),
		Burn:  st.Burning(),
		Wait:  st.Waiting(),
		Time:  ev.Time,
	}
	if r, ok := st.Sense(); ok {
		f := tempconv.CelsiusToFahrenheit(r.ProbeC)
		snap.SenseF, snap.SenseFault = &f, r.Fault
	}
	if r, ok := st.Food(); ok {
		f := tempconv.CelsiusToFahrenheit(r.ProbeC)
		snap.FoodF, snap.FoodFault = &f, r.Fault
	}
	p.queue(p.status, p.prefix+"/status", true, snap)
}

func (p *Publisher) OnError(ev poller.ErrorEvent) {
	p.queue(p.errs, p.prefix+"/error", false, errorPayload{Error: ev.Err.Error(), Time: ev.Time})
}

// queue replaces any unsent message on ch. It never blocks.
func (p *Publisher) queue(ch chan message, topic string, retained bool, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.log.Error("marshal %s: %v", topic, err)
		return
	}
	m := message{topic: topic, retained: retained, payload: b}
	for {
		select {
		case ch <- m:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Run connects and publishes queued messages until ctx ends.
func (p *Publisher) Run(ctx context.Context) {
	tok := p.client.Connect()
	select {
	case <-ctx.Done():
		// stops the connect retry loop
		p.client.Disconnect(0)
		return
	case <-tok.Done():
	}
	if err := tok.Error(); err != nil {
		p.log.Error("connect: %v", err)
		return
	}
	p.log.Info("connected, publishing under %s/", p.prefix)
	defer p.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.status:
			p.publish(m)
		case m := <-p.errs:
			p.publish(m)
		}
	}
}

func (p *Publisher) publish(m message) {
	tok := p.client.Publish(m.topic, 0, m.retained, m.payload)
	if !tok.WaitTimeout(publishTimeout) {
		p.log.Warn("publish %s: timed out", m.topic)
		return
	}
	if err := tok.Error(); err != nil {
		p.log.Warn("publish %s: %v", m.topic, err)
	}
}

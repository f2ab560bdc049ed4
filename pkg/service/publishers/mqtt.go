/*
Cardmon
Copyright (c) 2026 The Zaparoo Project Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of Cardmon.

Cardmon is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Cardmon is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Cardmon.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package publishers forwards mount state changes to external systems.
package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	disconnectQuiet = 250
)

// MQTTPublisher publishes every mount state change as JSON to one topic.
type MQTTPublisher struct {
	client mqtt.Client
	broker string
	topic  string
	// filter limits publishing to these state names. Empty publishes all.
	filter []string
	retain bool
}

func NewMQTTPublisher(broker, topic string, filter []string, retain bool) *MQTTPublisher {
	return &MQTTPublisher{
		broker: broker,
		topic:  topic,
		filter: filter,
		retain: retain,
	}
}

func (p *MQTTPublisher) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + p.broker)
	opts.SetClientID(config.AppName + "-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", p.broker).Msg("mqtt publisher connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt publisher connection lost")
	}
	return opts
}

// Connect dials the broker. With connect retry on, the client keeps trying
// in the background if the first attempt times out.
func (p *MQTTPublisher) Connect() error {
	if p.client == nil {
		p.client = mqtt.NewClient(p.clientOptions())
	}
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("broker", p.broker).Msg("mqtt broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Run publishes changes until ctx is done or the channel closes, then
// disconnects.
func (p *MQTTPublisher) Run(ctx context.Context, changes <-chan lifecycle.Change) error {
	defer p.disconnect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if !p.matchesFilter(change.State) {
				continue
			}
			p.publish(change)
		}
	}
}

func (p *MQTTPublisher) publish(change lifecycle.Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Error().Err(err).Msg("mqtt publisher: failed to marshal change")
		return
	}
	token := p.client.Publish(p.topic, 0, p.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", p.topic).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("mqtt publish failed")
		return
	}
	log.Debug().Str("state", change.State.String()).Msg("mqtt publisher: published change")
}

func (p *MQTTPublisher) disconnect() {
	if p.client != nil && p.client.IsConnected() {
		log.Debug().Msg("mqtt publisher: disconnecting")
		p.client.Disconnect(disconnectQuiet)
	}
}

func (p *MQTTPublisher) matchesFilter(state lifecycle.State) bool {
	return len(p.filter) == 0 || slices.Contains(p.filter, state.String())
}

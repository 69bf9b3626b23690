// Copyright 2025 Rentfolio GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connectivity

import (
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTNotifier rides a broker connection as the reachability signal: the
// paho connect and connection-lost callbacks are exactly the two edges the
// monitor needs. Reconnecting is left to the paho client.
type MQTTNotifier struct {
	brokerURL string
	clientID  string
	password  string
}

func NewMQTTNotifier(brokerURL string, clientID string, password string) *MQTTNotifier {
	return &MQTTNotifier{brokerURL: brokerURL, clientID: clientID, password: password}
}

func (n *MQTTNotifier) Subscribe(onUp func(), onDown func()) (func(), error) {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(n.brokerURL)
	opts.SetClientID(n.clientID)
	if n.password != "" {
		opts.SetPassword(n.password)
	}
	opts.SetAutoReconnect(true)
	// ConnectRetry covers the initial connect; AutoReconnect only handles
	// drops after a session was established.
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(c MQTT.Client) {
		zap.S().Debugf("Broker connection established")
		onUp()
	})
	opts.SetConnectionLostHandler(func(c MQTT.Client, err error) {
		zap.S().Warnf("Broker connection lost: %v", err)
		onDown()
	})

	client := MQTT.NewClient(opts)
	token := client.Connect()
	// Do not wait for the token: the host may well be offline right now, and
	// paho keeps retrying in the background. The first successful connect
	// fires the up edge.
	go func() {
		token.Wait()
		if token.Error() != nil {
			zap.S().Warnf("Initial broker connect failed, retrying in background: %v", token.Error())
		}
	}()

	unsubscribe := func() {
		client.Disconnect(250)
	}
	return unsubscribe, nil
}

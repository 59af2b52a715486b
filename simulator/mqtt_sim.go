package main

import paho "github.com/eclipse/paho.mqtt.golang"

// mqttClientFactory is replaced in tests.
var mqttClientFactory = realMQTTClient

// realMQTTClient connects with a last will announcing the machine offline.
func realMQTTClient(broker, clientID, willTopic string, will []byte) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if willTopic != "" {
		opts.SetBinaryWill(willTopic, will, 1, false)
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

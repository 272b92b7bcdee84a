// Package mqtt connects the player to the suit's MQTT broker.
//
// Topic tree (see Topics):
//
//	tef/animation/{module}/set    parameter batches, one per module per tick
//	tef/player/status             retained online/offline, last will included
//	tef/player/program/{key}      retained slot state, empty when cleared
//	tef/player/control/{key}      slot commands from other controllers
//
// Subscriptions are remembered and replayed after a reconnect. Handlers run
// on paho goroutines without ordering guarantees, so a handler may publish
// through the same client.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Publish(mqtt.Topics{}.AnimationSet("ears"), []byte(`{"parameters":{"angle":40}}`), 0, false)
package mqtt

// Package output stages animation parameter writes and publishes them to the
// suit's modules.
//
// Note callbacks call Batcher.Set as often as they like while a batch runs.
// The player's tick hook then calls Flush, which sends one message per
// touched module:
//
//	topic:   tef/animation/{module}/set
//	payload: {"parameters":{"brightness":0.8,"hue":0.25}}
//
// Values written to the same module parameter within one batch collapse to
// the last one. Modules are flushed in name order.
//
// # Usage
//
//	batcher := output.NewBatcher(mqttClient, 0)
//	batcher.SetLogger(log)
//	player.OnTick(func() { _ = batcher.Flush() })
package output

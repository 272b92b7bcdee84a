// Package influxdb writes player telemetry to InfluxDB 2.x.
//
// Two measurements are written, both tagged with the site:
//
//	player_tick     batch_size, lateness_ms, programs   (one per executed batch)
//	program_event   count, tagged slot/show/event       (one per slot change)
//
// Writes go through the client library's batching, non-blocking write API.
// Failures arrive asynchronously through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	player.SetMetrics(client)
package influxdb

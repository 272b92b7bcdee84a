// Package config loads the player's YAML configuration.
//
// Load starts from built-in defaults, decodes the file over them
// (rejecting unknown keys), applies SYNTHANIM_* environment overrides
// and validates. Keep credentials such as SYNTHANIM_MQTT_PASSWORD and
// SYNTHANIM_INFLUXDB_TOKEN in the environment and the file itself at
// mode 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config

// Package control assigns library shows to player slots.
//
// A slot is a player key ("face", "tail", "ears"). Assigning a show compiles
// it into a sheet, hands the sheet to the player, and then brings the outer
// surfaces in line:
//
//	Assign(ctx, "face", "idle-blink", opts, control.SourceAPI)
//	  │
//	  ├─ library: Resolve + Compile      (errors here leave the slot untouched)
//	  ├─ sequencer: Player.AssignSheet   (old program torn down first)
//	  ├─ playback log: old row replaced, new row assigned
//	  ├─ MQTT: retained tef/player/program/face
//	  ├─ WebSocket: program.assigned
//	  └─ InfluxDB: program_event
//
// Programs that reach their end on their own are reported by the player's
// OnFinish hook and recorded as finished. Slots can also be driven over MQTT
// by publishing a Command to tef/player/control/{key}.
package control

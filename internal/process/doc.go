// Package process launches and supervises external playback processes.
//
// Shows reference media files (audio tracks, sound effects) that are played
// by an external player binary rather than in-process. Each Launch starts the
// configured binary in its own process group so the player and anything it
// spawns can be signalled together.
//
// Features:
//   - Argument templates with {path}, {volume} and {percent} placeholders
//   - Non-blocking Kill: SIGTERM now, SIGKILL after a grace period
//   - Killing a process that already exited is not an error
//   - Output capture into the structured logger
//
// Example usage:
//
//	launcher := process.NewLauncher(process.Config{
//	    Binary: "/usr/bin/mpv",
//	    Args:   []string{"--no-video", "--volume={percent}", "{path}"},
//	})
//	launcher.SetLogger(log)
//
//	player := sequencer.NewPlayer(sequencer.PlayerConfig{}, sequencer.Env{
//	    Launcher: launcher,
//	    Logger:   log,
//	})
package process

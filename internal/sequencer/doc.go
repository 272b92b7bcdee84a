// Package sequencer provides the show scheduling engine for tef-synth-animation.
//
// A show is a tree of nested programs. Each program runs on its own local
// timeline, related to its parent by an affine transform (offset + slope),
// and the Player composites the whole tree into one wall-clock timeline.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                   Player (player.go)                      │
//	│  key → Program, one scheduling goroutine                  │
//	│        │                                                  │
//	│        ▼  AppendEvents(view)                              │
//	│  ┌─────────────────────┐     ┌──────────────────────┐    │
//	│  │  Sequence           │────▶│  View (view.go)      │    │
//	│  │  (sequence.go)      │     │  local ⇄ global time │    │
//	│  │  setup/run/teardown │     └──────────┬───────────┘    │
//	│  └─────────┬───────────┘                │                │
//	│            ▼                            ▼                │
//	│  ┌─────────────────────┐     ┌──────────────────────┐    │
//	│  │  SheetSequence      │     │  Collector           │    │
//	│  │  notes + subprograms│     │  earliest batch only │    │
//	│  └─────────────────────┘     └──────────────────────┘    │
//	└──────────────────────────────────────────────────────────┘
//
// Each tick the Player asks every program to contribute into one Collector.
// The Collector keeps only the earliest pending instant and every callback
// scheduled exactly at it, so no global sort is ever needed. The Player then
// sleeps until that instant (waking early if the tree changes), fires the
// batch, advances its floor and starts over.
//
// # Key Types
//
//   - Sheet: reusable template (fill/setup/teardown blocks, tempo, repeat)
//   - SheetSequence: a running instance of a Sheet
//   - Handle: authoring surface passed to Sheet blocks (At, After, Nest, Play, Kill)
//   - Collector / View: per-tick accumulator and its time-transformed view
//   - Player: keyed set of top-level programs plus the real-time loop
//
// # Thread Safety
//
// Player methods are safe for concurrent use. Sequences are not; they are
// only touched by the scheduling goroutine or under the Player's lock.
// Callbacks, Sheet blocks and teardown run with that lock held and must not
// call back into the Player synchronously.
//
// # Usage
//
//	blink := &sequencer.Sheet{
//	    Tempo: 120,
//	    Fill: func(h *sequencer.Handle) {
//	        h.At(0, func() { out.Set("eyes", "blink", 1) })
//	        h.After(1, func() { out.Set("eyes", "blink", 0) })
//	    },
//	}
//
//	player := sequencer.NewPlayer(sequencer.PlayerConfig{}, sequencer.Env{Logger: log})
//	player.OnTick(out.Flush)
//	player.Start(ctx)
//	defer player.Stop()
//
//	if _, err := player.AssignSheet("face", blink, nil); err != nil {
//	    return err
//	}
package sequencer

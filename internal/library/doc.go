// Package library stores show definitions and compiles them into sequencer
// sheets.
//
// A show is a named list of timed cues. Cues write animation parameters,
// start and stop audio playbacks, nest other shows by slug, or expand a
// label track into parameter writes. Shows live in SQLite and can be
// imported from YAML files:
//
//	name: Ear Wiggle
//	tempo: 120
//	repeat_time: 8
//	cues:
//	  - time: 0
//	    set: {module: ears, parameter: angle, value: 30}
//	  - after: 1
//	    set: {module: ears, parameter: angle, value: "$rest_angle"}
//	  - time: 4
//	    show: {show: blink, slope: 2}
//
// # Key Types
//
//   - Show, Cue: the declarative definition
//   - Registry: thread-safe cache over a Repository
//   - Compiler: Show -> *sequencer.Sheet, resolving nested shows by slug
//   - Playback: one assignment of a show to a player slot
//
// # Usage
//
//	repo := library.NewSQLiteRepository(db.DB)
//	registry := library.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	compiler := library.NewCompiler(registry, batcher, tracks, cfg.Shows.MaxDepth)
//	sheet, err := compiler.Compile(ctx, show)
package library

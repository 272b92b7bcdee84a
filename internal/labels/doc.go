// Package labels imports label tracks: plain-text timing files exported by
// audio editors, one label per line.
//
//	# start  stop   text
//	0.000	0.500	blink
//	1.250	1.250	ears-up
//	2.0		wag
//
// Fields are tab separated. Stop is optional and defaults to start. Blank
// lines and lines starting with # are skipped. Times are seconds in the
// local timeline of the sheet the track is applied to.
package labels

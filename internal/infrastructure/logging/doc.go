// Package logging builds the structured slog logger shared by every
// component.
//
// Entries carry service and version attributes, and child loggers from
// Component add component=name. The logging section of the config file
// picks the level (debug, info, warn, error), the format (json or text)
// and the stream (stdout or stderr):
//
//	logging:
//	  level: debug
//	  format: text
//	  output: stderr
//
// Log who authenticated, never the credential itself.
package logging

// Package log provides the logging abstraction used across refkeeper.
//
// Library components (the reference manager, mailboxes, resource kinds)
// accept a Logger and default to the no-op implementation, so embedding
// applications pay nothing for logging they did not ask for. The daemon
// and CLI install the zerolog adapter.
//
// # Usage
//
// Wrap an existing zerolog logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or take the console-writer default:
//
//	logger := log.NewZerologAdapter()
//
// Any other logging library can be plugged in by implementing the four
// leveled methods of the Logger interface.
package log

// Package log provides structured trace logging for the monitor.
//
// This package defines the Logger interface and Event types capturing
// what the monitor does on the wire: connection state transitions,
// authentication outcomes, subscription acknowledgments, dispatched
// state changes and errors. It is separate from operational logging
// (slog) - the trace is a machine-readable record of one monitoring run
// for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.Trace = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Trace, _ = log.NewFileLogger("/var/log/hassmon/monitor.hlog")
//
//	// Both: use MultiLogger
//	cfg.Trace = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Trace files use CBOR encoding with integer keys and the .hlog
// extension. Reader reads them back, optionally filtered.
package log
